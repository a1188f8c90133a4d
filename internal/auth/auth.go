package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingKey   = errors.New("jwt secret not configured")
)

const issuer = "tiktok-scraper"

// Roles known to the API
const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// Claims are the claims carried by API tokens
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates API bearer tokens
type Service struct {
	secret []byte
	expiry time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a token service signing with secret
func NewService(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		secret: []byte(secret),
		expiry: expiry,
		logger: zerolog.Nop(),
		now:    time.Now,
	}, nil
}

// SetLogger sets the logger
func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger.With().Str("component", "auth").Logger()
}

// IssueToken signs a token for subject with role
func (s *Service) IssueToken(subject, role string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject required")
	}
	if role == "" {
		role = RoleReader
	}

	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info().Str("subject", subject).Str("role", role).Msg("Token issued")
	return signed, nil
}

// ValidateToken parses a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
