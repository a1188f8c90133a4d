package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

var (
	ErrUnsupportedURL = errors.New("unsupported URL")
	ErrNoHandler      = errors.New("no handler registered")
)

// Handler extracts the record a URL points at
type Handler func(ctx context.Context, url string) (any, error)

type pattern struct {
	kind models.RecordKind
	re   *regexp.Regexp
}

// Registry classifies TikTok URLs and dispatches them to handlers
type Registry struct {
	patterns []pattern
	handlers map[models.RecordKind]Handler
}

// Default TikTok URL patterns, matched against host and path. Video
// patterns come first since user pages share their prefix.
var defaultPatterns = []struct {
	kind    models.RecordKind
	pattern string
}{
	{models.KindVideo, `^(?:www\.|m\.)?tiktok\.com/@[^/]+/(?:video|photo)/\d+/?$`},
	{models.KindVideo, `^(?:www\.|m\.)?tiktok\.com/v/\d+(?:\.html)?/?$`},
	{models.KindUser, `^(?:www\.|m\.)?tiktok\.com/@[^/]+/?$`},
}

// NewRegistry creates a registry with the default TikTok patterns
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[models.RecordKind]Handler)}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, pattern{kind: p.kind, re: regexp.MustCompile(p.pattern)})
	}
	return r
}

// AddPattern registers an extra pattern for kind. Patterns added later are
// tried after the defaults.
func (r *Registry) AddPattern(kind models.RecordKind, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	r.patterns = append(r.patterns, pattern{kind: kind, re: re})
	return nil
}

// Register sets the handler for kind
func (r *Registry) Register(kind models.RecordKind, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler for %s cannot be nil", kind)
	}
	r.handlers[kind] = handler
	return nil
}

// Detect returns the kind of record rawURL points at
func (r *Registry) Detect(rawURL string) (models.RecordKind, error) {
	key, err := matchKey(rawURL)
	if err != nil {
		return "", err
	}
	for _, p := range r.patterns {
		if p.re.MatchString(key) {
			return p.kind, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
}

// Dispatch detects the kind of rawURL and runs its handler
func (r *Registry) Dispatch(ctx context.Context, rawURL string) (models.RecordKind, any, error) {
	kind, err := r.Detect(rawURL)
	if err != nil {
		return "", nil, err
	}
	handler, ok := r.handlers[kind]
	if !ok {
		return kind, nil, fmt.Errorf("%w for %s", ErrNoHandler, kind)
	}
	record, err := handler(ctx, rawURL)
	return kind, record, err
}

// ValidateURL reports whether rawURL is recognized
func (r *Registry) ValidateURL(rawURL string) bool {
	_, err := r.Detect(rawURL)
	return err == nil
}

// Kinds returns the kinds with a registered handler
func (r *Registry) Kinds() []models.RecordKind {
	var kinds []models.RecordKind
	for _, k := range []models.RecordKind{models.KindVideo, models.KindUser, models.KindComment} {
		if _, ok := r.handlers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// matchKey reduces a URL to lowercase host and path, dropping query and fragment
func matchKey(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, rawURL)
	}
	return strings.ToLower(u.Host) + u.Path, nil
}
