package cookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Domain is the cookie domain requests are sent to
const Domain = "tiktok.com"

// ErrNoCookies is returned when a source yields no usable cookie
var ErrNoCookies = errors.New("no cookies")

// fileCookie is one entry of a JSON cookie export. Browser extensions write
// expirationDate as fractional seconds; files saved by SaveFile use expires.
type fileCookie struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Expires        int64   `json:"expires,omitempty"`
	ExpirationDate float64 `json:"expirationDate,omitempty"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
}

// Parse splits a Cookie header value into cookies
func Parse(header string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid cookie pair %q", pair)
		}
		cookies = append(cookies, &http.Cookie{
			Name:   strings.TrimSpace(name),
			Value:  strings.TrimSpace(value),
			Domain: Domain,
		})
	}
	return cookies, nil
}

// LoadFile reads a JSON cookie export and returns the unexpired cookies
// scoped to Domain
func LoadFile(path string, now time.Time) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var entries []fileCookie
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	var cookies []*http.Cookie
	for _, e := range entries {
		if e.Name == "" || !matchDomain(e.Domain) {
			continue
		}
		c := &http.Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   e.Domain,
			Path:     e.Path,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
		}
		switch {
		case e.Expires > 0:
			c.Expires = time.Unix(e.Expires, 0)
		case e.ExpirationDate > 0:
			c.Expires = time.Unix(int64(e.ExpirationDate), 0)
		}
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cookies = append(cookies, c)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoCookies, Domain, path)
	}
	return cookies, nil
}

// SaveFile writes cookies as a JSON export LoadFile can read
func SaveFile(path string, cookies []*http.Cookie) error {
	entries := make([]fileCookie, 0, len(cookies))
	for _, c := range cookies {
		e := fileCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			e.Expires = c.Expires.Unix()
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// Merge combines two cookie lists. Cookies in fresh replace cookies of the
// same name, domain and path in existing; first-seen order is kept.
func Merge(existing, fresh []*http.Cookie) []*http.Cookie {
	index := make(map[string]int)
	var result []*http.Cookie

	add := func(c *http.Cookie) {
		key := c.Name + "\x00" + strings.TrimPrefix(c.Domain, ".") + "\x00" + c.Path
		if i, ok := index[key]; ok {
			result[i] = c
			return
		}
		index[key] = len(result)
		result = append(result, c)
	}

	for _, c := range existing {
		add(c)
	}
	for _, c := range fresh {
		add(c)
	}
	return result
}

// Header renders cookies as a Cookie header value. A name that appears more
// than once keeps its last value.
func Header(cookies []*http.Cookie) string {
	values := make(map[string]string)
	var order []string
	for _, c := range cookies {
		if _, ok := values[c.Name]; !ok {
			order = append(order, c.Name)
		}
		values[c.Name] = c.Value
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, "; ")
}

// Resolve builds the request cookie from an inline header value and an
// optional cookie file. Inline values win over file values.
func Resolve(inline, file string, now time.Time) (string, error) {
	var cookies []*http.Cookie
	if file != "" {
		loaded, err := LoadFile(file, now)
		if err != nil {
			return "", err
		}
		cookies = loaded
	}
	if inline != "" {
		parsed, err := Parse(inline)
		if err != nil {
			return "", err
		}
		cookies = Merge(cookies, parsed)
	}
	return Header(cookies), nil
}

func matchDomain(domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	return domain == "" || domain == Domain || strings.HasSuffix(domain, "."+Domain)
}
