package tiktok

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// ScopeVideoDetail holds the video page data
	ScopeVideoDetail = "webapp.video-detail"
	// ScopeUserDetail holds the profile page data
	ScopeUserDetail = "webapp.user-detail"
)

var (
	// ErrInvalidURL is returned when no video id can be read from a URL
	ErrInvalidURL = errors.New("invalid tiktok url")
	// ErrDataNotFound is returned when a page carries no embedded data for a scope
	ErrDataNotFound = errors.New("embedded data not found")
)

var (
	rehydrationPattern = regexp.MustCompile(`(?s)<script[^>]+id="__UNIVERSAL_DATA_FOR_REHYDRATION__"[^>]*>(.*?)</script>`)
	videoIDPattern     = regexp.MustCompile(`[0-9]{4,}`)
)

// VideoIDFromURL returns the first run of four or more digits in the last
// path segment of rawURL
func VideoIDFromURL(rawURL string) (string, error) {
	s := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/")
	last := s[strings.LastIndex(s, "/")+1:]

	id := videoIDPattern.FindString(last)
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return id, nil
}

// ExtractScope decodes the embedded JSON object stored under scope in a
// rendered page. Numbers decode as json.Number.
func ExtractScope(html, scope string) (any, error) {
	if raw, ok := rehydrationScope(html, scope); ok {
		return decodeFirst(raw)
	}

	marker := `"` + scope + `":`
	start := strings.Index(html, marker)
	if start < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDataNotFound, scope)
	}
	rest := html[start+len(marker):]
	if end := strings.Index(rest, "</script>"); end >= 0 {
		rest = rest[:end]
	}

	tree, err := decodeFirst(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataNotFound, scope, err)
	}
	return tree, nil
}

// rehydrationScope looks the scope up inside the rehydration script
func rehydrationScope(html, scope string) (string, bool) {
	m := rehydrationPattern.FindStringSubmatch(html)
	if m == nil || !gjson.Valid(m[1]) {
		return "", false
	}
	r := gjson.Get(m[1], "__DEFAULT_SCOPE__."+strings.ReplaceAll(scope, ".", `\.`))
	if !r.Exists() || !r.IsObject() {
		return "", false
	}
	return r.Raw, true
}

// decodeFirst decodes the first JSON value in s and ignores what follows it
func decodeFirst(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if _, ok := tree.(map[string]any); !ok {
		return nil, fmt.Errorf("expected object, got %T", tree)
	}
	return tree, nil
}
