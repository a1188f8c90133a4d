package tiktok

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
)

const (
	// CommentEndpoint lists the top-level comments of a video
	CommentEndpoint = "https://www.tiktok.com/api/comment/list/"
	// ReplyEndpoint lists the replies of one comment
	ReplyEndpoint = "https://www.tiktok.com/api/comment/list/reply/"

	baseURL = "https://www.tiktok.com/"
)

// ErrInvalidCookie is returned for cookie strings that are not name=value pairs
var ErrInvalidCookie = errors.New("invalid cookie string")

// webParams are sent with every comment API request
var webParams = map[string]string{
	"aid":              "1988",
	"app_language":     "en",
	"app_name":         "tiktok_web",
	"browser_language": "en-US",
	"browser_name":     "Mozilla",
	"browser_online":   "true",
	"browser_platform": "Win32",
	"channel":          "tiktok_web",
	"cookie_enabled":   "true",
	"current_region":   "US",
	"device_platform":  "web_pc",
	"enter_from":       "tiktok_web",
	"focus_state":      "true",
	"fromWeb":          "1",
	"from_page":        "video",
	"history_len":      "2",
	"is_fullscreen":    "false",
	"is_page_visible":  "true",
	"os":               "windows",
	"priority_region":  "",
	"referer":          "",
	"region":           "US",
	"tz_name":          "America/New_York",
	"webcast_language": "en",
}

func baseParams() map[string]string {
	params := make(map[string]string, len(webParams)+8)
	for k, v := range webParams {
		params[k] = v
	}
	params["device_id"] = DeviceID()
	params["screen_height"] = strconv.Itoa(500 + rand.Intn(501))
	params["screen_width"] = strconv.Itoa(1000 + rand.Intn(501))
	return params
}

// CommentParams builds the query of a top-level comment page request
func CommentParams(videoID string, cursor, count int, msToken string) map[string]string {
	params := baseParams()
	params["aweme_id"] = videoID
	params["count"] = strconv.Itoa(count)
	params["cursor"] = strconv.Itoa(cursor)
	params["msToken"] = msToken
	return params
}

// ReplyParams builds the query of a reply page request
func ReplyParams(videoID, commentID string, cursor, count int, msToken string) map[string]string {
	params := baseParams()
	params["comment_id"] = commentID
	params["item_id"] = videoID
	params["count"] = strconv.Itoa(count)
	params["cursor"] = strconv.Itoa(cursor)
	params["msToken"] = msToken
	return params
}

// DeviceID returns a random 19 digit identifier using digits 1-9
func DeviceID() string {
	var b strings.Builder
	b.Grow(19)
	for i := 0; i < 19; i++ {
		b.WriteByte(byte('1' + rand.Intn(9)))
	}
	return b.String()
}

// RequestHeaders returns the headers sent with page and API requests
func RequestHeaders(cookie, userAgent string) map[string]string {
	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         baseURL,
		"Origin":          strings.TrimSuffix(baseURL, "/"),
	}
	if cookie != "" {
		headers["Cookie"] = cookie
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return headers
}

// DownloadHeaders returns the headers for fetching a video file
func DownloadHeaders(cookie, userAgent string) map[string]string {
	headers := RequestHeaders(cookie, userAgent)
	headers["Accept"] = "video/webm,video/ogg,video/*;q=0.9,application/ogg;q=0.7,audio/*;q=0.6,*/*;q=0.5"
	headers["Range"] = "bytes=0-"
	headers["Sec-Fetch-Dest"] = "video"
	headers["Sec-Fetch-Mode"] = "no-cors"
	return headers
}

// StitchCookies rewrites the user cookie string, replacing the value of every
// cookie the page response set. Cookies the response did not set are kept.
func StitchCookies(userCookie string, fresh []*http.Cookie) (string, error) {
	values := make(map[string]string, len(fresh))
	for _, c := range fresh {
		if c.Value != "" {
			values[c.Name] = c.Value
		}
	}

	var out []string
	for _, raw := range strings.Split(strings.ReplaceAll(userCookie, " ", ""), ";") {
		if raw == "" {
			continue
		}
		name, _, ok := strings.Cut(raw, "=")
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidCookie, raw)
		}
		if v, found := values[name]; found {
			out = append(out, name+"="+v)
			continue
		}
		out = append(out, raw)
	}
	return strings.Join(out, ";"), nil
}
