package tiktok

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/extract"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// ErrAPIStatus is returned when the web API answers with a non-zero status code
var ErrAPIStatus = errors.New("tiktok api error")

var (
	statusCodePath = extract.ParsePath("status_code")
	statusMsgPath  = extract.ParsePath("status_msg")
)

// Options configures a Client
type Options struct {
	Cookie    string
	UserAgent string
	MsToken   string
}

// Client issues TikTok web requests through a Fetcher. It implements
// comment.Source.
type Client struct {
	fetcher models.Fetcher
	options Options
	logger  zerolog.Logger
}

// NewClient creates a client
func NewClient(fetcher models.Fetcher, options Options) *Client {
	return &Client{
		fetcher: fetcher,
		options: options,
		logger:  zerolog.New(os.Stderr).With().Timestamp().Str("component", "tiktok_client").Logger(),
	}
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger.With().Str("component", "tiktok_client").Logger()
}

// WithMsToken returns a copy of the client using token
func (c *Client) WithMsToken(token string) *Client {
	clone := *c
	clone.options.MsToken = token
	return &clone
}

// ListComments fetches one page of top-level comments
func (c *Client) ListComments(ctx context.Context, videoID string, cursor, count int) (any, error) {
	params := CommentParams(videoID, cursor, count, c.options.MsToken)
	return c.getAPI(ctx, CommentEndpoint, params)
}

// ListReplies fetches one page of replies to commentID
func (c *Client) ListReplies(ctx context.Context, videoID, commentID string, cursor, count int) (any, error) {
	params := ReplyParams(videoID, commentID, cursor, count, c.options.MsToken)
	return c.getAPI(ctx, ReplyEndpoint, params)
}

func (c *Client) getAPI(ctx context.Context, endpoint string, params map[string]string) (any, error) {
	tree, err := c.fetcher.GetJSON(ctx, endpoint, params, RequestHeaders(c.options.Cookie, c.options.UserAgent))
	if err != nil {
		return nil, err
	}

	if code, err := extract.Extract(tree, statusCodePath); err == nil {
		if n, ok := extract.Set(code).Int64(); ok && n != 0 {
			msg, _ := extract.Extract(tree, statusMsgPath)
			return nil, fmt.Errorf("%w: status_code %d: %v", ErrAPIStatus, n, msg)
		}
	}
	return tree, nil
}

// Page fetches a rendered video or profile page
func (c *Client) Page(ctx context.Context, pageURL string) (*models.Page, error) {
	c.logger.Debug().Str("url", pageURL).Msg("Fetching page")
	return c.fetcher.GetPage(ctx, pageURL, RequestHeaders(c.options.Cookie, c.options.UserAgent))
}

// OpenVideo streams a video file. The request cookie is the configured cookie
// with the values refreshed from page.
func (c *Client) OpenVideo(ctx context.Context, page *models.Page, playAddr string) (io.ReadCloser, error) {
	cookie, err := StitchCookies(c.options.Cookie, page.Cookies)
	if err != nil {
		return nil, err
	}
	return c.fetcher.Stream(ctx, playAddr, DownloadHeaders(cookie, c.options.UserAgent))
}
