package models

import (
	"context"
	"io"
	"net/http"
)

// Fetcher performs the HTTP requests the scraper needs. All failures are
// returned wrapping ErrTransport.
type Fetcher interface {
	// GetJSON requests endpoint with query params and decodes the body.
	// Numbers decode as json.Number.
	GetJSON(ctx context.Context, endpoint string, params, headers map[string]string) (any, error)

	// GetPage returns the body of a rendered page and the cookies it set
	GetPage(ctx context.Context, url string, headers map[string]string) (*Page, error)

	// Stream opens url for reading. The caller closes the body.
	Stream(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error)
}

// Page is a fetched HTML document
type Page struct {
	URL     string
	Body    string
	Cookies []*http.Cookie
}

// Storage persists scraped records
type Storage interface {
	SaveVideoDetails(details *VideoDetails) error
	GetVideoDetails(id string) (*VideoDetails, error)
	ListVideos(filter VideoFilter) ([]*VideoDetails, error)

	SaveUserInfo(info *UserInfo) error
	GetUserInfo(uniqueID string) (*UserInfo, error)

	// SaveCommentThreads replaces the stored comments of a video
	SaveCommentThreads(videoID string, comments []*Comment) error
	GetCommentThreads(videoID string) ([]*Comment, error)

	SaveCrawlRun(run *CrawlRun) error
	ListCrawlRuns(videoID string, limit int) ([]*CrawlRun, error)

	GetStats() (*Stats, error)
	Close() error
}

// VideoFilter defines filters for listing videos
type VideoFilter struct {
	AuthorID  string
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}
