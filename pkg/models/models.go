package models

import (
	"errors"
	"time"
)

// ErrReplyOverflow is returned when a reply would exceed the declared reply count
var ErrReplyOverflow = errors.New("reply count exceeded")

// ErrTransport wraps network, HTTP status and response decoding failures
var ErrTransport = errors.New("transport error")

// RecordKind names the record families the scraper produces
type RecordKind string

const (
	KindVideo   RecordKind = "video"
	KindUser    RecordKind = "user"
	KindComment RecordKind = "comment"
)

// VideoDetails represents the metadata of a single video page
type VideoDetails struct {
	VideoID      string   `json:"video_id" gorm:"primaryKey"`
	Description  string   `json:"description"`
	Hashtags     []string `json:"hashtags" gorm:"serializer:json"`
	Duration     int64    `json:"duration"`
	Width        int64    `json:"width"`
	Height       int64    `json:"height"`
	DiggCount    int64    `json:"digg_count"`
	ShareCount   int64    `json:"share_count"`
	CommentCount int64    `json:"comment_count"`
	PlayCount    int64    `json:"play_count"`
	CollectCount int64    `json:"collect_count"`
	Region       string   `json:"region"`

	// Author information
	AuthorID       string `json:"author_id" gorm:"index"`
	AuthorUniqueID string `json:"author_unique_id"`
	AuthorNickname string `json:"author_nickname"`

	PlayAddr string `json:"play_addr,omitempty"`
	URL      string `json:"url"`

	Unset       []string  `json:"unset,omitempty" gorm:"serializer:json"`
	CollectedAt time.Time `json:"collected_at" gorm:"autoUpdateTime"`
}

// UserInfo represents a public profile
type UserInfo struct {
	ID                 string `json:"id" gorm:"primaryKey"`
	UniqueID           string `json:"unique_id" gorm:"index"`
	Nickname           string `json:"nickname"`
	Description        string `json:"description"`
	CreateTime         int64  `json:"create_time"`
	NicknameModifyTime int64  `json:"nickname_modify_time"`
	Verified           bool   `json:"verified"`
	Secret             bool   `json:"secret"`
	PrivateAccount     bool   `json:"private_account"`

	// Statistics
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	HeartCount     int64 `json:"heart_count"`
	VideoCount     int64 `json:"video_count"`
	DiggCount      int64 `json:"digg_count"`
	FriendCount    int64 `json:"friend_count"`

	Language string `json:"language"`
	Region   string `json:"region"`

	Unset       []string  `json:"unset,omitempty" gorm:"serializer:json"`
	CollectedAt time.Time `json:"collected_at" gorm:"autoUpdateTime"`
}

// Comment is a top-level comment or a reply. Replies only ever grow
// through AppendReply, which enforces the declared reply count.
type Comment struct {
	CID         string `json:"cid" gorm:"index"`
	VideoID     string `json:"aweme_id" gorm:"index"`
	AuthorID    string `json:"author_id"`
	AuthorPin   bool   `json:"author_pin"`
	CollectStat int64  `json:"collect_stat"`
	Language    string `json:"comment_language"`
	CreateTime  int64  `json:"create_time"`
	DiggCount   int64  `json:"digg_count"`
	ReplyTotal  int64  `json:"reply_comment_total"`
	Text        string `json:"text"`

	Replies []*Comment `json:"replies" gorm:"-"`
	Unset   []string   `json:"unset,omitempty" gorm:"serializer:json"`

	// Storage placement. Replies link to the row of their parent since CIDs
	// are not unique within a traversal.
	RowID     uint   `json:"-" gorm:"primaryKey"`
	ParentRow uint   `json:"-" gorm:"index"`
	ParentID  string `json:"-"`
	Position  int    `json:"-"`
}

// AppendReply attaches reply, failing once the declared reply count is reached
func (c *Comment) AppendReply(reply *Comment) error {
	if int64(len(c.Replies)) >= c.ReplyTotal {
		return ErrReplyOverflow
	}
	c.Replies = append(c.Replies, reply)
	return nil
}

// Len returns the number of attached replies
func (c *Comment) Len() int {
	return len(c.Replies)
}

// CountAll returns the number of comments in the thread including c
func (c *Comment) CountAll() int {
	n := 1
	for _, r := range c.Replies {
		n += r.CountAll()
	}
	return n
}

// ThreadStatus is the outcome of a comment traversal
type ThreadStatus string

const (
	StatusComplete ThreadStatus = "complete"
	StatusPartial  ThreadStatus = "partial"
	StatusFailed   ThreadStatus = "failed"
)

// ThreadResult is returned by comment traversal. Partial results carry
// the comments collected before Err; failed results carry none.
type ThreadResult struct {
	VideoID  string       `json:"video_id"`
	Status   ThreadStatus `json:"status"`
	Comments []*Comment   `json:"comments"`
	Pages    int          `json:"pages"`
	Err      error        `json:"-"`
}

// Cause returns the failure cause as text, empty when complete
func (r *ThreadResult) Cause() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Total returns the number of comments including replies
func (r *ThreadResult) Total() int {
	n := 0
	for _, c := range r.Comments {
		n += c.CountAll()
	}
	return n
}

// CrawlRun records one comment traversal
type CrawlRun struct {
	ID         string       `json:"id" gorm:"primaryKey"`
	VideoID    string       `json:"video_id" gorm:"index"`
	URL        string       `json:"url"`
	Status     ThreadStatus `json:"status" gorm:"index"`
	Pages      int          `json:"pages"`
	Comments   int          `json:"comments"`
	Error      string       `json:"error"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// DownloadResult describes a downloaded video file
type DownloadResult struct {
	VideoID  string `json:"video_id"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}

// Stats summarizes stored data
type Stats struct {
	Videos      int64 `json:"videos"`
	Users       int64 `json:"users"`
	Comments    int64 `json:"comments"`
	Runs        int64 `json:"runs"`
	PartialRuns int64 `json:"partial_runs"`
	FailedRuns  int64 `json:"failed_runs"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Download struct {
		Timeout  int    `mapstructure:"timeout" yaml:"timeout"`
		SavePath string `mapstructure:"save_path" yaml:"save_path"`
	} `mapstructure:"download" yaml:"download"`

	Database struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Path    string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Type     string `mapstructure:"type" yaml:"type"`
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
	} `mapstructure:"proxy" yaml:"proxy"`

	TikTok struct {
		Cookie          string `mapstructure:"cookie" yaml:"cookie"`
		CookieFile      string `mapstructure:"cookie_file" yaml:"cookie_file"`
		UserAgent       string `mapstructure:"user_agent" yaml:"user_agent"`
		MsToken         string `mapstructure:"ms_token" yaml:"ms_token"`
		Timeout         int    `mapstructure:"timeout" yaml:"timeout"`
		PageSize        int    `mapstructure:"page_size" yaml:"page_size"`
		ReplyPageSize   int    `mapstructure:"reply_page_size" yaml:"reply_page_size"`
		MaxPages        int    `mapstructure:"max_pages" yaml:"max_pages"`
		MaxReplyPages   int    `mapstructure:"max_reply_pages" yaml:"max_reply_pages"`
		ReplyCursorMode string `mapstructure:"reply_cursor_mode" yaml:"reply_cursor_mode"`
	} `mapstructure:"tiktok" yaml:"tiktok"`

	Fields struct {
		Dir string `mapstructure:"dir" yaml:"dir"`
	} `mapstructure:"fields" yaml:"fields"`

	Auth struct {
		Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
		JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry int    `mapstructure:"token_expiry" yaml:"token_expiry"`
	} `mapstructure:"auth" yaml:"auth"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`
}
