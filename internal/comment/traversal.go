package comment

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/extract"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// ErrPageLimit is reported when a traversal stops at the configured page cap
var ErrPageLimit = errors.New("page limit reached")

// rootKey holds the comment list in both the comment and the reply responses
const rootKey = "comments"

// Source returns raw decoded pages from the comment endpoints
type Source interface {
	ListComments(ctx context.Context, videoID string, cursor, count int) (any, error)
	ListReplies(ctx context.Context, videoID, commentID string, cursor, count int) (any, error)
}

// CursorMode controls how the reply cursor advances between pages
type CursorMode string

const (
	// ReplyCursorPage advances the reply cursor by one per page
	ReplyCursorPage CursorMode = "page"
	// ReplyCursorOffset advances the reply cursor by the page size
	ReplyCursorOffset CursorMode = "offset"
)

// Config holds pagination settings. A zero MaxPages or MaxReplyPages disables that cap.
type Config struct {
	PageSize      int
	ReplyPageSize int
	MaxPages      int
	MaxReplyPages int
	ReplyCursor   CursorMode
}

// DefaultConfig returns the pagination the web client uses
func DefaultConfig() Config {
	return Config{
		PageSize:      20,
		ReplyPageSize: 20,
		MaxPages:      1000,
		MaxReplyPages: 500,
		ReplyCursor:   ReplyCursorPage,
	}
}

// Observer is notified of traversal progress
type Observer interface {
	PageFetched(kind string, comments int)
	FetchFailed(kind string, err error)
	TraversalFinished(status models.ThreadStatus, comments int)
}

type nopObserver struct{}

func (nopObserver) PageFetched(string, int) {}
func (nopObserver) FetchFailed(string, error) {}
func (nopObserver) TraversalFinished(models.ThreadStatus, int) {}

// Traverser walks the paginated comment endpoints of one video
type Traverser struct {
	source   Source
	spec     extract.Spec
	config   Config
	observer Observer
	logger   zerolog.Logger
}

// NewTraverser creates a traverser building comments with spec
func NewTraverser(source Source, spec extract.Spec, config Config) *Traverser {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.ReplyPageSize <= 0 {
		config.ReplyPageSize = defaults.ReplyPageSize
	}
	if config.ReplyCursor == "" {
		config.ReplyCursor = defaults.ReplyCursor
	}

	return &Traverser{
		source:   source,
		spec:     spec,
		config:   config,
		observer: nopObserver{},
		logger:   zerolog.New(os.Stderr).With().Timestamp().Str("component", "comment_traverser").Logger(),
	}
}

// SetLogger replaces the traverser logger
func (t *Traverser) SetLogger(logger zerolog.Logger) {
	t.logger = logger.With().Str("component", "comment_traverser").Logger()
}

// SetObserver registers a progress observer
func (t *Traverser) SetObserver(observer Observer) {
	if observer == nil {
		observer = nopObserver{}
	}
	t.observer = observer
}

// FetchTopLevel collects all top-level comments starting at cursor, each with
// its replies attached. Pagination stops on the first empty page.
func (t *Traverser) FetchTopLevel(ctx context.Context, videoID string, cursor int) *models.ThreadResult {
	result := &models.ThreadResult{VideoID: videoID}
	var causes []error
	fetched := 0

	for {
		if t.config.MaxPages > 0 && fetched >= t.config.MaxPages {
			causes = append(causes, fmt.Errorf("%w: %d comment pages", ErrPageLimit, fetched))
			break
		}
		if err := ctx.Err(); err != nil {
			if fetched == 0 {
				return t.finish(result, []error{err}, true)
			}
			causes = append(causes, err)
			break
		}

		tree, err := t.source.ListComments(ctx, videoID, cursor, t.config.PageSize)
		fetched++
		if err != nil {
			t.observer.FetchFailed("comments", err)
			err = fmt.Errorf("fetch comments at cursor %d: %w", cursor, err)
			if fetched == 1 {
				return t.finish(result, []error{err}, true)
			}
			causes = append(causes, err)
			break
		}

		items := pageItems(tree)
		t.observer.PageFetched("comments", len(items))
		if len(items) == 0 {
			break
		}
		result.Pages++

		t.logger.Debug().
			Str("video_id", videoID).
			Int("cursor", cursor).
			Int("comments", len(items)).
			Msg("Fetched comment page")

		for _, item := range items {
			c := t.build(item)
			if c.ReplyTotal >= 1 && c.CID != "" {
				replies, err := t.FetchReplies(ctx, videoID, c.CID, 0)
				if err != nil {
					causes = append(causes, fmt.Errorf("replies of %s: %w", c.CID, err))
				}
				for _, reply := range replies {
					if err := c.AppendReply(reply); err != nil {
						return t.finish(result, []error{fmt.Errorf("comment %s: %w", c.CID, err)}, true)
					}
				}
			}
			result.Comments = append(result.Comments, c)
		}

		cursor += t.config.PageSize
	}

	return t.finish(result, causes, false)
}

// FetchReplies collects the replies of one comment starting at cursor. On
// failure the replies fetched so far are returned with the error.
func (t *Traverser) FetchReplies(ctx context.Context, videoID, commentID string, cursor int) ([]*models.Comment, error) {
	var replies []*models.Comment
	fetched := 0

	for {
		if t.config.MaxReplyPages > 0 && fetched >= t.config.MaxReplyPages {
			return replies, fmt.Errorf("%w: %d reply pages", ErrPageLimit, fetched)
		}
		if err := ctx.Err(); err != nil {
			return replies, err
		}

		tree, err := t.source.ListReplies(ctx, videoID, commentID, cursor, t.config.ReplyPageSize)
		fetched++
		if err != nil {
			t.observer.FetchFailed("replies", err)
			return replies, fmt.Errorf("fetch replies at cursor %d: %w", cursor, err)
		}

		items := pageItems(tree)
		t.observer.PageFetched("replies", len(items))
		if len(items) == 0 {
			return replies, nil
		}

		for _, item := range items {
			replies = append(replies, t.build(item))
		}
		cursor += t.replyStep()
	}
}

func (t *Traverser) replyStep() int {
	if t.config.ReplyCursor == ReplyCursorOffset {
		return t.config.ReplyPageSize
	}
	return 1
}

func (t *Traverser) finish(result *models.ThreadResult, causes []error, fatal bool) *models.ThreadResult {
	switch {
	case fatal:
		result.Status = models.StatusFailed
		result.Comments = nil
		result.Err = errors.Join(causes...)
	case len(causes) > 0:
		result.Status = models.StatusPartial
		result.Err = errors.Join(causes...)
	default:
		result.Status = models.StatusComplete
	}

	event := t.logger.Info()
	if result.Err != nil {
		event = t.logger.Warn().Err(result.Err)
	}
	event.Str("video_id", result.VideoID).
		Str("status", string(result.Status)).
		Int("pages", result.Pages).
		Int("comments", result.Total()).
		Msg("Comment traversal finished")

	t.observer.TraversalFinished(result.Status, result.Total())
	return result
}

func (t *Traverser) build(item any) *models.Comment {
	return FromRecord(extract.Build(t.spec, item))
}

// pageItems returns the comment list of a page. A missing, null or
// non-list root key is an empty page.
func pageItems(tree any) []any {
	v, err := extract.Extract(tree, extract.Path{{Key: rootKey}})
	if err != nil {
		return nil
	}
	items, _ := v.([]any)
	return items
}

// FromRecord maps a built comment record onto a Comment. Fields missing
// from the record or holding an unexpected type are listed in Unset.
func FromRecord(rec extract.Record) *models.Comment {
	r := extract.NewReader(rec)
	c := &models.Comment{
		AuthorID:    r.String("author_id"),
		AuthorPin:   r.Bool("author_pin"),
		VideoID:     r.String("aweme_id"),
		CID:         r.String("cid"),
		CollectStat: r.Int64("collect_stat"),
		Language:    r.String("comment_language"),
		CreateTime:  r.Int64("create_time"),
		DiggCount:   r.Int64("digg_count"),
		ReplyTotal:  r.Int64("reply_comment_total"),
		Text:        r.String("text"),
	}
	c.Unset = r.Unset()
	return c
}
