package comment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/DuyanhLexq/TikTokAPI/internal/fieldspec"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

type fakeSource struct {
	pages        []any
	pageErrs     map[int]error
	replies      map[string][]any
	replyErr     error
	commentCalls []int
	replyCalls   map[string][]int
}

func (f *fakeSource) ListComments(ctx context.Context, videoID string, cursor, count int) (any, error) {
	call := len(f.commentCalls)
	f.commentCalls = append(f.commentCalls, cursor)
	if err := f.pageErrs[call]; err != nil {
		return nil, err
	}
	if call < len(f.pages) {
		return f.pages[call], nil
	}
	return map[string]any{"comments": []any{}}, nil
}

func (f *fakeSource) ListReplies(ctx context.Context, videoID, commentID string, cursor, count int) (any, error) {
	if f.replyCalls == nil {
		f.replyCalls = make(map[string][]int)
	}
	call := len(f.replyCalls[commentID])
	f.replyCalls[commentID] = append(f.replyCalls[commentID], cursor)
	if f.replyErr != nil && call > 0 {
		return nil, f.replyErr
	}
	pages := f.replies[commentID]
	if call < len(pages) {
		return pages[call], nil
	}
	return map[string]any{"comments": nil}, nil
}

func page(items ...map[string]any) any {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = item
	}
	return map[string]any{"comments": list, "has_more": 1}
}

func item(cid string, replyTotal int) map[string]any {
	return map[string]any{
		"cid":                 cid,
		"aweme_id":            "7300000000000000000",
		"text":                "comment " + cid,
		"digg_count":          3,
		"reply_comment_total": replyTotal,
		"comment_language":    "en",
		"create_time":         1700000000,
		"author_pin":          false,
		"collect_stat":        0,
		"user":                map[string]any{"uid": "user-" + cid},
	}
}

func newTestTraverser(t *testing.T, source Source, config Config) *Traverser {
	t.Helper()
	set, err := fieldspec.LoadDefaults()
	if err != nil {
		t.Fatalf("load field spec: %v", err)
	}
	return NewTraverser(source, set.Comment, config)
}

func TestFetchTopLevelSinglePage(t *testing.T) {
	source := &fakeSource{pages: []any{page(item("1", 0), item("2", 0))}}
	tr := newTestTraverser(t, source, DefaultConfig())

	result := tr.FetchTopLevel(context.Background(), "7300000000000000000", 0)

	if result.Status != models.StatusComplete {
		t.Fatalf("status = %s, want complete (err %v)", result.Status, result.Err)
	}
	if len(result.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(result.Comments))
	}
	if len(source.commentCalls) != 2 {
		t.Errorf("comment fetches = %d, want 2", len(source.commentCalls))
	}
	for _, c := range result.Comments {
		if len(c.Replies) != 0 {
			t.Errorf("comment %s has %d replies, want 0", c.CID, len(c.Replies))
		}
	}
	if len(source.replyCalls) != 0 {
		t.Errorf("reply fetches = %v, want none", source.replyCalls)
	}

	first := result.Comments[0]
	if first.CID != "1" || first.AuthorID != "user-1" || first.Text != "comment 1" || first.DiggCount != 3 {
		t.Errorf("unexpected first comment: %+v", first)
	}
	if len(first.Unset) != 0 {
		t.Errorf("unexpected unset fields: %v", first.Unset)
	}
}

func TestFetchTopLevelPagination(t *testing.T) {
	const pages, perPage = 4, 3

	source := &fakeSource{}
	for p := 0; p < pages; p++ {
		var items []map[string]any
		for i := 0; i < perPage; i++ {
			items = append(items, item(fmt.Sprintf("%d-%d", p, i), 0))
		}
		source.pages = append(source.pages, page(items...))
	}

	config := DefaultConfig()
	config.PageSize = perPage
	tr := newTestTraverser(t, source, config)

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusComplete {
		t.Fatalf("status = %s, want complete", result.Status)
	}
	if len(result.Comments) != pages*perPage {
		t.Errorf("comments = %d, want %d", len(result.Comments), pages*perPage)
	}
	if len(source.commentCalls) != pages+1 {
		t.Errorf("fetch calls = %d, want %d", len(source.commentCalls), pages+1)
	}
	want := []int{0, 3, 6, 9, 12}
	if !reflect.DeepEqual(source.commentCalls, want) {
		t.Errorf("cursors = %v, want %v", source.commentCalls, want)
	}
	if result.Pages != pages {
		t.Errorf("pages = %d, want %d", result.Pages, pages)
	}
}

func TestFetchTopLevelAttachesReplies(t *testing.T) {
	source := &fakeSource{
		pages: []any{page(item("1", 3), item("2", 0))},
		replies: map[string][]any{
			"1": {page(item("r1", 0), item("r2", 0)), page(item("r3", 0))},
		},
	}
	tr := newTestTraverser(t, source, DefaultConfig())

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusComplete {
		t.Fatalf("status = %s, want complete (err %v)", result.Status, result.Err)
	}
	if got := len(result.Comments[0].Replies); got != 3 {
		t.Errorf("replies = %d, want 3", got)
	}
	if result.Total() != 5 {
		t.Errorf("total = %d, want 5", result.Total())
	}
	if want := []int{0, 1, 2}; !reflect.DeepEqual(source.replyCalls["1"], want) {
		t.Errorf("reply cursors = %v, want %v", source.replyCalls["1"], want)
	}
}

func TestFetchRepliesOffsetCursor(t *testing.T) {
	source := &fakeSource{
		replies: map[string][]any{"1": {page(item("r1", 0)), page(item("r2", 0))}},
	}
	config := DefaultConfig()
	config.ReplyCursor = ReplyCursorOffset
	config.ReplyPageSize = 10
	tr := newTestTraverser(t, source, config)

	replies, err := tr.FetchReplies(context.Background(), "v", "1", 0)
	if err != nil {
		t.Fatalf("FetchReplies failed: %v", err)
	}
	if len(replies) != 2 {
		t.Errorf("replies = %d, want 2", len(replies))
	}
	if want := []int{0, 10, 20}; !reflect.DeepEqual(source.replyCalls["1"], want) {
		t.Errorf("reply cursors = %v, want %v", source.replyCalls["1"], want)
	}
}

func TestFetchTopLevelReplyOverflow(t *testing.T) {
	source := &fakeSource{
		pages: []any{page(item("1", 1))},
		replies: map[string][]any{
			"1": {page(item("r1", 0), item("r2", 0))},
		},
	}
	tr := newTestTraverser(t, source, DefaultConfig())

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if !errors.Is(result.Err, models.ErrReplyOverflow) {
		t.Errorf("err = %v, want ErrReplyOverflow", result.Err)
	}
	if len(result.Comments) != 0 {
		t.Errorf("failed result carries %d comments", len(result.Comments))
	}
}

func TestFetchTopLevelFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		source     *fakeSource
		wantStatus models.ThreadStatus
		wantCount  int
	}{
		{
			name:       "first page fails",
			source:     &fakeSource{pageErrs: map[int]error{0: boom}},
			wantStatus: models.StatusFailed,
			wantCount:  0,
		},
		{
			name: "second page fails",
			source: &fakeSource{
				pages:    []any{page(item("1", 0), item("2", 0))},
				pageErrs: map[int]error{1: boom},
			},
			wantStatus: models.StatusPartial,
			wantCount:  2,
		},
		{
			name: "reply page fails",
			source: &fakeSource{
				pages:    []any{page(item("1", 5))},
				replies:  map[string][]any{"1": {page(item("r1", 0))}},
				replyErr: boom,
			},
			wantStatus: models.StatusPartial,
			wantCount:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTraverser(t, tt.source, DefaultConfig())
			result := tr.FetchTopLevel(context.Background(), "v", 0)

			if result.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", result.Status, tt.wantStatus)
			}
			if !errors.Is(result.Err, boom) {
				t.Errorf("err = %v, want wrapped boom", result.Err)
			}
			if result.Total() != tt.wantCount {
				t.Errorf("total = %d, want %d", result.Total(), tt.wantCount)
			}
		})
	}
}

func TestFetchTopLevelPageCap(t *testing.T) {
	source := &fakeSource{pages: []any{page(item("1", 0)), page(item("2", 0)), page(item("3", 0))}}
	config := DefaultConfig()
	config.MaxPages = 2
	tr := newTestTraverser(t, source, config)

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
	if !errors.Is(result.Err, ErrPageLimit) {
		t.Errorf("err = %v, want ErrPageLimit", result.Err)
	}
	if len(source.commentCalls) != 2 {
		t.Errorf("fetch calls = %d, want 2", len(source.commentCalls))
	}
	if len(result.Comments) != 2 {
		t.Errorf("comments = %d, want 2", len(result.Comments))
	}
}

func TestFetchTopLevelEmptyShapes(t *testing.T) {
	shapes := []any{
		map[string]any{},
		map[string]any{"comments": nil},
		map[string]any{"comments": "not a list"},
		[]any{},
	}

	for i, shape := range shapes {
		source := &fakeSource{pages: []any{shape}}
		tr := newTestTraverser(t, source, DefaultConfig())
		result := tr.FetchTopLevel(context.Background(), "v", 0)

		if result.Status != models.StatusComplete || len(result.Comments) != 0 {
			t.Errorf("shape %d: status %s with %d comments", i, result.Status, len(result.Comments))
		}
		if len(source.commentCalls) != 1 {
			t.Errorf("shape %d: fetch calls = %d, want 1", i, len(source.commentCalls))
		}
	}
}

func TestFetchTopLevelMalformedItems(t *testing.T) {
	source := &fakeSource{pages: []any{map[string]any{"comments": []any{"junk", map[string]any{"cid": 5}}}}}
	tr := newTestTraverser(t, source, DefaultConfig())

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusComplete {
		t.Fatalf("status = %s, want complete", result.Status)
	}
	if len(result.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(result.Comments))
	}
	if len(result.Comments[0].Unset) != 10 {
		t.Errorf("junk item unset = %v, want all fields", result.Comments[0].Unset)
	}
	if result.Comments[1].CID != "5" {
		t.Errorf("numeric cid = %q, want 5", result.Comments[1].CID)
	}
}

type cancelingSource struct {
	*fakeSource
	cancel context.CancelFunc
}

func (c *cancelingSource) ListComments(ctx context.Context, videoID string, cursor, count int) (any, error) {
	defer c.cancel()
	return c.fakeSource.ListComments(ctx, videoID, cursor, count)
}

func TestFetchTopLevelCanceled(t *testing.T) {
	t.Run("before first page", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		source := &fakeSource{pages: []any{page(item("1", 0))}}
		tr := newTestTraverser(t, source, DefaultConfig())
		result := tr.FetchTopLevel(ctx, "v", 0)

		if result.Status != models.StatusFailed {
			t.Errorf("status = %s, want failed", result.Status)
		}
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", result.Err)
		}
		if len(source.commentCalls) != 0 || result.Comments != nil {
			t.Errorf("fetch calls = %d, comments = %d", len(source.commentCalls), len(result.Comments))
		}
	})

	t.Run("after first page", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		source := &cancelingSource{
			fakeSource: &fakeSource{pages: []any{page(item("1", 0)), page(item("2", 0))}},
			cancel:     cancel,
		}
		tr := newTestTraverser(t, source, DefaultConfig())
		result := tr.FetchTopLevel(ctx, "v", 0)

		if result.Status != models.StatusPartial {
			t.Errorf("status = %s, want partial", result.Status)
		}
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", result.Err)
		}
		if result.Pages != 1 || len(result.Comments) != 1 {
			t.Errorf("pages = %d, comments = %d, want 1 and 1", result.Pages, len(result.Comments))
		}
	})
}

func TestFetchTopLevelSkipsRepliesWithoutCID(t *testing.T) {
	source := &fakeSource{pages: []any{page(item("", 2), item("7", 0))}}
	tr := newTestTraverser(t, source, DefaultConfig())

	result := tr.FetchTopLevel(context.Background(), "v", 0)

	if result.Status != models.StatusComplete || len(result.Comments) != 2 {
		t.Fatalf("status = %s, comments = %d", result.Status, len(result.Comments))
	}
	if len(source.replyCalls) != 0 {
		t.Errorf("reply calls = %v, want none", source.replyCalls)
	}
}

type countingObserver struct {
	pages    map[string]int
	failures int
	status   models.ThreadStatus
	total    int
}

func (o *countingObserver) PageFetched(kind string, comments int) { o.pages[kind]++ }
func (o *countingObserver) FetchFailed(kind string, err error) { o.failures++ }
func (o *countingObserver) TraversalFinished(status models.ThreadStatus, comments int) {
	o.status = status
	o.total = comments
}

func TestObserver(t *testing.T) {
	source := &fakeSource{
		pages:   []any{page(item("1", 1))},
		replies: map[string][]any{"1": {page(item("r1", 0))}},
	}
	obs := &countingObserver{pages: make(map[string]int)}
	tr := newTestTraverser(t, source, DefaultConfig())
	tr.SetObserver(obs)

	tr.FetchTopLevel(context.Background(), "v", 0)

	if obs.pages["comments"] != 2 || obs.pages["replies"] != 2 {
		t.Errorf("pages = %v", obs.pages)
	}
	if obs.status != models.StatusComplete || obs.total != 2 {
		t.Errorf("finished with %s/%d", obs.status, obs.total)
	}
}

func TestGetStats(t *testing.T) {
	root := &models.Comment{CID: "1", AuthorID: "a", DiggCount: 4, ReplyTotal: 3, Language: "en", Text: "hi @bob and @alice"}
	_ = root.AppendReply(&models.Comment{CID: "2", AuthorID: "b", DiggCount: 2, Language: "en", Text: "@bob"})
	other := &models.Comment{CID: "3", AuthorID: "a", Language: "vi", AuthorPin: true}

	stats := GetStats([]*models.Comment{root, other})

	if stats.TopLevel != 2 || stats.Replies != 1 {
		t.Errorf("counts = %d/%d", stats.TopLevel, stats.Replies)
	}
	if stats.MissingReplies != 2 {
		t.Errorf("missing replies = %d, want 2", stats.MissingReplies)
	}
	if stats.TotalLikes != 6 || stats.UniqueAuthors != 2 || stats.PinnedByAuthor != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Languages["en"] != 2 || stats.Languages["vi"] != 1 {
		t.Errorf("languages = %v", stats.Languages)
	}
	if want := []string{"bob", "alice"}; !reflect.DeepEqual(stats.TopMentions, want) {
		t.Errorf("mentions = %v, want %v", stats.TopMentions, want)
	}
}
