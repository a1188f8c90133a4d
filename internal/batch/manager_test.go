package batch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DuyanhLexq/TikTokAPI/internal/registry"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

type fakeScraper struct {
	failVideo    map[string]bool
	commentState models.ThreadStatus
	calls        []string
	cancel       context.CancelFunc
}

func (f *fakeScraper) VideoDetails(ctx context.Context, url string) (*models.VideoDetails, error) {
	f.calls = append(f.calls, "video "+url)
	if f.cancel != nil {
		f.cancel()
	}
	if f.failVideo[url] {
		return nil, models.ErrTransport
	}
	return &models.VideoDetails{VideoID: "1", URL: url}, nil
}

func (f *fakeScraper) UserInfo(ctx context.Context, url string) (*models.UserInfo, error) {
	f.calls = append(f.calls, "user "+url)
	return &models.UserInfo{ID: "u", UniqueID: "gopher"}, nil
}

func (f *fakeScraper) CollectComments(ctx context.Context, url, msToken string) (*models.ThreadResult, *models.CrawlRun, error) {
	f.calls = append(f.calls, "comments "+url)
	result := &models.ThreadResult{Status: models.StatusComplete, Comments: []*models.Comment{{CID: "c"}}}
	if f.commentState == models.StatusPartial {
		result.Status = models.StatusPartial
		result.Err = errors.New("page limit reached")
	}
	return result, &models.CrawlRun{}, nil
}

func (f *fakeScraper) Download(ctx context.Context, url, dir string) (*models.DownloadResult, error) {
	f.calls = append(f.calls, "download "+url)
	return &models.DownloadResult{FilePath: dir + "/v.mp4"}, nil
}

const (
	video1 = "https://www.tiktok.com/@a/video/1111111"
	video2 = "https://www.tiktok.com/@b/video/2222222"
	user   = "https://www.tiktok.com/@c"
)

func TestRunSequential(t *testing.T) {
	scraper := &fakeScraper{}
	runner := NewRunner(scraper, registry.NewRegistry())

	var seen []int
	runner.OnResult(func(i int, r Result) { seen = append(seen, i) })

	job := runner.Run(context.Background(), []string{video1, user}, Config{Comments: true, Download: true, OutputPath: "out"})

	want := []string{"video " + video1, "comments " + video1, "download " + video1, "user " + user}
	if strings.Join(scraper.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", scraper.calls, want)
	}
	if job.Status != JobStatusCompleted || job.Progress.Completed != 2 {
		t.Errorf("job = %s %+v", job.Status, job.Progress)
	}
	if len(seen) != 2 || seen[1] != 1 {
		t.Errorf("callbacks = %v", seen)
	}
	if job.Results[0].Comments != 1 || job.Results[0].Download.FilePath != "out/v.mp4" {
		t.Errorf("video result = %+v", job.Results[0])
	}
}

func TestRunStatuses(t *testing.T) {
	tests := []struct {
		name    string
		urls    []string
		scraper *fakeScraper
		config  Config
		want    JobStatus
		items   []string
	}{
		{
			name:    "invalid url fails",
			urls:    []string{"https://example.com/x"},
			scraper: &fakeScraper{},
			want:    JobStatusFailed,
			items:   []string{ItemFailed},
		},
		{
			name:    "one failure is partial",
			urls:    []string{video1, video2},
			scraper: &fakeScraper{failVideo: map[string]bool{video2: true}},
			want:    JobStatusPartial,
			items:   []string{ItemCompleted, ItemFailed},
		},
		{
			name:    "partial comments",
			urls:    []string{video1},
			scraper: &fakeScraper{commentState: models.StatusPartial},
			config:  Config{Comments: true},
			want:    JobStatusPartial,
			items:   []string{ItemPartial},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewRunner(tt.scraper, registry.NewRegistry()).Run(context.Background(), tt.urls, tt.config)
			if job.Status != tt.want {
				t.Errorf("status = %s, want %s", job.Status, tt.want)
			}
			for i, want := range tt.items {
				if job.Results[i].Status != want {
					t.Errorf("item %d = %s, want %s (%s)", i, job.Results[i].Status, want, job.Results[i].Error)
				}
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scraper := &fakeScraper{cancel: cancel}

	job := NewRunner(scraper, registry.NewRegistry()).Run(ctx, []string{video1, video2}, Config{})

	if job.Status != JobStatusCancelled || job.Progress.Skipped != 1 {
		t.Errorf("job = %s %+v", job.Status, job.Progress)
	}
	if len(scraper.calls) != 1 {
		t.Errorf("calls after cancel = %v", scraper.calls)
	}
}

func TestReadURLs(t *testing.T) {
	input := "# videos\n" + video1 + "\n\n  " + user + "  \n"
	urls, err := ReadURLs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadURLs failed: %v", err)
	}
	if len(urls) != 2 || urls[1] != user {
		t.Errorf("urls = %q", urls)
	}
}
