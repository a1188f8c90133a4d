package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/registry"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// Scraper is the work a batch performs per URL
type Scraper interface {
	VideoDetails(ctx context.Context, url string) (*models.VideoDetails, error)
	UserInfo(ctx context.Context, url string) (*models.UserInfo, error)
	CollectComments(ctx context.Context, url, msToken string) (*models.ThreadResult, *models.CrawlRun, error)
	Download(ctx context.Context, url, dir string) (*models.DownloadResult, error)
}

// Config holds per-job options
type Config struct {
	Comments   bool
	Download   bool
	OutputPath string
	MsToken    string
}

// JobStatus represents the status of a batch job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Item statuses
const (
	ItemCompleted = "completed"
	ItemPartial   = "partial"
	ItemFailed    = "failed"
	ItemSkipped   = "skipped"
)

// Job is one sequential pass over a list of URLs
type Job struct {
	ID          string     `json:"id"`
	URLs        []string   `json:"urls"`
	Config      Config     `json:"-"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Results     []Result   `json:"results"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress tracks progress of a batch job
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Result is the outcome of one URL
type Result struct {
	URL           string                 `json:"url"`
	Kind          models.RecordKind      `json:"kind,omitempty"`
	Status        string                 `json:"status"`
	Video         *models.VideoDetails   `json:"video,omitempty"`
	User          *models.UserInfo       `json:"user,omitempty"`
	CommentStatus models.ThreadStatus    `json:"comment_status,omitempty"`
	Comments      int                    `json:"comments,omitempty"`
	Download      *models.DownloadResult `json:"download,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Duration      time.Duration          `json:"duration"`
}

// Runner processes batch jobs one URL at a time
type Runner struct {
	scraper  Scraper
	registry *registry.Registry
	onResult func(index int, result Result)
	logger   zerolog.Logger
}

// NewRunner creates a batch runner
func NewRunner(scraper Scraper, reg *registry.Registry) *Runner {
	return &Runner{
		scraper:  scraper,
		registry: reg,
		logger:   zerolog.Nop(),
	}
}

// SetLogger sets the logger
func (r *Runner) SetLogger(logger zerolog.Logger) {
	r.logger = logger.With().Str("component", "batch").Logger()
}

// OnResult registers a callback invoked after each URL
func (r *Runner) OnResult(fn func(index int, result Result)) {
	r.onResult = fn
}

// Run processes urls in order. Cancelling ctx skips the remaining URLs.
func (r *Runner) Run(ctx context.Context, urls []string, config Config) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		URLs:      urls,
		Config:    config,
		Status:    JobStatusRunning,
		Progress:  Progress{Total: len(urls)},
		StartedAt: time.Now(),
	}

	r.logger.Info().Str("job_id", job.ID).Int("urls", len(urls)).Msg("Starting batch job")

	for i, url := range urls {
		var result Result
		if ctx.Err() != nil {
			result = Result{URL: url, Status: ItemSkipped, Error: ctx.Err().Error()}
		} else {
			result = r.process(ctx, url, config)
		}

		job.Results = append(job.Results, result)
		switch result.Status {
		case ItemCompleted:
			job.Progress.Completed++
		case ItemPartial:
			job.Progress.Partial++
		case ItemFailed:
			job.Progress.Failed++
		case ItemSkipped:
			job.Progress.Skipped++
		}

		if r.onResult != nil {
			r.onResult(i, result)
		}
	}

	now := time.Now()
	job.CompletedAt = &now
	job.Status = finalStatus(ctx, job.Progress)

	r.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("completed", job.Progress.Completed).
		Int("failed", job.Progress.Failed).
		Msg("Batch job completed")
	return job
}

func (r *Runner) process(ctx context.Context, url string, config Config) Result {
	start := time.Now()
	result := Result{URL: url}

	kind, err := r.registry.Detect(url)
	if err != nil {
		result.Status = ItemFailed
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	result.Kind = kind

	var problems []string
	switch kind {
	case models.KindUser:
		result.User, err = r.scraper.UserInfo(ctx, url)
		if err != nil {
			problems = append(problems, err.Error())
		}
	case models.KindVideo:
		result.Video, err = r.scraper.VideoDetails(ctx, url)
		if err != nil {
			problems = append(problems, err.Error())
		}

		if config.Comments {
			threads, _, err := r.scraper.CollectComments(ctx, url, config.MsToken)
			result.CommentStatus = threads.Status
			result.Comments = threads.Total()
			if threads.Err != nil {
				problems = append(problems, "comments: "+threads.Cause())
			}
			if err != nil {
				problems = append(problems, err.Error())
			}
		}

		if config.Download {
			result.Download, err = r.scraper.Download(ctx, url, config.OutputPath)
			if err != nil {
				problems = append(problems, "download: "+err.Error())
			}
		}
	}

	result.Status = itemStatus(result, problems)
	result.Error = strings.Join(problems, "; ")
	result.Duration = time.Since(start)
	return result
}

// itemStatus is failed when nothing was collected and partial when some step failed
func itemStatus(result Result, problems []string) string {
	if result.Video == nil && result.User == nil && result.Comments == 0 && result.Download == nil {
		return ItemFailed
	}
	if len(problems) > 0 {
		return ItemPartial
	}
	return ItemCompleted
}

func finalStatus(ctx context.Context, p Progress) JobStatus {
	switch {
	case ctx.Err() != nil && p.Skipped > 0:
		return JobStatusCancelled
	case p.Total > 0 && p.Failed == p.Total:
		return JobStatusFailed
	case p.Failed > 0 || p.Partial > 0:
		return JobStatusPartial
	default:
		return JobStatusCompleted
	}
}

// ReadURLs reads one URL per line, skipping blank lines and # comments
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}
