package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/comment"
	"github.com/DuyanhLexq/TikTokAPI/internal/cookie"
	"github.com/DuyanhLexq/TikTokAPI/internal/fieldspec"
	"github.com/DuyanhLexq/TikTokAPI/internal/monitor"
	"github.com/DuyanhLexq/TikTokAPI/internal/platform/tiktok"
	"github.com/DuyanhLexq/TikTokAPI/internal/registry"
	"github.com/DuyanhLexq/TikTokAPI/internal/utils"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// Options carries optional collaborators of a Manager
type Options struct {
	// Fetcher replaces the HTTP client built from the config
	Fetcher models.Fetcher
	// Storage persists extracted records when set
	Storage models.Storage
	// Monitor receives metrics when set
	Monitor *monitor.Monitor
}

// Manager wires configuration, transport, extraction and storage together
type Manager struct {
	config    *models.Config
	http      *utils.HTTPClient
	extractor *tiktok.Extractor
	storage   models.Storage
	monitor   *monitor.Monitor
	logger    zerolog.Logger
}

// NewManager creates a scraper from cfg
func NewManager(cfg *models.Config, opts Options) (*Manager, error) {
	specs, err := loadSpecs(cfg.Fields.Dir)
	if err != nil {
		return nil, err
	}

	cookies, err := cookie.Resolve(cfg.TikTok.Cookie, cfg.TikTok.CookieFile, time.Now())
	if err != nil {
		return nil, fmt.Errorf("error loading cookies: %w", err)
	}

	m := &Manager{
		config:  cfg,
		storage: opts.Storage,
		monitor: opts.Monitor,
		logger:  zerolog.New(os.Stderr).With().Timestamp().Str("component", "scraper").Logger(),
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		m.http = utils.NewHTTPClient(utils.ClientConfig{
			Timeout:         seconds(cfg.TikTok.Timeout, 30),
			StreamTimeout:   seconds(cfg.Download.Timeout, 300),
			MaxIdleConns:    20,
			IdleConnTimeout: 90 * time.Second,
			ProxyURL:        proxyURL(cfg),
			UserAgent:       cfg.TikTok.UserAgent,
		})
		fetcher = m.http
	}

	client := tiktok.NewClient(fetcher, tiktok.Options{
		Cookie:    cookies,
		UserAgent: cfg.TikTok.UserAgent,
		MsToken:   cfg.TikTok.MsToken,
	})
	m.extractor = tiktok.NewExtractor(client, specs, Paging(cfg))
	if m.monitor != nil {
		m.extractor.SetObserver(m.monitor)
	}

	return m, nil
}

// Paging converts the tiktok config section into traversal settings
func Paging(cfg *models.Config) comment.Config {
	paging := comment.DefaultConfig()
	if cfg.TikTok.PageSize > 0 {
		paging.PageSize = cfg.TikTok.PageSize
	}
	if cfg.TikTok.ReplyPageSize > 0 {
		paging.ReplyPageSize = cfg.TikTok.ReplyPageSize
	}
	if cfg.TikTok.MaxPages > 0 {
		paging.MaxPages = cfg.TikTok.MaxPages
	}
	if cfg.TikTok.MaxReplyPages > 0 {
		paging.MaxReplyPages = cfg.TikTok.MaxReplyPages
	}
	if cfg.TikTok.ReplyCursorMode == string(comment.ReplyCursorOffset) {
		paging.ReplyCursor = comment.ReplyCursorOffset
	}
	return paging
}

func loadSpecs(dir string) (*fieldspec.Set, error) {
	if dir == "" {
		return fieldspec.LoadDefaults()
	}
	specs, err := fieldspec.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load field specs from %s: %w", dir, err)
	}
	return specs, nil
}

func proxyURL(cfg *models.Config) string {
	if !cfg.Proxy.Enabled || cfg.Proxy.Host == "" {
		return ""
	}
	return utils.ProxyURL(cfg.Proxy.Type, cfg.Proxy.Host, cfg.Proxy.Port, cfg.Proxy.Username, cfg.Proxy.Password)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// SetLogger sets the logger of the manager and its collaborators
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = logger.With().Str("component", "scraper").Logger()
	m.extractor.SetLogger(logger)
	if m.http != nil {
		m.http.SetLogger(logger)
	}
	if m.monitor != nil {
		m.monitor.SetLogger(logger)
	}
}

// Storage returns the configured storage, nil when persistence is off
func (m *Manager) Storage() models.Storage {
	return m.storage
}

// Config returns the configuration the manager was built from
func (m *Manager) Config() *models.Config {
	return m.config
}

// VideoDetails extracts and stores the details of the video at url
func (m *Manager) VideoDetails(ctx context.Context, url string) (*models.VideoDetails, error) {
	details, err := m.extractor.VideoDetails(ctx, url)
	m.recordExtraction(models.KindVideo, err)
	if err != nil {
		return nil, err
	}

	if m.storage != nil {
		if err := m.storage.SaveVideoDetails(details); err != nil {
			return details, fmt.Errorf("save video %s: %w", details.VideoID, err)
		}
	}
	return details, nil
}

// UserInfo extracts and stores the profile at url
func (m *Manager) UserInfo(ctx context.Context, url string) (*models.UserInfo, error) {
	info, err := m.extractor.UserInfo(ctx, url)
	m.recordExtraction(models.KindUser, err)
	if err != nil {
		return nil, err
	}

	if m.storage != nil {
		if err := m.storage.SaveUserInfo(info); err != nil {
			return info, fmt.Errorf("save user %s: %w", info.UniqueID, err)
		}
	}
	return info, nil
}

// CollectComments traverses the comment threads of the video at url and
// records the run. A complete result replaces the stored threads; a partial
// result is stored only when it holds more comments than what is stored.
// The returned error reports persistence failures only.
func (m *Manager) CollectComments(ctx context.Context, url, msToken string) (*models.ThreadResult, *models.CrawlRun, error) {
	run := &models.CrawlRun{URL: url, StartedAt: time.Now()}

	result := m.extractor.Comments(ctx, url, msToken)

	run.VideoID = result.VideoID
	run.Status = result.Status
	run.Pages = result.Pages
	run.Comments = result.Total()
	run.Error = result.Cause()
	run.FinishedAt = time.Now()

	m.logger.Info().
		Str("video_id", run.VideoID).
		Str("status", string(run.Status)).
		Int("pages", run.Pages).
		Int("comments", run.Comments).
		Dur("took", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Comment collection finished")

	if m.storage == nil {
		return result, run, nil
	}

	replace, err := m.replacesStored(result)
	if err != nil {
		return result, run, fmt.Errorf("load comments of %s: %w", result.VideoID, err)
	}
	if replace {
		if err := m.storage.SaveCommentThreads(result.VideoID, result.Comments); err != nil {
			return result, run, fmt.Errorf("save comments of %s: %w", result.VideoID, err)
		}
	}
	if err := m.storage.SaveCrawlRun(run); err != nil {
		return result, run, fmt.Errorf("save crawl run: %w", err)
	}
	return result, run, nil
}

func (m *Manager) replacesStored(result *models.ThreadResult) (bool, error) {
	switch result.Status {
	case models.StatusComplete:
		return true, nil
	case models.StatusFailed:
		return false, nil
	}

	stored, err := m.storage.GetCommentThreads(result.VideoID)
	if err != nil {
		return false, err
	}
	have := (&models.ThreadResult{Comments: stored}).Total()
	if have >= result.Total() {
		m.logger.Warn().
			Str("video_id", result.VideoID).
			Int("stored", have).
			Int("collected", result.Total()).
			Msg("Keeping stored comments over partial result")
		return false, nil
	}
	return true, nil
}

// Download saves the video at url into dir, the configured save path when empty
func (m *Manager) Download(ctx context.Context, url, dir string) (*models.DownloadResult, error) {
	if dir == "" {
		dir = m.config.Download.SavePath
	}

	start := time.Now()
	if m.monitor != nil {
		m.monitor.RecordDownloadStart()
	}

	result, err := m.extractor.Download(ctx, url, dir)

	if m.monitor != nil {
		if err != nil {
			m.monitor.RecordDownloadFailure(time.Since(start))
		} else {
			m.monitor.RecordDownloadSuccess(time.Since(start), result.Size)
		}
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("video_id", result.VideoID).
		Str("path", result.FilePath).
		Str("size", utils.FormatBytes(result.Size)).
		Msg("Video downloaded")
	return result, nil
}

// OnDownloadProgress registers a callback for written bytes of downloads
func (m *Manager) OnDownloadProgress(fn func(written int64)) {
	m.extractor.Writer().OnProgress(fn)
}

// Registry returns a URL registry dispatching video and user URLs to the manager
func (m *Manager) Registry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.Register(models.KindVideo, func(ctx context.Context, url string) (any, error) {
		return m.VideoDetails(ctx, url)
	})
	reg.Register(models.KindUser, func(ctx context.Context, url string) (any, error) {
		return m.UserInfo(ctx, url)
	})
	return reg
}

func (m *Manager) recordExtraction(kind models.RecordKind, err error) {
	if m.monitor != nil {
		m.monitor.RecordExtraction(kind, err)
	}
}

// Close releases the transport and the storage
func (m *Manager) Close() error {
	if m.http != nil {
		m.http.Close()
	}
	if m.storage != nil {
		return m.storage.Close()
	}
	return nil
}
