package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DuyanhLexq/TikTokAPI/internal/auth"
	"github.com/DuyanhLexq/TikTokAPI/internal/batch"
	"github.com/DuyanhLexq/TikTokAPI/internal/comment"
	"github.com/DuyanhLexq/TikTokAPI/internal/config"
	"github.com/DuyanhLexq/TikTokAPI/internal/export"
	"github.com/DuyanhLexq/TikTokAPI/internal/monitor"
	"github.com/DuyanhLexq/TikTokAPI/internal/scraper"
	"github.com/DuyanhLexq/TikTokAPI/internal/server"
	"github.com/DuyanhLexq/TikTokAPI/internal/storage"
	"github.com/DuyanhLexq/TikTokAPI/internal/tui"
	"github.com/DuyanhLexq/TikTokAPI/internal/utils"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

var (
	configPath string
	outputPath string
	msToken    string
	verbose    bool

	withComments bool
	withDownload bool
	exportPath   string
	authorID     string
	listLimit    int
	tokenRole    string
)

var rootCmd = &cobra.Command{
	Use:   "tiktok-scraper",
	Short: "Collect TikTok video details, user profiles and comment threads",
	Long: `tiktok-scraper extracts structured records from public TikTok pages.

Features:
- Video details and user profiles from page rehydration data
- Complete comment threads with replies, reported as complete or partial
- Video downloads
- Batch processing from URL lists
- SQLite storage with CSV, XLSX, JSON and TXT export
- HTTP API with JWT auth, rate limiting and Prometheus metrics`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app holds the wired components of one command invocation
type app struct {
	configs *config.Manager
	cfg     *models.Config
	logger  zerolog.Logger
	store   models.Storage
	monitor *monitor.Monitor
	scraper *scraper.Manager
}

// setup loads configuration and builds the scraper. reg receives the metrics.
func setup(reg prometheus.Registerer) (*app, error) {
	configs := config.NewManager()
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	a := &app{
		configs: configs,
		cfg:     cfg,
		logger:  configs.GetLogger(),
		monitor: monitor.NewMonitor(reg),
	}
	a.monitor.SetLogger(a.logger)

	if cfg.Database.Enabled {
		store, err := storage.NewSQLite(cfg.Database.Path)
		if err != nil {
			configs.Close()
			return nil, fmt.Errorf("error initializing storage: %w", err)
		}
		a.store = store
	}

	a.scraper, err = scraper.NewManager(cfg, scraper.Options{Storage: a.store, Monitor: a.monitor})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("error creating scraper: %w", err)
	}
	a.scraper.SetLogger(a.logger)
	return a, nil
}

func (a *app) close() {
	if a.scraper != nil {
		a.scraper.Close()
	} else if a.store != nil {
		a.store.Close()
	}
	a.configs.Close()
}

func (a *app) token() string {
	if msToken != "" {
		return msToken
	}
	return a.cfg.TikTok.MsToken
}

func (a *app) requireStorage() error {
	if a.store == nil {
		return errors.New("database is disabled (set database.enabled)")
	}
	return nil
}

// withApp runs fn with a wired app and a context cancelled on SIGINT/SIGTERM
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := setup(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var videoCmd = &cobra.Command{
	Use:   "video [url]",
	Short: "Extract video details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			details, err := a.scraper.VideoDetails(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error extracting video details: %w", err)
			}
			return printJSON(details)
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user [url]",
	Short: "Extract user profile information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			info, err := a.scraper.UserInfo(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error extracting user info: %w", err)
			}
			return printJSON(info)
		})
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments [url]",
	Short: "Collect every comment and reply of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			result, run, err := a.scraper.CollectComments(ctx, args[0], a.token())
			if err != nil {
				a.logger.Warn().Err(err).Msg("Comments were collected but could not be stored")
			}
			if result.Status == models.StatusFailed {
				return fmt.Errorf("error collecting comments: %w", result.Err)
			}

			if exportPath != "" {
				exporter := export.NewDataExporter(export.ExportConfig{
					Format:   export.FormatFromPath(exportPath),
					FilePath: exportPath,
				})
				if err := exporter.ExportComments(result.VideoID, result.Comments); err != nil {
					return fmt.Errorf("error exporting comments: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Exported %d comments to %s\n", result.Total(), exportPath)
			} else if err := printJSON(result); err != nil {
				return err
			}

			stats := comment.GetStats(result.Comments)
			fmt.Fprintf(os.Stderr, "%d comments, %d replies, %d authors, %d replies not returned\n",
				stats.TopLevel, stats.Replies, stats.UniqueAuthors, stats.MissingReplies)
			if result.Status == models.StatusPartial {
				fmt.Fprintf(os.Stderr, "Warning: comment thread is partial after %d pages: %s\n", result.Pages, result.Cause())
			}
			if run != nil && run.ID != "" {
				a.logger.Info().Str("run_id", run.ID).Str("status", string(run.Status)).Int("comments", run.Comments).Msg("Crawl run recorded")
			}
			return nil
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			fmt.Fprintf(os.Stderr, "Downloading video from: %s\n", args[0])
			start := time.Now()
			result, err := a.scraper.Download(ctx, args[0], outputPath)
			if err != nil {
				return fmt.Errorf("error downloading video: %w", err)
			}

			fmt.Printf("Download completed: %s\n", result.FilePath)
			fmt.Printf("   Size: %s\n", utils.FormatBytes(result.Size))
			fmt.Printf("   Took: %s\n", utils.FormatDuration(time.Since(start)))
			return nil
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [urls-file]",
	Short: "Process every URL listed in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("error reading URLs file: %w", err)
		}
		urls, err := batch.ReadURLs(file)
		file.Close()
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			fmt.Println("No URLs found in file")
			return nil
		}

		return withApp(func(ctx context.Context, a *app) error {
			runner := batch.NewRunner(a.scraper, a.scraper.Registry())
			runner.SetLogger(a.logger)
			runner.OnResult(func(i int, r batch.Result) {
				line := fmt.Sprintf("[%d/%d] %-9s %s", i+1, len(urls), r.Status, r.URL)
				if r.Error != "" {
					line += " (" + r.Error + ")"
				}
				fmt.Fprintln(os.Stderr, line)
			})

			job := runner.Run(ctx, urls, batch.Config{
				Comments:   withComments,
				Download:   withDownload,
				OutputPath: outputPath,
				MsToken:    a.token(),
			})

			if exportPath != "" {
				var videos []*models.VideoDetails
				for _, r := range job.Results {
					if r.Video != nil {
						videos = append(videos, r.Video)
					}
				}
				exporter := export.NewDataExporter(export.ExportConfig{
					Format:   export.FormatFromPath(exportPath),
					FilePath: exportPath,
				})
				if err := exporter.ExportVideos(videos); err != nil {
					return fmt.Errorf("error exporting videos: %w", err)
				}
			}

			p := job.Progress
			fmt.Printf("\nBatch %s: %d completed, %d partial, %d failed, %d skipped\n",
				job.Status, p.Completed, p.Partial, p.Failed, p.Skipped)
			if job.Status == batch.JobStatusFailed {
				return errors.New("every URL failed")
			}
			return nil
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Detect the kind of a URL and extract its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			kind, record, err := a.scraper.Registry().Dispatch(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"kind": kind, "record": record})
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.requireStorage(); err != nil {
				return err
			}
			videos, err := a.store.ListVideos(models.VideoFilter{
				AuthorID:  authorID,
				Limit:     listLimit,
				OrderBy:   "collected_at",
				OrderDesc: true,
			})
			if err != nil {
				return fmt.Errorf("error listing videos: %w", err)
			}

			if len(videos) == 0 {
				fmt.Println("No videos found")
				return nil
			}

			fmt.Printf("Stored videos (%d)\n", len(videos))
			for i, v := range videos {
				fmt.Printf("\n%d. %s  @%s\n", i+1, v.VideoID, v.AuthorUniqueID)
				fmt.Printf("   %s\n", utils.Truncate(v.Description, 80))
				fmt.Printf("   Plays: %d | Likes: %d | Comments: %d\n", v.PlayCount, v.DiggCount, v.CommentCount)
				fmt.Printf("   Collected: %s\n", v.CollectedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export stored videos, or the comments of one video",
	Long: `Export stored records. The format follows the file extension
(.csv, .xlsx, .json, .txt). With --video the stored comment threads
of that video are exported instead of the video list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, _ := cmd.Flags().GetString("video")
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.requireStorage(); err != nil {
				return err
			}
			exporter := export.NewDataExporter(export.ExportConfig{
				Format:   export.FormatFromPath(args[0]),
				FilePath: args[0],
			})

			if videoID != "" {
				comments, err := a.store.GetCommentThreads(videoID)
				if err != nil {
					return fmt.Errorf("error loading comments: %w", err)
				}
				if err := exporter.ExportComments(videoID, comments); err != nil {
					return fmt.Errorf("error exporting comments: %w", err)
				}
				fmt.Printf("Exported %d threads to %s\n", len(comments), args[0])
				return nil
			}

			videos, err := a.store.ListVideos(models.VideoFilter{AuthorID: authorID, OrderBy: "collected_at", OrderDesc: true})
			if err != nil {
				return fmt.Errorf("error listing videos: %w", err)
			}
			if err := exporter.ExportVideos(videos); err != nil {
				return fmt.Errorf("error exporting videos: %w", err)
			}
			fmt.Printf("Exported %d videos to %s\n", len(videos), args[0])
			return nil
		})
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		defer a.close()

		srv, err := server.NewServer(a.cfg, a.scraper, a.monitor, prometheus.DefaultGatherer)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}
		srv.SetLogger(a.logger)

		a.monitor.Start(15 * time.Second)
		defer a.monitor.Stop()

		fmt.Fprintf(os.Stderr, "Server listening on http://%s:%d (Ctrl+C to stop)\n", a.cfg.Server.Host, a.cfg.Server.Port)
		if err := srv.Run(context.Background()); err != nil {
			return fmt.Errorf("error running server: %w", err)
		}
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse stored videos and comments in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.requireStorage(); err != nil {
				return err
			}
			p := tea.NewProgram(tui.NewModel(a.store), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err := p.Run()
			return err
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue an API token signed with auth.jwt_secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configs := config.NewManager()
		cfg, err := configs.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configs.Close()

		svc, err := auth.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiry)*time.Hour)
		if err != nil {
			return err
		}
		token, err := svc.IssueToken(args[0], tokenRole)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var initConfigCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join("config", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("error initializing configuration: %w", err)
		}
		fmt.Printf("Configuration file created: %s\n", path)
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configs := config.NewManager()
		cfg, err := configs.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configs.Close()

		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		if file := configs.ConfigFile(); file != "" {
			fmt.Printf("# loaded from %s\n", file)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file or directory")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Download directory (default download.save_path)")
	rootCmd.PersistentFlags().StringVar(&msToken, "ms-token", "", "msToken sent with comment requests")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	commentsCmd.Flags().StringVarP(&exportPath, "export", "e", "", "Write comments to a .csv, .xlsx, .json or .txt file")

	batchCmd.Flags().BoolVar(&withComments, "comments", false, "Collect comments of every video")
	batchCmd.Flags().BoolVar(&withDownload, "download", false, "Download every video")
	batchCmd.Flags().StringVarP(&exportPath, "export", "e", "", "Write collected video details to a file")

	listCmd.Flags().StringVar(&authorID, "author", "", "Only videos of this author ID")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number of videos")

	exportCmd.Flags().String("video", "", "Export the comment threads of this video ID")
	exportCmd.Flags().StringVar(&authorID, "author", "", "Only videos of this author ID")

	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleReader, "Token role (reader or admin)")

	// Add commands
	rootCmd.AddCommand(videoCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configCmd)

	// Config subcommands
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
