package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// SQLite implements the Storage interface using SQLite
type SQLite struct {
	db *gorm.DB
}

// NewSQLite creates a new SQLite storage
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.VideoDetails{},
		&models.UserInfo{},
		&models.Comment{},
		&models.CrawlRun{},
	); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveVideoDetails saves video details, replacing a previous version
func (s *SQLite) SaveVideoDetails(details *models.VideoDetails) error {
	if details.VideoID == "" {
		return errors.New("video details without id")
	}
	return s.db.Save(details).Error
}

// GetVideoDetails retrieves video details, nil when not stored
func (s *SQLite) GetVideoDetails(id string) (*models.VideoDetails, error) {
	var video models.VideoDetails
	if err := s.db.Where("video_id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &video, nil
}

// ListVideos lists videos with filters
func (s *SQLite) ListVideos(filter models.VideoFilter) ([]*models.VideoDetails, error) {
	var videos []*models.VideoDetails
	query := s.db.Model(&models.VideoDetails{})

	if filter.AuthorID != "" {
		query = query.Where("author_id = ?", filter.AuthorID)
	}

	switch filter.OrderBy {
	case "play_count", "digg_count", "comment_count", "collected_at":
		order := filter.OrderBy
		if filter.OrderDesc {
			order += " DESC"
		} else {
			order += " ASC"
		}
		query = query.Order(order)
	default:
		query = query.Order("collected_at DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// SaveUserInfo saves a profile, replacing a previous version
func (s *SQLite) SaveUserInfo(info *models.UserInfo) error {
	if info.ID == "" {
		return errors.New("user info without id")
	}
	return s.db.Save(info).Error
}

// GetUserInfo retrieves a profile by unique id, nil when not stored
func (s *SQLite) GetUserInfo(uniqueID string) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := s.db.Where("unique_id = ?", uniqueID).First(&info).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

// SaveCommentThreads replaces the stored comments of videoID. Each level of
// the threads is inserted after its parents so replies can reference the
// parent row.
func (s *SQLite) SaveCommentThreads(videoID string, comments []*models.Comment) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		level := place(videoID, nil, comments)
		for len(level) > 0 {
			rows := make([]*models.Comment, len(level))
			for i, p := range level {
				rows[i] = p.row
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}

			var next []placed
			for _, p := range level {
				next = append(next, place(videoID, p.row, p.src.Replies)...)
			}
			level = next
		}
		return nil
	})
}

type placed struct {
	row *models.Comment
	src *models.Comment
}

// place copies comments into unsaved rows under parent, nil for top level
func place(videoID string, parent *models.Comment, comments []*models.Comment) []placed {
	out := make([]placed, 0, len(comments))
	for i, c := range comments {
		row := *c
		row.RowID = 0
		row.VideoID = videoID
		row.ParentRow = 0
		row.ParentID = ""
		if parent != nil {
			row.ParentRow = parent.RowID
			row.ParentID = parent.CID
		}
		row.Position = i
		row.Replies = nil
		out = append(out, placed{row: &row, src: c})
	}
	return out
}

// GetCommentThreads rebuilds the stored comment threads of videoID
func (s *SQLite) GetCommentThreads(videoID string) ([]*models.Comment, error) {
	var rows []*models.Comment
	if err := s.db.Where("video_id = ?", videoID).Order("position ASC, row_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	byRow := make(map[uint]*models.Comment, len(rows))
	var top []*models.Comment
	for _, row := range rows {
		byRow[row.RowID] = row
		if row.ParentRow == 0 {
			top = append(top, row)
		}
	}

	for _, row := range rows {
		if row.ParentRow == 0 {
			continue
		}
		parent, ok := byRow[row.ParentRow]
		if !ok {
			continue
		}
		if err := parent.AppendReply(row); err != nil {
			return nil, fmt.Errorf("comment %s: %w", parent.CID, err)
		}
	}
	return top, nil
}

// SaveCrawlRun records a traversal, assigning an id to new runs
func (s *SQLite) SaveCrawlRun(run *models.CrawlRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return s.db.Save(run).Error
}

// ListCrawlRuns lists recent runs, optionally for one video
func (s *SQLite) ListCrawlRuns(videoID string, limit int) ([]*models.CrawlRun, error) {
	var runs []*models.CrawlRun
	query := s.db.Model(&models.CrawlRun{}).Order("started_at DESC")
	if videoID != "" {
		query = query.Where("video_id = ?", videoID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetStats returns counts of stored records
func (s *SQLite) GetStats() (*models.Stats, error) {
	stats := &models.Stats{}

	counts := []struct {
		model any
		where string
		args  []any
		dest  *int64
	}{
		{&models.VideoDetails{}, "", nil, &stats.Videos},
		{&models.UserInfo{}, "", nil, &stats.Users},
		{&models.Comment{}, "", nil, &stats.Comments},
		{&models.CrawlRun{}, "", nil, &stats.Runs},
		{&models.CrawlRun{}, "status = ?", []any{models.StatusPartial}, &stats.PartialRuns},
		{&models.CrawlRun{}, "status = ?", []any{models.StatusFailed}, &stats.FailedRuns},
	}

	for _, c := range counts {
		query := s.db.Model(c.model)
		if c.where != "" {
			query = query.Where(c.where, c.args...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("error counting records: %w", err)
		}
	}
	return stats, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
