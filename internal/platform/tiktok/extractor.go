package tiktok

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/DuyanhLexq/TikTokAPI/internal/comment"
	"github.com/DuyanhLexq/TikTokAPI/internal/downloader"
	"github.com/DuyanhLexq/TikTokAPI/internal/extract"
	"github.com/DuyanhLexq/TikTokAPI/internal/fieldspec"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

var pageStatusPath = extract.ParsePath("statusCode")

// Extractor turns TikTok pages and API responses into records
type Extractor struct {
	client   *Client
	specs    *fieldspec.Set
	paging   comment.Config
	writer   *downloader.FileWriter
	observer comment.Observer
	logger   zerolog.Logger
}

// NewExtractor creates an extractor using the given field specs and comment pagination
func NewExtractor(client *Client, specs *fieldspec.Set, paging comment.Config) *Extractor {
	return &Extractor{
		client: client,
		specs:  specs,
		paging: paging,
		writer: downloader.NewFileWriter(),
		logger: zerolog.New(os.Stderr).With().Timestamp().Str("component", "tiktok_extractor").Logger(),
	}
}

// SetLogger sets the logger of the extractor and its collaborators
func (e *Extractor) SetLogger(logger zerolog.Logger) {
	e.logger = logger.With().Str("component", "tiktok_extractor").Logger()
	e.client.SetLogger(logger)
	e.writer.SetLogger(logger)
}

// SetObserver registers an observer for comment traversals
func (e *Extractor) SetObserver(observer comment.Observer) {
	e.observer = observer
}

// Writer returns the file writer used for downloads
func (e *Extractor) Writer() *downloader.FileWriter {
	return e.writer
}

// VideoDetails fetches a video page and builds its details record
func (e *Extractor) VideoDetails(ctx context.Context, videoURL string) (*models.VideoDetails, error) {
	_, data, err := e.scope(ctx, videoURL, ScopeVideoDetail)
	if err != nil {
		return nil, fmt.Errorf("get video details %q: %w", videoURL, err)
	}

	details := videoFromRecord(extract.Build(e.specs.Video, data))
	details.URL = videoURL

	e.logger.Info().
		Str("video_id", details.VideoID).
		Str("author", details.AuthorUniqueID).
		Int("unset", len(details.Unset)).
		Msg("Video details extracted")
	return details, nil
}

// UserInfo fetches a profile page and builds its user record
func (e *Extractor) UserInfo(ctx context.Context, userURL string) (*models.UserInfo, error) {
	_, data, err := e.scope(ctx, userURL, ScopeUserDetail)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", userURL, err)
	}

	info := userFromRecord(extract.Build(e.specs.User, data))

	e.logger.Info().
		Str("user_id", info.ID).
		Str("unique_id", info.UniqueID).
		Int("unset", len(info.Unset)).
		Msg("User info extracted")
	return info, nil
}

// Comments collects every comment thread of the video at videoURL. A
// non-empty msToken overrides the configured one.
func (e *Extractor) Comments(ctx context.Context, videoURL, msToken string) *models.ThreadResult {
	videoID, err := VideoIDFromURL(videoURL)
	if err != nil {
		return &models.ThreadResult{Status: models.StatusFailed, Err: err}
	}

	client := e.client
	if msToken != "" {
		client = client.WithMsToken(msToken)
	}

	traverser := comment.NewTraverser(client, e.specs.Comment, e.paging)
	traverser.SetLogger(e.logger)
	traverser.SetObserver(e.observer)
	return traverser.FetchTopLevel(ctx, videoID, 0)
}

// Download saves the original video file as tiktok_vid_{id}.mp4 in dir
func (e *Extractor) Download(ctx context.Context, videoURL, dir string) (*models.DownloadResult, error) {
	page, data, err := e.scope(ctx, videoURL, ScopeVideoDetail)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", videoURL, err)
	}

	details := videoFromRecord(extract.Build(e.specs.Video, data))
	videoID := details.VideoID
	if videoID == "" || details.PlayAddr == "" {
		return nil, fmt.Errorf("download %q: %w: no download address", videoURL, ErrDataNotFound)
	}

	body, err := e.client.OpenVideo(ctx, page, details.PlayAddr)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", videoURL, err)
	}
	defer body.Close()

	path := filepath.Join(dir, fmt.Sprintf("tiktok_vid_%s.mp4", videoID))
	size, err := e.writer.WriteStream(body, path)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", videoURL, err)
	}

	return &models.DownloadResult{VideoID: videoID, FilePath: path, Size: size}, nil
}

// scope fetches pageURL and decodes the embedded data of scope
func (e *Extractor) scope(ctx context.Context, pageURL, scope string) (*models.Page, any, error) {
	page, err := e.client.Page(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}

	data, err := ExtractScope(page.Body, scope)
	if err != nil {
		return nil, nil, err
	}

	if code, err := extract.Extract(data, pageStatusPath); err == nil {
		if n, ok := extract.Set(code).Int64(); ok && n != 0 {
			return nil, nil, fmt.Errorf("%w: %s statusCode %d", ErrDataNotFound, scope, n)
		}
	}
	return page, data, nil
}

func videoFromRecord(rec extract.Record) *models.VideoDetails {
	r := extract.NewReader(rec)
	details := &models.VideoDetails{
		VideoID:        r.String("video_id"),
		Description:    r.String("description"),
		Hashtags:       hashtagNames(r.Slice("hastag")),
		Duration:       r.Int64("duration"),
		Width:          r.Int64("width"),
		Height:         r.Int64("height"),
		DiggCount:      r.Int64("diggCount"),
		ShareCount:     r.Int64("shareCount"),
		CommentCount:   r.Int64("commentCount"),
		PlayCount:      r.Int64("playCount"),
		CollectCount:   r.Int64("collectCount"),
		Region:         r.String("region"),
		AuthorID:       r.String("author_id"),
		AuthorUniqueID: r.String("author_uniqueId"),
		AuthorNickname: r.String("author_nickname"),
		PlayAddr:       r.String("play_addr"),
	}
	details.Unset = r.Unset()
	return details
}

func userFromRecord(rec extract.Record) *models.UserInfo {
	r := extract.NewReader(rec)
	info := &models.UserInfo{
		ID:                 r.String("id"),
		UniqueID:           r.String("uniqueId"),
		Nickname:           r.String("nickname"),
		Description:        r.String("description"),
		CreateTime:         r.Int64("createTime"),
		NicknameModifyTime: r.Int64("nickNameModifyTime"),
		Verified:           r.Bool("verified"),
		Secret:             r.Bool("secret"),
		PrivateAccount:     r.Bool("privateAccount"),
		FollowerCount:      r.Int64("followerCount"),
		FollowingCount:     r.Int64("followingCount"),
		HeartCount:         r.Int64("heartCount"),
		VideoCount:         r.Int64("videoCount"),
		DiggCount:          r.Int64("diggCount"),
		FriendCount:        r.Int64("friendCount"),
		Language:           r.String("language"),
		Region:             r.String("region"),
	}
	info.Unset = r.Unset()
	return info
}

var hashtagNamePath = extract.ParsePath("hashtagName")

// hashtagNames reads the hashtag names out of a textExtra list
func hashtagNames(items []any) []string {
	var names []string
	for _, item := range items {
		v, err := extract.Extract(item, hashtagNamePath)
		if err != nil {
			continue
		}
		if name, ok := extract.Set(v).String(); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
