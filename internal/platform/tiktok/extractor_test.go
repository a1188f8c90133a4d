package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/DuyanhLexq/TikTokAPI/internal/comment"
	"github.com/DuyanhLexq/TikTokAPI/internal/extract"
	"github.com/DuyanhLexq/TikTokAPI/internal/fieldspec"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

const videoDetailJSON = `{"statusCode":0,"itemInfo":{"itemStruct":{
	"id":"7301234567890123456","desc":"hello #go","locationCreated":"VN",
	"textExtra":[{"hashtagName":"go"},{"hashtagName":""},{"userId":"1"}],
	"video":{"duration":15,"width":576,"height":1024,"playAddr":"https://v16.example.com/video.mp4"},
	"stats":{"diggCount":100,"shareCount":5,"commentCount":7,"playCount":1000,"collectCount":3},
	"author":{"id":"6800000000000000000","uniqueId":"gopher","nickname":"Gopher"}}}}`

const userDetailJSON = `{"statusCode":0,"userInfo":{
	"user":{"id":"6800000000000000000","uniqueId":"gopher","nickname":"Gopher","signature":"bio",
		"createTime":1600000000,"nickNameModifyTime":1650000000,"verified":true,"secret":false,
		"privateAccount":false,"language":"en"},
	"stats":{"followerCount":10,"followingCount":2,"heartCount":99,"videoCount":4,"diggCount":8,"friendCount":1}}}`

func rehydrationPage(scope, data string) string {
	return `<html><head><script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">` +
		`{"__DEFAULT_SCOPE__":{"webapp.app-context":{},"` + scope + `":` + data + `}}` +
		`</script></head><body></body></html>`
}

type fakeFetcher struct {
	pages     map[string]*models.Page
	json      map[string][]any
	calls     map[string]int
	params    []map[string]string
	streamed  string
	streamHdr map[string]string
}

func (f *fakeFetcher) GetJSON(ctx context.Context, endpoint string, params, headers map[string]string) (any, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[endpoint]
	f.calls[endpoint]++
	f.params = append(f.params, params)
	if n < len(f.json[endpoint]) {
		return f.json[endpoint][n], nil
	}
	return map[string]any{"status_code": json.Number("0"), "comments": nil}, nil
}

func (f *fakeFetcher) GetPage(ctx context.Context, url string, headers map[string]string) (*models.Page, error) {
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return nil, models.ErrTransport
}

func (f *fakeFetcher) Stream(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	f.streamed = url
	f.streamHdr = headers
	return io.NopCloser(strings.NewReader("mp4-bytes")), nil
}

func newTestExtractor(t *testing.T, fetcher models.Fetcher, cookie string) *Extractor {
	t.Helper()
	specs, err := fieldspec.LoadDefaults()
	if err != nil {
		t.Fatalf("load specs: %v", err)
	}
	client := NewClient(fetcher, Options{Cookie: cookie, MsToken: "token"})
	return NewExtractor(client, specs, comment.DefaultConfig())
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.tiktok.com/@gopher/video/7301234567890123456", "7301234567890123456", false},
		{"https://www.tiktok.com/@gopher/video/7301234567890123456?is_from_webapp=1&sender_device=pc", "7301234567890123456", false},
		{"https://www.tiktok.com/@gopher/video/7301234567890123456/", "7301234567890123456", false},
		{"https://www.tiktok.com/@gopher", "", true},
		{"https://www.tiktok.com/@user1234/video/abc", "", true},
		{"7301234567890123456", "7301234567890123456", false},
	}

	for _, tt := range tests {
		got, err := VideoIDFromURL(tt.url)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("VideoIDFromURL(%q) error = %v, want ErrInvalidURL", tt.url, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("VideoIDFromURL(%q) = %q, %v; want %q", tt.url, got, err, tt.want)
		}
	}
}

func TestExtractScope(t *testing.T) {
	fallback := `<script>window.x={"webapp.user-detail":{"userInfo":{"user":{"id":"1"}}},"seo.abtest":{}}</script><p>tail</p>`

	tests := []struct {
		name  string
		html  string
		scope string
		path  []string
	}{
		{"rehydration", rehydrationPage(ScopeVideoDetail, videoDetailJSON), ScopeVideoDetail, []string{"itemInfo", "itemStruct", "id"}},
		{"marker fallback", fallback, ScopeUserDetail, []string{"userInfo", "user", "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ExtractScope(tt.html, tt.scope)
			if err != nil {
				t.Fatalf("ExtractScope failed: %v", err)
			}
			var cur any = data
			for _, key := range tt.path {
				m, ok := cur.(map[string]any)
				if !ok {
					t.Fatalf("missing %q in %v", key, cur)
				}
				cur = m[key]
			}
			if cur == nil || cur == "" {
				t.Errorf("value at %v is empty", tt.path)
			}
		})
	}

	if _, err := ExtractScope("<html>nothing</html>", ScopeVideoDetail); !errors.Is(err, ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
	if _, err := ExtractScope(`"webapp.video-detail":{broken</script>`, ScopeVideoDetail); !errors.Is(err, ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
}

func TestVideoDetails(t *testing.T) {
	url := "https://www.tiktok.com/@gopher/video/7301234567890123456"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {URL: url, Body: rehydrationPage(ScopeVideoDetail, videoDetailJSON)},
	}}

	details, err := newTestExtractor(t, fetcher, "").VideoDetails(context.Background(), url)
	if err != nil {
		t.Fatalf("VideoDetails failed: %v", err)
	}

	if details.VideoID != "7301234567890123456" || details.AuthorUniqueID != "gopher" {
		t.Errorf("unexpected details: %+v", details)
	}
	if details.PlayCount != 1000 || details.Duration != 15 || details.Region != "VN" {
		t.Errorf("unexpected numbers: %+v", details)
	}
	if !reflect.DeepEqual(details.Hashtags, []string{"go"}) {
		t.Errorf("hashtags = %v", details.Hashtags)
	}
	if len(details.Unset) != 0 {
		t.Errorf("unset = %v", details.Unset)
	}
}

func TestVideoDetailsStatusCode(t *testing.T) {
	url := "https://www.tiktok.com/@gopher/video/1111"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {Body: rehydrationPage(ScopeVideoDetail, `{"statusCode":10204,"statusMsg":"not found"}`)},
	}}

	_, err := newTestExtractor(t, fetcher, "").VideoDetails(context.Background(), url)
	if !errors.Is(err, ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
}

func TestUserInfo(t *testing.T) {
	url := "https://www.tiktok.com/@gopher"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {Body: rehydrationPage(ScopeUserDetail, userDetailJSON)},
	}}

	info, err := newTestExtractor(t, fetcher, "").UserInfo(context.Background(), url)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}

	if info.UniqueID != "gopher" || info.Description != "bio" || !info.Verified {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.FollowerCount != 10 || info.HeartCount != 99 {
		t.Errorf("unexpected stats: %+v", info)
	}
	if !reflect.DeepEqual(info.Unset, []string{"region"}) {
		t.Errorf("unset = %v, want [region]", info.Unset)
	}
}

func TestUserInfoTransportError(t *testing.T) {
	_, err := newTestExtractor(t, &fakeFetcher{}, "").UserInfo(context.Background(), "https://www.tiktok.com/@nobody")
	if !errors.Is(err, models.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestComments(t *testing.T) {
	fetcher := &fakeFetcher{json: map[string][]any{
		CommentEndpoint: {
			map[string]any{"status_code": json.Number("0"), "comments": []any{
				map[string]any{"cid": "c1", "text": "first", "reply_comment_total": json.Number("1"), "user": map[string]any{"uid": "u1"}},
			}},
		},
		ReplyEndpoint: {
			map[string]any{"comments": []any{
				map[string]any{"cid": "r1", "text": "reply", "reply_comment_total": json.Number("0")},
			}},
		},
	}}

	result := newTestExtractor(t, fetcher, "").Comments(context.Background(), "https://www.tiktok.com/@gopher/video/7301234567890123456", "override")

	if result.Status != models.StatusComplete {
		t.Fatalf("status = %s (%v)", result.Status, result.Err)
	}
	if result.Total() != 2 || result.Comments[0].Replies[0].CID != "r1" {
		t.Errorf("unexpected threads: %+v", result.Comments)
	}

	first := fetcher.params[0]
	if first["aweme_id"] != "7301234567890123456" || first["msToken"] != "override" || first["cursor"] != "0" {
		t.Errorf("unexpected params: %v", first)
	}
	reply := fetcher.params[1]
	if reply["comment_id"] != "c1" || reply["item_id"] != "7301234567890123456" {
		t.Errorf("unexpected reply params: %v", reply)
	}
}

func TestCommentsAPIStatus(t *testing.T) {
	fetcher := &fakeFetcher{json: map[string][]any{
		CommentEndpoint: {map[string]any{"status_code": json.Number("8"), "status_msg": "login required"}},
	}}

	result := newTestExtractor(t, fetcher, "").Comments(context.Background(), "https://www.tiktok.com/@a/video/7301234567890123456", "")

	if result.Status != models.StatusFailed || !errors.Is(result.Err, ErrAPIStatus) {
		t.Errorf("status = %s, err = %v", result.Status, result.Err)
	}
}

func TestCommentsInvalidURL(t *testing.T) {
	result := newTestExtractor(t, &fakeFetcher{}, "").Comments(context.Background(), "https://www.tiktok.com/@gopher", "")
	if result.Status != models.StatusFailed || !errors.Is(result.Err, ErrInvalidURL) {
		t.Errorf("status = %s, err = %v", result.Status, result.Err)
	}
}

func TestDownload(t *testing.T) {
	url := "https://www.tiktok.com/@gopher/video/7301234567890123456"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {
			Body:    rehydrationPage(ScopeVideoDetail, videoDetailJSON),
			Cookies: []*http.Cookie{{Name: "tt_chain_token", Value: "fresh"}},
		},
	}}
	dir := t.TempDir()

	result, err := newTestExtractor(t, fetcher, "sessionid=abc; tt_chain_token=old").Download(context.Background(), url, dir)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	wantPath := filepath.Join(dir, "tiktok_vid_7301234567890123456.mp4")
	if result.FilePath != wantPath || result.Size != int64(len("mp4-bytes")) {
		t.Errorf("unexpected result: %+v", result)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil || string(data) != "mp4-bytes" {
		t.Errorf("file content = %q, %v", data, err)
	}
	if fetcher.streamed != "https://v16.example.com/video.mp4" {
		t.Errorf("streamed %q", fetcher.streamed)
	}
	if got := fetcher.streamHdr["Cookie"]; got != "sessionid=abc;tt_chain_token=fresh" {
		t.Errorf("cookie = %q", got)
	}
}

func TestDownloadFollowsVideoSpec(t *testing.T) {
	url := "https://www.tiktok.com/@gopher/video/555"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {Body: rehydrationPage(ScopeVideoDetail, `{"statusCode":0,"itemInfo":{"itemStruct":{
			"id":"ignored","aweme_id":"555","video":{"playAddr":"https://v16.example.com/old.mp4",
			"downloadAddr":"https://v16.example.com/new.mp4"}}}}`)},
	}}
	specs := &fieldspec.Set{Video: extract.Spec{
		{Name: "video_id", Path: extract.ParsePath("itemInfo/itemStruct/aweme_id")},
		{Name: "play_addr", Path: extract.ParsePath("itemInfo/itemStruct/video/downloadAddr")},
	}}
	client := NewClient(fetcher, Options{MsToken: "token"})
	dir := t.TempDir()

	result, err := NewExtractor(client, specs, comment.DefaultConfig()).Download(context.Background(), url, dir)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if result.VideoID != "555" || result.FilePath != filepath.Join(dir, "tiktok_vid_555.mp4") {
		t.Errorf("unexpected result: %+v", result)
	}
	if fetcher.streamed != "https://v16.example.com/new.mp4" {
		t.Errorf("streamed %q", fetcher.streamed)
	}
}

func TestDownloadMissingAddress(t *testing.T) {
	url := "https://www.tiktok.com/@gopher/video/1234"
	fetcher := &fakeFetcher{pages: map[string]*models.Page{
		url: {Body: rehydrationPage(ScopeVideoDetail, `{"statusCode":0,"itemInfo":{"itemStruct":{"id":"1234","video":{"playAddr":""}}}}`)},
	}}

	_, err := newTestExtractor(t, fetcher, "").Download(context.Background(), url, t.TempDir())
	if !errors.Is(err, ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
	if fetcher.streamed != "" {
		t.Error("stream should not be opened without a download address")
	}
}
