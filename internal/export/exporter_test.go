package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

func sampleThreads() []*models.Comment {
	root := &models.Comment{CID: "c1", AuthorID: "u1", Text: "first\ncomment", ReplyTotal: 2, DiggCount: 4, CreateTime: 1700000000}
	_ = root.AppendReply(&models.Comment{CID: "r1", AuthorID: "u2", Text: "reply"})
	return []*models.Comment{root, {CID: "c2", AuthorID: "u3", Text: "second"}}
}

func TestCommentTable(t *testing.T) {
	table := CommentTable(sampleThreads())

	if len(table.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(table.Rows))
	}
	reply := table.Rows[1]
	if reply[0] != "r1" || reply[1] != "c1" || reply[2] != "1" {
		t.Errorf("reply row = %v", reply)
	}
	if table.Rows[0][8] != "2023-11-14T22:13:20Z" {
		t.Errorf("create_time = %q", table.Rows[0][8])
	}
	if table.Rows[0][11] != "1" {
		t.Errorf("replies_fetched = %q, want 1", table.Rows[0][11])
	}
}

func TestExportCommentsFormats(t *testing.T) {
	dir := t.TempDir()

	for _, format := range GetSupportedFormats() {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, "out", "comments."+string(format))
			exporter := NewDataExporter(ExportConfig{Format: format, FilePath: path})
			if err := exporter.ExportComments("7301", sampleThreads()); err != nil {
				t.Fatalf("ExportComments failed: %v", err)
			}

			switch format {
			case FormatCSV:
				f, _ := os.Open(path)
				defer f.Close()
				records, err := csv.NewReader(f).ReadAll()
				if err != nil || len(records) != 4 {
					t.Errorf("csv records = %d, %v", len(records), err)
				}
			case FormatJSON:
				data, _ := os.ReadFile(path)
				var out struct {
					Total    int `json:"total"`
					Comments []struct {
						Replies []any `json:"replies"`
					} `json:"comments"`
				}
				if err := json.Unmarshal(data, &out); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if out.Total != 3 || len(out.Comments) != 2 || len(out.Comments[0].Replies) != 1 {
					t.Errorf("unexpected json: %s", data)
				}
			case FormatXLSX:
				f, err := excelize.OpenFile(path)
				if err != nil {
					t.Fatalf("open xlsx: %v", err)
				}
				defer f.Close()
				v, _ := f.GetCellValue("Comments", "A3")
				if v != "r1" {
					t.Errorf("A3 = %q, want r1", v)
				}
			case FormatTXT:
				data, _ := os.ReadFile(path)
				if !strings.Contains(string(data), "    [r1] u2: reply") {
					t.Errorf("txt missing indented reply:\n%s", data)
				}
			}
		})
	}
}

func TestExportVideos(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videos.csv")
	videos := []*models.VideoDetails{{VideoID: "1", AuthorUniqueID: "gopher", Hashtags: []string{"a", "b"}, PlayCount: 9}}

	if err := NewDataExporter(ExportConfig{Format: FormatCSV, FilePath: path}).ExportVideos(videos); err != nil {
		t.Fatalf("ExportVideos failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "a b") || !strings.Contains(string(data), "gopher") {
		t.Errorf("unexpected csv:\n%s", data)
	}
}

func TestFormatFromPathAndValidate(t *testing.T) {
	tests := map[string]ExportFormat{
		"a.csv":  FormatCSV,
		"a.XLSX": FormatXLSX,
		"a.txt":  FormatTXT,
		"a.json": FormatJSON,
		"a":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", path, got, want)
		}
	}

	if err := ValidateConfig(ExportConfig{Format: "pdf", FilePath: "x"}); err == nil {
		t.Error("expected error for pdf")
	}
	if err := ValidateConfig(ExportConfig{Format: FormatCSV}); err == nil {
		t.Error("expected error for missing path")
	}
}
