package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
	FormatTXT  ExportFormat = "txt"
)

// ExportConfig holds configuration for data export
type ExportConfig struct {
	Format     ExportFormat
	FilePath   string
	DateFormat string
	Delimiter  rune
}

// DataExporter handles data export to different formats
type DataExporter struct {
	config ExportConfig
}

// Table is the flat form of exported records
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]string
}

// NewDataExporter creates a new data exporter
func NewDataExporter(config ExportConfig) *DataExporter {
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	return &DataExporter{config: config}
}

// FormatFromPath guesses the export format from a file extension
func FormatFromPath(path string) ExportFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return FormatCSV
	case "xlsx":
		return FormatXLSX
	case "txt":
		return FormatTXT
	default:
		return FormatJSON
	}
}

// ExportVideos exports video details
func (de *DataExporter) ExportVideos(videos []*models.VideoDetails) error {
	if err := de.prepare(); err != nil {
		return err
	}

	table := VideoTable(videos)
	switch de.config.Format {
	case FormatCSV:
		return de.exportToCSV(table)
	case FormatXLSX:
		return de.exportToXLSX(table)
	case FormatJSON:
		return de.writeJSON(struct {
			ExportedAt string                 `json:"exported_at"`
			Count      int                    `json:"count"`
			Videos     []*models.VideoDetails `json:"videos"`
		}{time.Now().Format(de.config.DateFormat), len(videos), videos})
	case FormatTXT:
		return de.exportToTXT(func(b *strings.Builder) {
			for i, v := range videos {
				fmt.Fprintf(b, "%d. %s by @%s\n", i+1, v.VideoID, v.AuthorUniqueID)
				fmt.Fprintf(b, "   %s\n", oneLine(v.Description))
				fmt.Fprintf(b, "   plays %d  likes %d  comments %d  shares %d\n\n",
					v.PlayCount, v.DiggCount, v.CommentCount, v.ShareCount)
			}
		})
	default:
		return fmt.Errorf("unsupported export format: %s", de.config.Format)
	}
}

// ExportComments exports the comment threads of one video
func (de *DataExporter) ExportComments(videoID string, comments []*models.Comment) error {
	if err := de.prepare(); err != nil {
		return err
	}

	table := CommentTable(comments)
	switch de.config.Format {
	case FormatCSV:
		return de.exportToCSV(table)
	case FormatXLSX:
		return de.exportToXLSX(table)
	case FormatJSON:
		total := 0
		for _, c := range comments {
			total += c.CountAll()
		}
		return de.writeJSON(struct {
			VideoID    string            `json:"video_id"`
			ExportedAt string            `json:"exported_at"`
			Total      int               `json:"total"`
			Comments   []*models.Comment `json:"comments"`
		}{videoID, time.Now().Format(de.config.DateFormat), total, comments})
	case FormatTXT:
		return de.exportToTXT(func(b *strings.Builder) {
			fmt.Fprintf(b, "Comments of video %s\n\n", videoID)
			for _, c := range comments {
				writeCommentText(b, c, 0)
			}
		})
	default:
		return fmt.Errorf("unsupported export format: %s", de.config.Format)
	}
}

func (de *DataExporter) prepare() error {
	if err := os.MkdirAll(filepath.Dir(de.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// VideoTable flattens video details into rows
func VideoTable(videos []*models.VideoDetails) Table {
	table := Table{
		Sheet: "Videos",
		Columns: []string{
			"video_id", "author_id", "author_unique_id", "author_nickname", "description", "hashtags",
			"duration", "width", "height", "play_count", "digg_count", "comment_count",
			"share_count", "collect_count", "region", "url",
		},
	}
	for _, v := range videos {
		table.Rows = append(table.Rows, []string{
			v.VideoID, v.AuthorID, v.AuthorUniqueID, v.AuthorNickname, v.Description,
			strings.Join(v.Hashtags, " "),
			itoa(v.Duration), itoa(v.Width), itoa(v.Height), itoa(v.PlayCount), itoa(v.DiggCount),
			itoa(v.CommentCount), itoa(v.ShareCount), itoa(v.CollectCount), v.Region, v.URL,
		})
	}
	return table
}

// CommentTable flattens comment threads into rows, replies following their parent
func CommentTable(comments []*models.Comment) Table {
	table := Table{
		Sheet: "Comments",
		Columns: []string{
			"cid", "parent_cid", "depth", "aweme_id", "author_id", "author_pin", "text",
			"comment_language", "create_time", "digg_count", "reply_comment_total", "replies_fetched",
		},
	}

	var walk func(c *models.Comment, parent string, depth int)
	walk = func(c *models.Comment, parent string, depth int) {
		table.Rows = append(table.Rows, []string{
			c.CID, parent, strconv.Itoa(depth), c.VideoID, c.AuthorID, strconv.FormatBool(c.AuthorPin),
			c.Text, c.Language, formatUnix(c.CreateTime), itoa(c.DiggCount), itoa(c.ReplyTotal),
			strconv.Itoa(c.Len()),
		})
		for _, r := range c.Replies {
			walk(r, c.CID, depth+1)
		}
	}
	for _, c := range comments {
		walk(c, "", 0)
	}
	return table
}

// exportToCSV exports a table to CSV format
func (de *DataExporter) exportToCSV(table Table) error {
	file, err := os.Create(de.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = de.config.Delimiter

	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportToXLSX exports a table to Excel format
func (de *DataExporter) exportToXLSX(table Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := table.Sheet
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := 15.0
		if column == "text" || column == "description" {
			width = 60
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	for i, row := range table.Rows {
		for j, value := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	endCell, _ := excelize.CoordinatesToCellName(len(table.Columns), len(table.Rows)+1)
	f.AutoFilter(sheetName, "A1:"+endCell, []excelize.AutoFilterOptions{})

	// Freeze first row
	f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true,
		YSplit: 1,
	})

	if err := f.SaveAs(de.config.FilePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}
	return nil
}

func (de *DataExporter) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(de.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

func (de *DataExporter) exportToTXT(write func(b *strings.Builder)) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Exported at %s\n\n", time.Now().Format(de.config.DateFormat))
	write(&b)
	if err := os.WriteFile(de.config.FilePath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write TXT file: %w", err)
	}
	return nil
}

func writeCommentText(b *strings.Builder, c *models.Comment, depth int) {
	indent := strings.Repeat("    ", depth)
	fmt.Fprintf(b, "%s[%s] %s: %s\n", indent, c.CID, c.AuthorID, oneLine(c.Text))
	fmt.Fprintf(b, "%s    likes %d  replies %d/%d\n", indent, c.DiggCount, c.Len(), c.ReplyTotal)
	for _, r := range c.Replies {
		writeCommentText(b, r, depth+1)
	}
}

// GetSupportedFormats returns the supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON, FormatTXT}
}

// ValidateConfig checks an export configuration
func ValidateConfig(config ExportConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	for _, f := range GetSupportedFormats() {
		if config.Format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported export format: %s", config.Format)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
