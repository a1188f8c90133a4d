package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DuyanhLexq/TikTokAPI/internal/utils"
	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

// Model is a read-only browser over stored videos and comment threads
type Model struct {
	state    State
	store    models.Storage
	filter   textinput.Model
	videos   table.Model
	comments table.Model
	videoID  string
	threads  []*models.Comment
	stats    *models.Stats
	err      error
	width    int
	height   int
	styles   Styles
}

// State represents different screens/states of the TUI
type State int

const (
	MainMenu State = iota
	VideoList
	FilterScreen
	CommentList
	StatsScreen
	Help
)

// Styles holds all the styling for the TUI
type Styles struct {
	title     lipgloss.Style
	subtitle  lipgloss.Style
	menuItem  lipgloss.Style
	input     lipgloss.Style
	statusBar lipgloss.Style
	errorText lipgloss.Style
	table     lipgloss.Style
}

type videosLoadedMsg struct {
	videos []*models.VideoDetails
	err    error
}

type commentsLoadedMsg struct {
	videoID  string
	comments []*models.Comment
	err      error
}

type statsLoadedMsg struct {
	stats *models.Stats
	err   error
}

const listLimit = 200

// NewModel creates the TUI model over store
func NewModel(store models.Storage) Model {
	ti := textinput.New()
	ti.Placeholder = "Author ID (empty for all)"
	ti.CharLimit = 64
	ti.Width = 40

	videos := table.New(
		table.WithColumns([]table.Column{
			{Title: "Video ID", Width: 20},
			{Title: "Author", Width: 18},
			{Title: "Description", Width: 36},
			{Title: "Plays", Width: 10},
			{Title: "Comments", Width: 9},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	comments := table.New(
		table.WithColumns([]table.Column{
			{Title: "Comment", Width: 52},
			{Title: "Author", Width: 20},
			{Title: "Likes", Width: 8},
			{Title: "Replies", Width: 8},
			{Title: "Posted", Width: 16},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FE2C55")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#25F4EE")).
			Padding(0, 1),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#25F4EE")),
	}

	return Model{
		state:    MainMenu,
		store:    store,
		filter:   ti,
		videos:   videos,
		comments: comments,
		styles:   styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) loadVideos(authorID string) tea.Cmd {
	return func() tea.Msg {
		videos, err := m.store.ListVideos(models.VideoFilter{
			AuthorID:  authorID,
			Limit:     listLimit,
			OrderBy:   "collected_at",
			OrderDesc: true,
		})
		return videosLoadedMsg{videos: videos, err: err}
	}
}

func (m Model) loadComments(videoID string) tea.Cmd {
	return func() tea.Msg {
		comments, err := m.store.GetCommentThreads(videoID)
		return commentsLoadedMsg{videoID: videoID, comments: comments, err: err}
	}
}

func (m Model) loadStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.store.GetStats()
		return statsLoadedMsg{stats: stats, err: err}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case videosLoadedMsg:
		m.err = msg.err
		m.setVideoRows(msg.videos)
		return m, nil

	case commentsLoadedMsg:
		m.err = msg.err
		m.videoID = msg.videoID
		m.threads = msg.comments
		m.setCommentRows(msg.comments)
		m.state = CommentList
		return m, nil

	case statsLoadedMsg:
		m.err = msg.err
		m.stats = msg.stats
		return m, nil

	case tea.KeyMsg:
		if m.state == FilterScreen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc":
				m.filter.Blur()
				m.state = VideoList
				return m, nil
			case "enter":
				m.filter.Blur()
				m.state = VideoList
				return m, m.loadVideos(strings.TrimSpace(m.filter.Value()))
			}
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "esc":
			switch m.state {
			case CommentList:
				m.state = VideoList
			case MainMenu:
			default:
				m.state = MainMenu
			}
			return m, nil

		case "1":
			if m.state == MainMenu {
				m.state = VideoList
				return m, m.loadVideos(strings.TrimSpace(m.filter.Value()))
			}

		case "2":
			if m.state == MainMenu {
				m.state = StatsScreen
				return m, m.loadStats()
			}

		case "3":
			if m.state == MainMenu {
				m.state = Help
				return m, nil
			}

		case "/":
			if m.state == VideoList {
				m.state = FilterScreen
				cmd = m.filter.Focus()
				return m, cmd
			}

		case "r":
			switch m.state {
			case VideoList:
				return m, m.loadVideos(strings.TrimSpace(m.filter.Value()))
			case StatsScreen:
				return m, m.loadStats()
			}

		case "enter":
			if m.state == VideoList {
				if row := m.videos.SelectedRow(); len(row) > 0 {
					return m, m.loadComments(row[0])
				}
				return m, nil
			}
		}
	}

	switch m.state {
	case FilterScreen:
		m.filter, cmd = m.filter.Update(msg)
	case VideoList:
		m.videos, cmd = m.videos.Update(msg)
	case CommentList:
		m.comments, cmd = m.comments.Update(msg)
	}

	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case VideoList:
		return m.renderVideos()
	case FilterScreen:
		return m.renderFilter()
	case CommentList:
		return m.renderComments()
	case StatsScreen:
		return m.renderStats()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) errorLine() string {
	if m.err == nil {
		return ""
	}
	return m.styles.errorText.Render("Error: " + m.err.Error())
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("TikTok Scraper")
	subtitle := m.styles.subtitle.Render("Browse collected videos and comment threads")

	menu := []string{
		"1. Videos",
		"2. Statistics",
		"3. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	))
}

func (m Model) renderVideos() string {
	title := m.styles.title.Render("Videos")

	filter := "all authors"
	if v := strings.TrimSpace(m.filter.Value()); v != "" {
		filter = "author " + v
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.subtitle.Render(fmt.Sprintf("%d videos, %s", len(m.videos.Rows()), filter)),
		m.styles.table.Render(m.videos.View()),
		m.errorLine(),
		m.styles.statusBar.Render("↑/↓ navigate • enter comments • / filter • r reload • esc back"),
	))
}

func (m Model) renderFilter() string {
	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render("Filter Videos"),
		"Author ID:",
		m.styles.input.Render(m.filter.View()),
		"",
		m.styles.statusBar.Render("enter apply • esc cancel"),
	))
}

func (m Model) renderComments() string {
	title := m.styles.title.Render("Comments for " + m.videoID)

	var replies int
	for _, c := range m.threads {
		replies += len(c.Replies)
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.subtitle.Render(fmt.Sprintf("%d top-level, %d replies", len(m.threads), replies)),
		m.styles.table.Render(m.comments.View()),
		m.errorLine(),
		m.styles.statusBar.Render("↑/↓ navigate • esc back to videos"),
	))
}

func (m Model) renderStats() string {
	lines := []string{"Loading..."}
	if s := m.stats; s != nil {
		lines = []string{
			fmt.Sprintf("Videos:        %d", s.Videos),
			fmt.Sprintf("Users:         %d", s.Users),
			fmt.Sprintf("Comments:      %d", s.Comments),
			fmt.Sprintf("Crawl runs:    %d", s.Runs),
			fmt.Sprintf("  partial:     %d", s.PartialRuns),
			fmt.Sprintf("  failed:      %d", s.FailedRuns),
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render("Statistics"),
		strings.Join(lines, "\n"),
		m.errorLine(),
		"",
		m.styles.statusBar.Render("r reload • esc back"),
	))
}

func (m Model) renderHelp() string {
	helpText := []string{
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back",
		"• q or Ctrl+C to quit",
		"",
		"Videos:",
		"• Enter opens the stored comment threads of a video",
		"• / filters by author ID",
		"",
		"Data is collected with the CLI or the HTTP API.",
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render("Help"),
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	))
}

func (m *Model) setVideoRows(videos []*models.VideoDetails) {
	rows := make([]table.Row, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, table.Row{
			v.VideoID,
			"@" + v.AuthorUniqueID,
			utils.Truncate(v.Description, 36),
			fmt.Sprintf("%d", v.PlayCount),
			fmt.Sprintf("%d", v.CommentCount),
		})
	}
	m.videos.SetRows(rows)
	m.videos.SetCursor(0)
}

// setCommentRows flattens threads, indenting replies under their parent
func (m *Model) setCommentRows(comments []*models.Comment) {
	var rows []table.Row
	var add func(c *models.Comment, depth int)
	add = func(c *models.Comment, depth int) {
		text := c.Text
		if depth > 0 {
			text = strings.Repeat("  ", depth-1) + "↳ " + utils.Truncate(text, 50-2*depth)
		} else {
			text = utils.Truncate(text, 52)
		}
		rows = append(rows, table.Row{
			text,
			c.AuthorID,
			fmt.Sprintf("%d", c.DiggCount),
			fmt.Sprintf("%d", c.ReplyTotal),
			formatTime(c.CreateTime),
		})
		for _, r := range c.Replies {
			add(r, depth+1)
		}
	}
	for _, c := range comments {
		add(c, 0)
	}
	m.comments.SetRows(rows)
	m.comments.SetCursor(0)
}

func formatTime(unix int64) string {
	if unix <= 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
