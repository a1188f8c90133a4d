package comment

import (
	"regexp"
	"sort"

	"github.com/DuyanhLexq/TikTokAPI/pkg/models"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.]+)`)

// Stats summarizes a set of comment threads
type Stats struct {
	TopLevel       int            `json:"top_level"`
	Replies        int            `json:"replies"`
	MissingReplies int64          `json:"missing_replies"`
	TotalLikes     int64          `json:"total_likes"`
	UniqueAuthors  int            `json:"unique_authors"`
	AvgLikes       float64        `json:"avg_likes_per_comment"`
	Languages      map[string]int `json:"languages"`
	TopMentions    []string       `json:"top_mentions"`
	PinnedByAuthor int            `json:"pinned_by_author"`
}

// ExtractMentions returns the @usernames referenced in text
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)

	var mentions []string
	for _, match := range matches {
		if len(match) > 1 {
			mentions = append(mentions, match[1])
		}
	}
	return mentions
}

// GetStats returns statistics about comment threads
func GetStats(comments []*models.Comment) Stats {
	stats := Stats{Languages: make(map[string]int)}
	authors := make(map[string]bool)
	mentions := make(map[string]int)

	count := func(c *models.Comment) {
		stats.TotalLikes += c.DiggCount
		if c.AuthorID != "" {
			authors[c.AuthorID] = true
		}
		if c.Language != "" {
			stats.Languages[c.Language]++
		}
		if c.AuthorPin {
			stats.PinnedByAuthor++
		}
		for _, m := range ExtractMentions(c.Text) {
			mentions[m]++
		}
	}

	for _, c := range comments {
		stats.TopLevel++
		count(c)
		if missing := c.ReplyTotal - int64(c.Len()); missing > 0 {
			stats.MissingReplies += missing
		}
		for _, reply := range c.Replies {
			stats.Replies++
			count(reply)
		}
	}

	stats.UniqueAuthors = len(authors)
	if total := stats.TopLevel + stats.Replies; total > 0 {
		stats.AvgLikes = float64(stats.TotalLikes) / float64(total)
	}

	for name := range mentions {
		stats.TopMentions = append(stats.TopMentions, name)
	}
	sort.Slice(stats.TopMentions, func(i, j int) bool {
		a, b := stats.TopMentions[i], stats.TopMentions[j]
		if mentions[a] != mentions[b] {
			return mentions[a] > mentions[b]
		}
		return a < b
	})
	if len(stats.TopMentions) > 10 {
		stats.TopMentions = stats.TopMentions[:10]
	}

	return stats
}
