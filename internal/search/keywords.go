package search

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Variants expands a keyword into the lowercase spellings a match should
// accept. Pluralization is a plain trailing "s" toggle, so irregular plurals
// are not covered ("boxes" yields "boxe").
func Variants(keyword string) []string {
	if keyword == "" {
		return nil
	}
	lower := strings.ToLower(keyword)
	variants := []string{lower}

	if !strings.HasSuffix(lower, "s") {
		variants = append(variants, lower+"s")
	} else if len(keyword) > 1 {
		variants = append(variants, strings.TrimSuffix(lower, "s"))
	}

	if strings.Contains(lower, " ") {
		variants = append(variants, whitespaceRun.ReplaceAllString(lower, "-"))
	}
	if strings.Contains(lower, "-") {
		variants = append(variants, strings.ReplaceAll(lower, "-", " "))
	}

	return lo.Uniq(variants)
}

// searchText is everything a keyword may appear in: the message text, embed
// titles and descriptions, and attachment filenames.
func searchText(m *discordgo.Message) string {
	parts := make([]string, 0, 1+2*len(m.Embeds)+len(m.Attachments))
	if m.Content != "" {
		parts = append(parts, m.Content)
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Description != "" {
			parts = append(parts, e.Description)
		}
		if e.Title != "" {
			parts = append(parts, e.Title)
		}
	}
	for _, a := range m.Attachments {
		if a != nil && a.Filename != "" {
			parts = append(parts, a.Filename)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// MatchesKeywords reports whether any variant is a substring of the message's
// searchable text.
func MatchesKeywords(m *discordgo.Message, variants []string) bool {
	if m == nil || len(variants) == 0 {
		return false
	}
	text := searchText(m)
	return lo.SomeBy(variants, func(v string) bool {
		return strings.Contains(text, strings.ToLower(v))
	})
}

// HasImage reports whether the message carries an image attachment or an
// embed with an image or thumbnail.
func HasImage(m *discordgo.Message) bool {
	if m == nil {
		return false
	}
	for _, a := range m.Attachments {
		if a != nil && strings.HasPrefix(a.ContentType, "image/") {
			return true
		}
	}
	for _, e := range m.Embeds {
		if e != nil && (e.Image != nil || e.Thumbnail != nil) {
			return true
		}
	}
	return false
}

// ImageURL returns the first attachment URL, falling back to the first embed
// image. It is what gets sent to Pinterest.
func ImageURL(m *discordgo.Message) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, a := range m.Attachments {
		if a != nil && a.URL != "" {
			return a.URL, true
		}
	}
	for _, e := range m.Embeds {
		if e != nil && e.Image != nil && e.Image.URL != "" {
			return e.Image.URL, true
		}
	}
	return "", false
}
