package search

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestVariants(t *testing.T) {
	tests := []struct {
		keyword string
		want    []string
	}{
		{"image", []string{"image", "images"}},
		{"Image", []string{"image", "images"}},
		{"boxes", []string{"boxes", "boxe"}},
		{"paper crafts", []string{"paper crafts", "paper craft", "paper-crafts"}},
		{"paper  crafts", []string{"paper  crafts", "paper  craft", "paper-crafts"}},
		{"sunset-view", []string{"sunset-view", "sunset-views", "sunset view"}},
		{"s", []string{"s"}},
		{"SS", []string{"ss", "s"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, Variants(tt.keyword))
		})
	}
}

func TestVariantsAreDeduplicated(t *testing.T) {
	// "a-b c" has both a space and a hyphen; the two swaps differ, but
	// nothing may appear twice.
	got := Variants("a-b c")
	seen := map[string]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate variant %q", v)
		seen[v] = true
	}
	assert.Contains(t, got, "a-b-c")
	assert.Contains(t, got, "a b c")
}

func TestMatchesKeywords(t *testing.T) {
	variants := Variants("sunset")

	tests := []struct {
		name string
		msg  *discordgo.Message
		want bool
	}{
		{
			name: "content plural",
			msg:  &discordgo.Message{Content: "Look at these SUNSETS"},
			want: true,
		},
		{
			name: "embed title",
			msg:  &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Title: "Sunset over water"}}},
			want: true,
		},
		{
			name: "embed description",
			msg:  &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Description: "a red sunset"}}},
			want: true,
		},
		{
			name: "attachment filename",
			msg:  &discordgo.Message{Attachments: []*discordgo.MessageAttachment{{Filename: "Sunset-view.jpg"}}},
			want: true,
		},
		{
			name: "no match",
			msg:  &discordgo.Message{Content: "sunrise", Attachments: []*discordgo.MessageAttachment{{Filename: "dawn.png"}}},
			want: false,
		},
		{
			name: "nil message",
			msg:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesKeywords(tt.msg, variants))
		})
	}
}

func TestMatchesKeywordsNoVariants(t *testing.T) {
	assert.False(t, MatchesKeywords(&discordgo.Message{Content: "anything"}, nil))
}

func TestHasImage(t *testing.T) {
	tests := []struct {
		name string
		msg  *discordgo.Message
		want bool
	}{
		{"image attachment", &discordgo.Message{Attachments: []*discordgo.MessageAttachment{{ContentType: "image/png"}}}, true},
		{"non-image attachment", &discordgo.Message{Attachments: []*discordgo.MessageAttachment{{ContentType: "video/mp4"}}}, false},
		{"attachment without type", &discordgo.Message{Attachments: []*discordgo.MessageAttachment{{Filename: "a.png"}}}, false},
		{"embed image", &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Image: &discordgo.MessageEmbedImage{URL: "x"}}}}, true},
		{"embed thumbnail", &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Thumbnail: &discordgo.MessageEmbedThumbnail{URL: "x"}}}}, true},
		{"text only embed", &discordgo.Message{Embeds: []*discordgo.MessageEmbed{{Title: "hi"}}}, false},
		{"plain text", &discordgo.Message{Content: "sunset - Image #1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasImage(tt.msg))
		})
	}
}

func TestImageURL(t *testing.T) {
	url, ok := ImageURL(&discordgo.Message{
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/a.png"}},
		Embeds:      []*discordgo.MessageEmbed{{Image: &discordgo.MessageEmbedImage{URL: "https://cdn/e.png"}}},
	})
	assert.True(t, ok)
	assert.Equal(t, "https://cdn/a.png", url)

	url, ok = ImageURL(&discordgo.Message{
		Embeds: []*discordgo.MessageEmbed{{Title: "no image"}, {Image: &discordgo.MessageEmbedImage{URL: "https://cdn/e.png"}}},
	})
	assert.True(t, ok)
	assert.Equal(t, "https://cdn/e.png", url)

	_, ok = ImageURL(&discordgo.Message{Content: "nothing"})
	assert.False(t, ok)
}
