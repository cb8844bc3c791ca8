package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/jusunglee/mjpin/internal/search"
)

func (b *Bot) handleGather(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	keyword := strings.TrimSpace(getOption(i.ApplicationCommandData().Options, "keyword"))
	if keyword == "" {
		return userReply("Please provide a keyword to search for.")
	}

	marker := b.scanner.FindMarker(ctx, i.ChannelID, search.PinSuccessMarker(b.session.GetUserID()), b.config.MarkerScan)
	if marker != nil {
		b.editResponse(ctx, i, fmt.Sprintf(`Searching for "%s" images after last /pin command (<t:%d:f>)...`, keyword, marker.Timestamp.Unix()), nil)
	} else {
		b.editResponse(ctx, i, fmt.Sprintf(`No previous /pin command found. Searching recent "%s" images...`, keyword), nil)
	}

	ids := b.scanner.ExtractMatches(ctx, i.ChannelID, keyword, marker, b.config.GatherLimit)
	metrics.GatherMatches.Observe(float64(len(ids)))
	b.log.InfoContext(ctx, "gathered images", "channel_id", i.ChannelID, "keyword", keyword, "matches", len(ids), "marker_found", marker != nil)

	if len(ids) == 0 {
		return handlerResult{Response: fmt.Sprintf(`No images found matching "%s".`, keyword)}
	}
	return handlerResult{Response: gatherReply(keyword, ids)}
}

// gatherReply renders the matches as a /pin invocation ready to paste.
func gatherReply(keyword string, ids []string) string {
	parts := []string{"/pin", "board:" + keyword}
	for n, id := range ids {
		parts = append(parts, fmt.Sprintf("message_id_%d:%s", n+1, id))
	}
	plural := "s"
	if len(ids) == 1 {
		plural = ""
	}
	return fmt.Sprintf("Found %d matching image%s for \"%s\":\n\n```%s```", len(ids), plural, keyword, strings.Join(parts, " "))
}
