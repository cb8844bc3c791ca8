package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/jusunglee/mjpin/internal/pinterest"
	"github.com/jusunglee/mjpin/internal/search"
	"github.com/samber/lo"
)

const maxPinMessages = 10

func pinMessageIDs(options []*discordgo.ApplicationCommandInteractionDataOption) []string {
	var ids []string
	for n := 1; n <= maxPinMessages; n++ {
		if id := strings.TrimSpace(getOption(options, fmt.Sprintf("message_id_%d", n))); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *Bot) handlePin(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	options := i.ApplicationCommandData().Options
	boardName := getOption(options, "board")
	link := getOption(options, "url")
	ids := pinMessageIDs(options)
	if len(ids) == 0 {
		return userReply("You must provide at least one message ID.")
	}

	acct, err := b.accounts.ActiveAccount(ctx, interactionUserID(i))
	if errors.Is(err, pinterest.ErrNoAccount) {
		return userReply("You must authenticate with Pinterest first using /auth.")
	}
	if err != nil {
		return handlerResult{Err: fmt.Errorf("loading active account: %w", err)}
	}

	board, available, err := b.accounts.FindBoard(ctx, acct.PinterestUserID, boardName)
	if errors.Is(err, pinterest.ErrBoardNotFound) {
		names := "No boards found. Run /sync first."
		if len(available) > 0 {
			names = strings.Join(lo.Map(available, func(b pinterest.Board, _ int) string { return b.Name }), ", ")
		}
		return handlerResult{
			Response: fmt.Sprintf("Board %q not found. Available boards: %s", boardName, names),
			Err:      newUserError(err),
		}
	}
	if err != nil {
		return handlerResult{Err: fmt.Errorf("looking up board: %w", err)}
	}

	lines := b.pinMessages(ctx, i.ChannelID, acct, board, link, ids)
	return handlerResult{Response: strings.Join(lines, "\n")}
}

// pinMessages pins each message's first image in order and returns one
// status line per message handled. A full quota or an unreadable quota stops
// the run.
func (b *Bot) pinMessages(ctx context.Context, channelID string, acct pinterest.Account, board pinterest.Board, link string, ids []string) []string {
	log := b.log.With("channel_id", channelID, "account", acct.PinterestUserID, "board_id", board.ID)
	lines := make([]string, 0, len(ids))

	for _, id := range ids {
		msg, err := b.session.ChannelMessage(channelID, id, discordgo.WithContext(ctx))
		if err != nil {
			lines = append(lines, fmt.Sprintf("Message %s: Error - %s", id, discordErrorText(err)))
			continue
		}

		imageURL, ok := search.ImageURL(msg)
		if !ok {
			lines = append(lines, fmt.Sprintf("Message %s: No image found.", id))
			continue
		}

		count, err := b.limiter.RecentCount(ctx, acct.PinterestUserID, b.now())
		if err != nil {
			log.ErrorContext(ctx, "pin quota check failed", "error", err, "message_id", id)
			lines = append(lines, fmt.Sprintf("Message %s: Error - could not check the pin quota, stopping.", id))
			break
		}
		if count >= b.limiter.Limit() {
			metrics.PinQuotaDenials.Inc()
			log.WarnContext(ctx, "pin quota reached", "count", count, "limit", b.limiter.Limit())
			lines = append(lines, fmt.Sprintf("Message %s: Pin limit reached (%d pins per %s for this Pinterest account). Try again later.",
				id, b.limiter.Limit(), formatWindow(b.limiter.Window())))
			break
		}

		pin, err := b.pinterest.CreatePin(ctx, acct.AccessToken, pinterest.PinRequest{
			BoardID:  board.ID,
			ImageURL: imageURL,
			Link:     link,
		})
		if err != nil {
			metrics.PinsTotal.WithLabelValues("failed").Inc()
			log.WarnContext(ctx, "pin failed", "error", err, "message_id", id)
			lines = append(lines, fmt.Sprintf("Message %s: Failed to pin (%s).", id, err))
			continue
		}

		metrics.PinsTotal.WithLabelValues("created").Inc()
		// The pin exists either way; a lost record only undercounts.
		if err := b.limiter.Record(ctx, acct.PinterestUserID, b.now()); err != nil {
			log.ErrorContext(ctx, "recording pin failed", "error", err, "pin_id", pin.ID)
		}
		log.InfoContext(ctx, "pinned image", "message_id", id, "pin_id", pin.ID)
		lines = append(lines, fmt.Sprintf("Message %s: Pinned successfully.", id))
	}
	return lines
}

func discordErrorText(err error) string {
	if restErr, ok := errors.AsType[*discordgo.RESTError](err); ok && restErr.Message != nil && restErr.Message.Message != "" {
		return restErr.Message.Message
	}
	return err.Error()
}

// formatWindow prints whole hours and minutes compactly: 12h, 90m.
func formatWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}
