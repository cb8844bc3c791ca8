package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/store"
)

type restartInfo struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

func (b *Bot) handleRestart(_ context.Context, i *discordgo.InteractionCreate) handlerResult {
	if !hasPermission(i, discordgo.PermissionAdministrator) {
		return userReply("You must be a server admin to restart the bot.")
	}
	return handlerResult{
		Response: "Restarting bot...",
		after: func(ctx context.Context) {
			b.saveRestartInfo(ctx, i)
			b.log.InfoContext(ctx, "restart requested", "user_id", interactionUserID(i))
			b.shutdown(ErrRestartRequested)
		},
	}
}

func (b *Bot) saveRestartInfo(ctx context.Context, i *discordgo.InteractionCreate) {
	msg, err := b.session.InteractionResponse(i.Interaction, discordgo.WithContext(ctx))
	if err != nil {
		b.log.WarnContext(ctx, "fetching restart reply", "error", err)
		return
	}
	info := restartInfo{ChannelID: msg.ChannelID, MessageID: msg.ID}
	if info.ChannelID == "" {
		info.ChannelID = i.ChannelID
	}
	if err := store.WriteJSON(ctx, b.store, store.KeyRestartInfo, info); err != nil {
		b.log.ErrorContext(ctx, "saving restart info", "error", err)
	}
}

// completeRestart edits the "Restarting bot..." reply left by the previous
// process, then clears the record.
func (b *Bot) completeRestart(ctx context.Context) {
	var info restartInfo
	if err := store.ReadJSON(ctx, b.store, store.KeyRestartInfo, &info); err != nil {
		b.log.ErrorContext(ctx, "loading restart info", "error", err)
		return
	}
	if info.ChannelID == "" || info.MessageID == "" {
		return
	}

	if _, err := b.session.ChannelMessageEdit(info.ChannelID, info.MessageID, "Restart successful.", discordgo.WithContext(ctx)); err != nil {
		b.log.ErrorContext(ctx, "updating restart message", "error", err, "channel_id", info.ChannelID)
	} else {
		b.log.InfoContext(ctx, "updated restart message", "channel_id", info.ChannelID)
	}

	if err := b.store.Write(ctx, store.KeyRestartInfo, store.EmptyObject); err != nil {
		b.log.ErrorContext(ctx, "clearing restart info", "error", err)
	}
}
