package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/openai"
	"github.com/jusunglee/mjpin/internal/prompt"
	"github.com/jusunglee/mjpin/internal/store"
	"github.com/samber/lo"
)

const selectModelID = "select_openai_model"

// guildModel returns the model chosen for guildID, or "" for the provider
// default.
func (b *Bot) guildModel(ctx context.Context, guildID string) (string, error) {
	if guildID == "" {
		return "", nil
	}
	settings := make(map[string]string)
	if err := store.ReadJSON(ctx, b.store, store.KeyModelSettings, &settings); err != nil {
		return "", err
	}
	return settings[guildID], nil
}

func (b *Bot) setGuildModel(ctx context.Context, guildID, model string) error {
	b.settingsMu.Lock()
	defer b.settingsMu.Unlock()

	settings := make(map[string]string)
	if err := store.ReadJSON(ctx, b.store, store.KeyModelSettings, &settings); err != nil {
		return err
	}
	settings[guildID] = model
	return store.WriteJSON(ctx, b.store, store.KeyModelSettings, settings)
}

func (b *Bot) handleModel(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	if i.GuildID == "" {
		return userReply("This command can only be used in a server.")
	}
	if !hasPermission(i, discordgo.PermissionManageGuild) {
		return userReply("You need Manage Server permission to set the model.")
	}
	if b.models == nil {
		return userReply("OpenAI API key is not configured on the server.")
	}

	ids, err := b.models.ListModels(ctx)
	if err != nil {
		return handlerResult{
			Response: "Failed to load models. Please try again.",
			Err:      fmt.Errorf("listing models: %w", err),
		}
	}
	chat := openai.FilterChatModels(ids)
	if len(chat) == 0 {
		return handlerResult{Response: "No chat-capable models available for selection."}
	}

	current, err := b.guildModel(ctx, i.GuildID)
	if err != nil {
		return handlerResult{Err: fmt.Errorf("loading guild model: %w", err)}
	}

	options := lo.Map(lo.Slice(chat, 0, maxSelectOpts), func(id string, _ int) discordgo.SelectMenuOption {
		opt := discordgo.SelectMenuOption{
			Label:   prompt.Truncate(id, 100),
			Value:   id,
			Default: id == current,
		}
		if id == current {
			opt.Description = "Currently selected"
		}
		return opt
	})

	content := "Select a model for this server:"
	if current != "" {
		content = fmt.Sprintf("Current model: %s\nSelect a new model:", current)
	}
	return handlerResult{
		Response: content,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    selectModelID,
						Placeholder: "Choose a model for this server",
						Options:     options,
					},
				},
			},
		},
	}
}

func (b *Bot) handleModelSelect(ctx context.Context, i *discordgo.InteractionCreate, values []string) error {
	if i.GuildID == "" || !hasPermission(i, discordgo.PermissionManageGuild) {
		return b.update(i, "You need Manage Server permission to set the model.")
	}
	if len(values) == 0 {
		return nil
	}

	chosen := values[0]
	if err := b.setGuildModel(ctx, i.GuildID, chosen); err != nil {
		if respErr := b.update(i, "Failed to save the model. Please try again."); respErr != nil {
			b.log.ErrorContext(ctx, "failed to respond to interaction", "error", respErr)
		}
		return fmt.Errorf("saving guild model: %w", err)
	}
	b.log.InfoContext(ctx, "guild model changed", "guild_id", i.GuildID, "model", chosen)
	return b.update(i, "✅ Model saved: "+chosen)
}
