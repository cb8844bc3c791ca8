package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/jusunglee/mjpin/internal/prompt"
	"github.com/samber/lo"
)

const (
	selectSectionID       = "editprompt-section-select"
	editPromptModalPrefix = "editprompt_modal"
	sectionInputID        = "section-content-input"

	// Discord caps modal titles and text input labels at 45 characters.
	maxModalLabel = 45
	maxSelectOpts = 25

	adminOnlyEditMessage = "You must be a server admin to edit the system prompt."
)

func (b *Bot) handlePrompt(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	userID := interactionUserID(i)
	if !b.throttle.Allow(userID) {
		metrics.CommandThrottled.Inc()
		return userReply("You're sending prompts too quickly. Please wait a minute and try again.")
	}

	model, err := b.guildModel(ctx, i.GuildID)
	if err != nil {
		b.log.WarnContext(ctx, "loading guild model, using default", "guild_id", i.GuildID, "error", err)
		model = ""
	}

	out, err := b.generator.Generate(ctx, model, getOption(i.ApplicationCommandData().Options, "input"))
	if errors.Is(err, prompt.ErrEmptyInput) {
		return userReply("Please describe what you want to generate.")
	}
	if err != nil {
		return handlerResult{
			Response: "Error: could not generate a prompt right now. Please try again.",
			Err:      fmt.Errorf("generating prompt: %w", err),
		}
	}
	return handlerResult{Response: out}
}

func (b *Bot) handleEditPrompt(_ context.Context, i *discordgo.InteractionCreate) handlerResult {
	if !hasPermission(i, discordgo.PermissionAdministrator) {
		return userReply(adminOnlyEditMessage)
	}

	sections := b.prompts.Sections()
	if len(sections) == 0 {
		return handlerResult{Response: "No prompt files found to edit."}
	}

	options := lo.Map(lo.Slice(sections, 0, maxSelectOpts), func(s prompt.Section, _ int) discordgo.SelectMenuOption {
		return discordgo.SelectMenuOption{Label: prompt.Truncate(s.Label, 100), Value: s.ID}
	})
	return handlerResult{
		Response: "Which section would you like to edit?",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    selectSectionID,
						Placeholder: "Select a section to edit",
						Options:     options,
					},
				},
			},
		},
	}
}

func (b *Bot) handleSectionSelect(_ context.Context, i *discordgo.InteractionCreate, values []string) error {
	if !hasPermission(i, discordgo.PermissionAdministrator) {
		return b.update(i, adminOnlyEditMessage)
	}
	if len(values) == 0 {
		return nil
	}
	section, ok := b.prompts.Section(values[0])
	if !ok {
		return b.update(i, "Invalid section selected.")
	}

	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: editPromptModalPrefix + ":" + section.ID,
			Title:    prompt.Truncate("Edit: "+section.Label, maxModalLabel),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  sectionInputID,
							Label:     prompt.Truncate(fmt.Sprintf("%s (max %d chars)", section.Label, prompt.MaxSectionLength), maxModalLabel),
							Style:     discordgo.TextInputParagraph,
							Value:     prompt.Truncate(section.Content, prompt.MaxSectionLength),
							MaxLength: prompt.MaxSectionLength,
						},
					},
				},
			},
		},
	})
}

func (b *Bot) handleSectionSubmit(ctx context.Context, i *discordgo.InteractionCreate, sectionID, content string) error {
	if !hasPermission(i, discordgo.PermissionAdministrator) {
		return b.respondEphemeral(i, adminOnlyEditMessage)
	}
	section, ok := b.prompts.Section(sectionID)
	if !ok {
		return b.respondEphemeral(i, "Invalid section selected.")
	}

	err := b.prompts.UpdateSection(sectionID, content)
	if errors.Is(err, prompt.ErrSectionTooLong) {
		return b.respondEphemeral(i, fmt.Sprintf("%s is limited to %d characters.", section.Label, prompt.MaxSectionLength))
	}
	if err != nil {
		if respErr := b.respondEphemeral(i, fmt.Sprintf("Failed to update %s.", section.Label)); respErr != nil {
			b.log.ErrorContext(ctx, "failed to respond to interaction", "error", respErr)
		}
		return fmt.Errorf("updating prompt section %s: %w", sectionID, err)
	}

	b.log.InfoContext(ctx, "prompt section updated", "section", sectionID, "user_id", interactionUserID(i))
	return b.respondEphemeral(i, section.Label+" updated successfully!")
}
