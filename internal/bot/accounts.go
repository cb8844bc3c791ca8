package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/pinterest"
	"github.com/samber/lo"
)

const selectAccountID = "select_active_pinterest_account"

func (b *Bot) handleAuth(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	if !b.auth.Configured() {
		return handlerResult{
			Response: "Pinterest authentication is not configured on this bot.",
			Err:      pinterest.ErrNotConfigured,
		}
	}

	authURL, err := b.auth.AuthURL(ctx, interactionUserID(i))
	if err != nil {
		return handlerResult{Err: fmt.Errorf("building auth url: %w", err)}
	}
	return handlerResult{
		Response: fmt.Sprintf("Click the link below to authenticate with Pinterest:\n%s\n\nAfter authorizing, you'll be redirected to the callback URL. The bot will complete the process automatically.", authURL),
	}
}

func (b *Bot) handleSettings(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	userID := interactionUserID(i)
	accts, err := b.accounts.Accounts(ctx, userID)
	if err != nil {
		return handlerResult{
			Response: "❌ Error loading account settings. Please try again.",
			Err:      fmt.Errorf("listing accounts: %w", err),
		}
	}

	switch len(accts) {
	case 0:
		return handlerResult{Response: "You have no Pinterest accounts linked. Use `/auth` to link your first account."}
	case 1:
		return handlerResult{Response: fmt.Sprintf("You have one Pinterest account linked: **%s**\n\nThis account is automatically active. Use `/auth` to link additional accounts.", accts[0].AccountName)}
	}

	active, err := b.accounts.ActiveAccount(ctx, userID)
	if err != nil && !errors.Is(err, pinterest.ErrNoAccount) {
		return handlerResult{
			Response: "❌ Error loading account settings. Please try again.",
			Err:      fmt.Errorf("loading active account: %w", err),
		}
	}
	activeName := "None"
	if active.PinterestUserID != "" {
		activeName = active.AccountName
	}

	options := lo.Map(lo.Slice(accts, 0, maxSelectOpts), func(a pinterest.Account, _ int) discordgo.SelectMenuOption {
		isActive := a.PinterestUserID == active.PinterestUserID
		desc := "Click to set as active"
		if isActive {
			desc = "✓ Currently active"
		}
		return discordgo.SelectMenuOption{
			Label:       a.AccountName,
			Value:       a.PinterestUserID,
			Description: desc,
			Default:     isActive,
		}
	})

	return handlerResult{
		Response: fmt.Sprintf("**Pinterest Account Settings**\n\nYou have %d Pinterest accounts linked.\nCurrently active: **%s**\n\nSelect an account below to switch to it:", len(accts), activeName),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    selectAccountID,
						Placeholder: "Choose which Pinterest account to use...",
						Options:     options,
					},
				},
			},
		},
	}
}

func (b *Bot) handleAccountSelect(ctx context.Context, i *discordgo.InteractionCreate, values []string) error {
	if len(values) == 0 {
		return nil
	}
	userID := interactionUserID(i)

	ok, err := b.accounts.SetActiveAccount(ctx, userID, values[0])
	if err != nil || !ok {
		if respErr := b.update(i, "❌ Failed to switch accounts. Please try again."); respErr != nil {
			b.log.ErrorContext(ctx, "failed to respond to interaction", "error", respErr)
		}
		return err
	}

	active, err := b.accounts.ActiveAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading switched account: %w", err)
	}
	b.log.InfoContext(ctx, "switched active pinterest account", "user_id", userID, "account", active.PinterestUserID)
	return b.update(i, fmt.Sprintf("✅ **Account switched successfully!**\n\nYour active Pinterest account is now: **%s**\n\nAll `/pin` and `/sync` commands will now use this account.", active.AccountName))
}

func (b *Bot) handleSync(ctx context.Context, i *discordgo.InteractionCreate) handlerResult {
	if !hasPermission(i, discordgo.PermissionManageGuild) {
		return userReply("You do not have permission to use this command.")
	}

	acct, err := b.accounts.ActiveAccount(ctx, interactionUserID(i))
	if errors.Is(err, pinterest.ErrNoAccount) {
		return userReply("You must authenticate with Pinterest first using /auth.")
	}
	if err != nil {
		return handlerResult{Err: fmt.Errorf("loading active account: %w", err)}
	}

	user, err := b.pinterest.UserAccount(ctx, acct.AccessToken)
	if err != nil {
		return syncFailure(err)
	}
	if user.ID != acct.PinterestUserID {
		b.log.WarnContext(ctx, "token belongs to a different pinterest user", "stored", acct.PinterestUserID, "actual", user.ID)
	}

	boards, err := b.pinterest.ListBoards(ctx, acct.AccessToken)
	if err != nil {
		return syncFailure(err)
	}
	if err := b.accounts.SaveBoards(ctx, acct.PinterestUserID, boards); err != nil {
		return handlerResult{Err: fmt.Errorf("saving boards: %w", err)}
	}

	b.log.InfoContext(ctx, "synced boards", "account", acct.PinterestUserID, "count", len(boards))
	return handlerResult{Response: fmt.Sprintf("Synced %d boards for account %s.", len(boards), acct.PinterestUserID)}
}

func syncFailure(err error) handlerResult {
	if errors.Is(err, pinterest.ErrUnauthorized) {
		return handlerResult{
			Response: "Pinterest rejected the saved token. Run /auth to link the account again.",
			Err:      newUserError(err),
		}
	}
	return handlerResult{
		Response: fmt.Sprintf("Error syncing boards: %s", err),
		Err:      fmt.Errorf("syncing boards: %w", err),
	}
}
