package bot

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/pinterest"
	"github.com/jusunglee/mjpin/internal/prompt"
	"github.com/jusunglee/mjpin/internal/ratelimit"
	"github.com/jusunglee/mjpin/internal/search"
	"github.com/jusunglee/mjpin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGatherReply(t *testing.T) {
	assert.Equal(t,
		"Found 2 matching images for \"sunset\":\n\n```/pin board:sunset message_id_1:111 message_id_2:222```",
		gatherReply("sunset", []string{"111", "222"}))
	assert.Equal(t,
		"Found 1 matching image for \"cat\":\n\n```/pin board:cat message_id_1:9```",
		gatherReply("cat", []string{"9"}))
}

func TestHandleGather(t *testing.T) {
	t.Run("after marker", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.session.On("GetUserID").Return(botUserID)
		marker := &discordgo.Message{ID: "500", Timestamp: time.Unix(1_700_000_000, 0)}
		tb.scanner.On("FindMarker", mock.Anything, testChannelID, mock.Anything, 500).Return(marker)
		tb.scanner.On("ExtractMatches", mock.Anything, testChannelID, "sunset", marker, 10).Return([]string{"501", "503"})

		result := tb.handleGather(t.Context(), commandInteraction("gather", 0, "keyword", " sunset "))
		require.NoError(t, result.Err)
		assert.Equal(t, gatherReply("sunset", []string{"501", "503"}), result.Response)
		assert.Equal(t, []string{`Searching for "sunset" images after last /pin command (<t:1700000000:f>)...`}, edits(tb.session))
	})

	t.Run("no marker and no matches", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.session.On("GetUserID").Return(botUserID)
		tb.scanner.On("FindMarker", mock.Anything, testChannelID, mock.Anything, 500).Return(nil)
		tb.scanner.On("ExtractMatches", mock.Anything, testChannelID, "ocean", (*discordgo.Message)(nil), 10).Return([]string{})

		result := tb.handleGather(t.Context(), commandInteraction("gather", 0, "keyword", "ocean"))
		assert.Equal(t, `No images found matching "ocean".`, result.Response)
		assert.Equal(t, []string{`No previous /pin command found. Searching recent "ocean" images...`}, edits(tb.session))
	})

	t.Run("marker predicate matches bot pin replies", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.session.On("GetUserID").Return(botUserID)
		tb.scanner.On("FindMarker", mock.Anything, testChannelID, mock.MatchedBy(func(pred search.Predicate) bool {
			return pred(&discordgo.Message{
				Content:     "Message 1: Pinned successfully.",
				Author:      &discordgo.User{ID: botUserID},
				Interaction: &discordgo.MessageInteraction{Name: "pin"},
			})
		}), 500).Return(nil)
		tb.scanner.On("ExtractMatches", mock.Anything, testChannelID, "cat", (*discordgo.Message)(nil), 10).Return([]string{})

		tb.handleGather(t.Context(), commandInteraction("gather", 0, "keyword", "cat"))
		tb.scanner.AssertExpectations(t)
	})

	t.Run("empty keyword", func(t *testing.T) {
		tb := newTestBot(t)
		result := tb.handleGather(t.Context(), commandInteraction("gather", 0, "keyword", "   "))
		_, isUserErr := errors.AsType[*userError](result.Err)
		assert.True(t, isUserErr)
		tb.scanner.AssertNotCalled(t, "FindMarker", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlePrompt(t *testing.T) {
	t.Run("uses the guild model", func(t *testing.T) {
		tb := newTestBot(t)
		require.NoError(t, store.WriteJSON(t.Context(), tb.store, store.KeyModelSettings, map[string]string{testGuildID: "gpt-5"}))
		tb.generator.On("Generate", mock.Anything, "gpt-5", "a cat").Return("/imagine a cat --ar 3:2", nil)

		result := tb.handlePrompt(t.Context(), commandInteraction("prompt", 0, "input", "a cat"))
		require.NoError(t, result.Err)
		assert.Equal(t, "/imagine a cat --ar 3:2", result.Response)
	})

	t.Run("throttled", func(t *testing.T) {
		tb := newTestBot(t)
		tb.throttle = ratelimit.NewThrottle(1, time.Minute)
		tb.generator.On("Generate", mock.Anything, "", "a cat").Return("ok", nil).Once()

		first := tb.handlePrompt(t.Context(), commandInteraction("prompt", 0, "input", "a cat"))
		require.NoError(t, first.Err)
		second := tb.handlePrompt(t.Context(), commandInteraction("prompt", 0, "input", "a cat"))
		_, isUserErr := errors.AsType[*userError](second.Err)
		assert.True(t, isUserErr)
		assert.Contains(t, second.Response, "too quickly")
		tb.generator.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("empty input", func(t *testing.T) {
		tb := newTestBot(t)
		tb.generator.On("Generate", mock.Anything, "", "").Return("", prompt.ErrEmptyInput)

		result := tb.handlePrompt(t.Context(), commandInteraction("prompt", 0, "input", ""))
		_, isUserErr := errors.AsType[*userError](result.Err)
		assert.True(t, isUserErr)
	})

	t.Run("llm failure", func(t *testing.T) {
		tb := newTestBot(t)
		tb.generator.On("Generate", mock.Anything, "", "a cat").Return("", errors.New("rate limited"))

		result := tb.handlePrompt(t.Context(), commandInteraction("prompt", 0, "input", "a cat"))
		require.Error(t, result.Err)
		assert.Contains(t, result.Response, "could not generate")
	})
}

func TestHandleModel(t *testing.T) {
	t.Run("guild only", func(t *testing.T) {
		tb := newTestBot(t)
		i := commandInteraction("model", discordgo.PermissionManageGuild)
		i.GuildID = ""
		assert.Equal(t, "This command can only be used in a server.", tb.handleModel(t.Context(), i).Response)
	})

	t.Run("needs manage server", func(t *testing.T) {
		tb := newTestBot(t)
		result := tb.handleModel(t.Context(), commandInteraction("model", 0))
		assert.Equal(t, "You need Manage Server permission to set the model.", result.Response)
	})

	t.Run("needs an api key", func(t *testing.T) {
		tb := newTestBot(t)
		tb.Bot.models = nil
		result := tb.handleModel(t.Context(), commandInteraction("model", discordgo.PermissionManageGuild))
		assert.Equal(t, "OpenAI API key is not configured on the server.", result.Response)
	})

	t.Run("lists filtered models with the current one marked", func(t *testing.T) {
		tb := newTestBot(t)
		require.NoError(t, store.WriteJSON(t.Context(), tb.store, store.KeyModelSettings, map[string]string{testGuildID: "gpt-4o"}))
		tb.models.On("ListModels", mock.Anything).Return([]string{"whisper-1", "gpt-4o", "gpt-3.5-turbo", "o3-mini", "text-embedding-3-small"}, nil)

		result := tb.handleModel(t.Context(), commandInteraction("model", discordgo.PermissionManageGuild))
		require.NoError(t, result.Err)
		assert.Equal(t, "Current model: gpt-4o\nSelect a new model:", result.Response)

		require.Len(t, result.Components, 1)
		menu := result.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
		assert.Equal(t, selectModelID, menu.CustomID)
		require.Len(t, menu.Options, 2)
		assert.Equal(t, "gpt-4o", menu.Options[0].Value)
		assert.True(t, menu.Options[0].Default)
		assert.Equal(t, "Currently selected", menu.Options[0].Description)
		assert.Equal(t, "o3-mini", menu.Options[1].Value)
		assert.False(t, menu.Options[1].Default)
	})

	t.Run("caps the menu at 25 options", func(t *testing.T) {
		tb := newTestBot(t)
		ids := make([]string, 0, 30)
		for n := range 30 {
			ids = append(ids, "gpt-4o-"+strings.Repeat("x", n+1))
		}
		tb.models.On("ListModels", mock.Anything).Return(ids, nil)

		result := tb.handleModel(t.Context(), commandInteraction("model", discordgo.PermissionManageGuild))
		menu := result.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
		assert.Len(t, menu.Options, 25)
	})

	t.Run("selection is saved", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)

		tb.handleInteraction(nil, componentInteraction(selectModelID, discordgo.PermissionManageGuild, "o3-mini"))

		model, err := tb.guildModel(t.Context(), testGuildID)
		require.NoError(t, err)
		assert.Equal(t, "o3-mini", model)

		resps := responses(tb.session)
		require.Len(t, resps, 1)
		assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resps[0].Type)
		assert.Equal(t, "✅ Model saved: o3-mini", resps[0].Data.Content)
		assert.Empty(t, resps[0].Data.Components)
	})

	t.Run("selection without permission is rejected", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)

		tb.handleInteraction(nil, componentInteraction(selectModelID, 0, "o3-mini"))

		model, err := tb.guildModel(t.Context(), testGuildID)
		require.NoError(t, err)
		assert.Empty(t, model)
	})
}

func TestHandleAuth(t *testing.T) {
	tb := newTestBot(t)
	result := tb.handleAuth(t.Context(), commandInteraction("auth", 0))
	require.NoError(t, result.Err)
	assert.True(t, strings.HasPrefix(result.Response, "Click the link below to authenticate with Pinterest:\n"))

	link := strings.Split(result.Response, "\n")[1]
	u, err := url.Parse(link)
	require.NoError(t, err)
	userID, err := tb.oauth.ConsumeState(t.Context(), u.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, testUserID, userID)

	t.Run("not configured", func(t *testing.T) {
		tb := newTestBot(t)
		tb.oauth = pinterest.NewOAuth(pinterest.OAuthConfig{}, tb.store)
		tb.Bot = tb.build(Config{})
		result := tb.handleAuth(t.Context(), commandInteraction("auth", 0))
		assert.ErrorIs(t, result.Err, pinterest.ErrNotConfigured)
	})
}

func TestHandleSettings(t *testing.T) {
	t.Run("no accounts", func(t *testing.T) {
		tb := newTestBot(t)
		result := tb.handleSettings(t.Context(), commandInteraction("settings", 0))
		assert.Equal(t, "You have no Pinterest accounts linked. Use `/auth` to link your first account.", result.Response)
	})

	t.Run("one account", func(t *testing.T) {
		tb := newTestBot(t)
		tb.linkAccount(t)
		result := tb.handleSettings(t.Context(), commandInteraction("settings", 0))
		assert.Contains(t, result.Response, "You have one Pinterest account linked: **alex (pin-user)**")
		assert.Empty(t, result.Components)
	})

	t.Run("many accounts then switch", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.linkAccount(t)
		_, err := tb.registry.SaveAccount(t.Context(), testUserID, pinterest.UserAccount{ID: "pin-user-2", Username: "blair"}, "tok-2")
		require.NoError(t, err)

		result := tb.handleSettings(t.Context(), commandInteraction("settings", 0))
		require.NoError(t, result.Err)
		assert.Contains(t, result.Response, "You have 2 Pinterest accounts linked.\nCurrently active: **alex (pin-user)**")
		menu := result.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
		assert.Equal(t, selectAccountID, menu.CustomID)
		require.Len(t, menu.Options, 2)
		assert.True(t, menu.Options[0].Default)
		assert.Equal(t, "✓ Currently active", menu.Options[0].Description)

		tb.handleInteraction(nil, componentInteraction(selectAccountID, 0, "pin-user-2"))

		active, err := tb.registry.ActiveAccount(t.Context(), testUserID)
		require.NoError(t, err)
		assert.Equal(t, "pin-user-2", active.PinterestUserID)
		resps := responses(tb.session)
		require.Len(t, resps, 1)
		assert.Contains(t, resps[0].Data.Content, "✅ **Account switched successfully!**")
		assert.Contains(t, resps[0].Data.Content, "**blair (pin-user)**")
	})

	t.Run("unknown account selection", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.linkAccount(t)

		tb.handleInteraction(nil, componentInteraction(selectAccountID, 0, "nope"))

		resps := responses(tb.session)
		require.Len(t, resps, 1)
		assert.Equal(t, "❌ Failed to switch accounts. Please try again.", resps[0].Data.Content)
	})
}

func TestHandleSync(t *testing.T) {
	t.Run("needs manage server", func(t *testing.T) {
		tb := newTestBot(t)
		result := tb.handleSync(t.Context(), commandInteraction("sync", 0))
		assert.Equal(t, "You do not have permission to use this command.", result.Response)
		tb.pinterest.AssertNotCalled(t, "ListBoards", mock.Anything, mock.Anything)
	})

	t.Run("stores boards for the active account", func(t *testing.T) {
		tb := newTestBot(t)
		tb.linkAccount(t)
		boards := []pinterest.Board{{ID: "1", Name: "Sunset"}, {ID: "2", Name: "Forest"}}
		tb.pinterest.On("UserAccount", mock.Anything, "tok-1").Return(pinterest.UserAccount{ID: "pin-user-1"}, nil)
		tb.pinterest.On("ListBoards", mock.Anything, "tok-1").Return(boards, nil)

		result := tb.handleSync(t.Context(), commandInteraction("sync", discordgo.PermissionManageGuild))
		require.NoError(t, result.Err)
		assert.Equal(t, "Synced 2 boards for account pin-user-1.", result.Response)

		got, err := tb.registry.Boards(t.Context(), "pin-user-1")
		require.NoError(t, err)
		assert.Equal(t, boards, got)
	})

	t.Run("revoked token", func(t *testing.T) {
		tb := newTestBot(t)
		tb.linkAccount(t)
		tb.pinterest.On("UserAccount", mock.Anything, "tok-1").
			Return(pinterest.UserAccount{}, errors.Join(pinterest.ErrUnauthorized, errors.New("401")))

		result := tb.handleSync(t.Context(), commandInteraction("sync", discordgo.PermissionAdministrator))
		assert.Contains(t, result.Response, "Run /auth")
		_, isUserErr := errors.AsType[*userError](result.Err)
		assert.True(t, isUserErr)
	})
}

func TestEditPrompt(t *testing.T) {
	newLibraryBot := func(t *testing.T) *testBot {
		t.Helper()
		tb := newTestBot(t)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "style_guide.txt"), []byte("Be vivid."), 0o644))
		lib, err := prompt.NewLibrary(dir)
		require.NoError(t, err)
		tb.library = lib
		tb.Bot = tb.build(Config{})
		expectResponses(tb.session)
		return tb
	}

	t.Run("admin only", func(t *testing.T) {
		tb := newLibraryBot(t)
		result := tb.handleEditPrompt(t.Context(), commandInteraction("editprompt", discordgo.PermissionManageGuild))
		assert.Equal(t, adminOnlyEditMessage, result.Response)
	})

	t.Run("select then submit", func(t *testing.T) {
		tb := newLibraryBot(t)

		result := tb.handleEditPrompt(t.Context(), commandInteraction("editprompt", discordgo.PermissionAdministrator))
		require.NoError(t, result.Err)
		menu := result.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
		require.Len(t, menu.Options, 1)
		assert.Equal(t, "Style Guide", menu.Options[0].Label)

		tb.handleInteraction(nil, componentInteraction(selectSectionID, discordgo.PermissionAdministrator, "style_guide"))
		resps := responses(tb.session)
		require.Len(t, resps, 1)
		assert.Equal(t, discordgo.InteractionResponseModal, resps[0].Type)
		assert.Equal(t, "editprompt_modal:style_guide", resps[0].Data.CustomID)
		input := resps[0].Data.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
		assert.Equal(t, "Be vivid.", input.Value)
		assert.Equal(t, "Style Guide (max 4000 chars)", input.Label)

		tb.handleInteraction(nil, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionModalSubmit,
			GuildID:   testGuildID,
			ChannelID: testChannelID,
			Member:    &discordgo.Member{User: &discordgo.User{ID: testUserID}, Permissions: discordgo.PermissionAdministrator},
			Data: discordgo.ModalSubmitInteractionData{
				CustomID: "editprompt_modal:style_guide",
				Components: []discordgo.MessageComponent{
					&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						&discordgo.TextInput{CustomID: sectionInputID, Value: "Be bold."},
					}},
				},
			},
		}})

		resps = responses(tb.session)
		require.Len(t, resps, 2)
		assert.Equal(t, "Style Guide updated successfully!", resps[1].Data.Content)
		assert.Equal(t, "Be bold.", tb.library.SystemPrompt())
	})
}

func TestRestart(t *testing.T) {
	t.Run("saves the reply and shuts down", func(t *testing.T) {
		tb := newTestBot(t)
		expectResponses(tb.session)
		tb.session.On("InteractionResponse", mock.Anything, mock.Anything).
			Return(&discordgo.Message{ID: "reply-1", ChannelID: testChannelID}, nil)
		var cause error
		tb.shutdown = func(err error) { cause = err }

		tb.handleCommand(commandInteraction("restart", discordgo.PermissionAdministrator))

		resps := responses(tb.session)
		require.Len(t, resps, 1)
		assert.Equal(t, "Restarting bot...", resps[0].Data.Content)
		assert.ErrorIs(t, cause, ErrRestartRequested)

		var info restartInfo
		require.NoError(t, store.ReadJSON(t.Context(), tb.store, store.KeyRestartInfo, &info))
		assert.Equal(t, restartInfo{ChannelID: testChannelID, MessageID: "reply-1"}, info)
	})

	t.Run("next ready edits the reply", func(t *testing.T) {
		tb := newTestBot(t)
		require.NoError(t, store.WriteJSON(t.Context(), tb.store, store.KeyRestartInfo, restartInfo{ChannelID: testChannelID, MessageID: "reply-1"}))
		tb.session.On("ChannelMessageEdit", testChannelID, "reply-1", "Restart successful.", mock.Anything).Return(&discordgo.Message{}, nil)

		tb.handleReady(nil, &discordgo.Ready{User: &discordgo.User{Username: "mjpin"}})

		tb.session.AssertExpectations(t)
		var info restartInfo
		require.NoError(t, store.ReadJSON(t.Context(), tb.store, store.KeyRestartInfo, &info))
		assert.Empty(t, info.MessageID)
	})

	t.Run("ready without pending restart", func(t *testing.T) {
		tb := newTestBot(t)
		tb.completeRestart(t.Context())
		tb.session.AssertNotCalled(t, "ChannelMessageEdit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
