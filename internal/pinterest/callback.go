package pinterest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// CallbackHandler completes the OAuth flow at GET /pinterest/callback.
type CallbackHandler struct {
	oauth    *OAuth
	client   *Client
	registry *Registry
	log      *slog.Logger
}

func NewCallbackHandler(oauth *OAuth, client *Client, registry *Registry, log *slog.Logger) *CallbackHandler {
	return &CallbackHandler{oauth: oauth, client: client, registry: registry, log: log}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "Missing code or state parameter.", http.StatusBadRequest)
		return
	}

	discordUserID, err := h.oauth.ConsumeState(ctx, state)
	if errors.Is(err, ErrInvalidState) {
		h.log.WarnContext(ctx, "oauth callback with unknown state")
		http.Error(w, "This authorization link has expired. Run /auth again.", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "resolving oauth state", "error", err)
		http.Error(w, "Pinterest authentication failed.", http.StatusInternalServerError)
		return
	}

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.ErrorContext(ctx, "pinterest token exchange failed", "error", err, "discord_user_id", discordUserID)
		http.Error(w, "Pinterest authentication failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	user, err := h.client.UserAccount(ctx, token)
	if err != nil {
		h.log.ErrorContext(ctx, "fetching pinterest user account", "error", err, "discord_user_id", discordUserID)
		http.Error(w, "Failed to get Pinterest user information.", http.StatusInternalServerError)
		return
	}

	acct, err := h.registry.SaveAccount(ctx, discordUserID, user, token)
	if err != nil {
		h.log.ErrorContext(ctx, "saving pinterest account", "error", err, "discord_user_id", discordUserID)
		http.Error(w, "Pinterest authentication failed.", http.StatusInternalServerError)
		return
	}

	h.log.InfoContext(ctx, "linked pinterest account", "account", acct.AccountName, "discord_user_id", discordUserID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Pinterest authentication successful! Account %q has been added. You can now use the bot.", acct.AccountName)
}
