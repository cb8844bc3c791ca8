package pinterest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jusunglee/mjpin/internal/store"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL  = "https://www.pinterest.com/oauth/"
	DefaultTokenURL = "https://api.pinterest.com/v5/oauth/token"

	StateTTL = 15 * time.Minute
)

var Scopes = []string{
	"boards:read",
	"boards:write",
	"pins:read",
	"pins:write",
	"user_accounts:read",
}

var (
	ErrNotConfigured = errors.New("pinterest OAuth is not configured")
	ErrInvalidState  = errors.New("unknown or expired OAuth state")
)

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
}

type pendingState struct {
	DiscordUserID string `json:"discordUserId"`
	ExpiresAt     int64  `json:"expiresAt"`
}

// OAuth runs the authorization code flow. Each authorization link carries a
// random single-use state bound to the Discord user who asked for it.
type OAuth struct {
	config *oauth2.Config
	store  store.Store
	mu     sync.Mutex
	now    func() time.Time
}

func NewOAuth(cfg OAuthConfig, s store.Store) *OAuth {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store: s,
		now:   time.Now,
	}
}

func (o *OAuth) Configured() bool {
	return o.config.ClientID != "" && o.config.ClientSecret != "" && o.config.RedirectURL != ""
}

func (o *OAuth) loadStates(ctx context.Context) (map[string]pendingState, error) {
	states := make(map[string]pendingState)
	if err := store.ReadJSON(ctx, o.store, store.KeyOAuthStates, &states); err != nil {
		return nil, err
	}
	nowMs := o.now().UnixMilli()
	for k, s := range states {
		if s.ExpiresAt <= nowMs {
			delete(states, k)
		}
	}
	return states, nil
}

// AuthURL mints a state for discordUserID and returns the Pinterest consent
// page URL.
func (o *OAuth) AuthURL(ctx context.Context, discordUserID string) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	states, err := o.loadStates(ctx)
	if err != nil {
		return "", fmt.Errorf("loading oauth states: %w", err)
	}
	state := uuid.NewString()
	states[state] = pendingState{
		DiscordUserID: discordUserID,
		ExpiresAt:     o.now().Add(StateTTL).UnixMilli(),
	}
	if err := store.WriteJSON(ctx, o.store, store.KeyOAuthStates, states); err != nil {
		return "", fmt.Errorf("saving oauth state: %w", err)
	}

	// Pinterest wants scopes comma separated.
	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", strings.Join(Scopes, ","))), nil
}

// ConsumeState resolves state to the Discord user it was issued for and
// removes it.
func (o *OAuth) ConsumeState(ctx context.Context, state string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	states, err := o.loadStates(ctx)
	if err != nil {
		return "", fmt.Errorf("loading oauth states: %w", err)
	}
	pending, ok := states[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(states, state)
	if err := store.WriteJSON(ctx, o.store, store.KeyOAuthStates, states); err != nil {
		return "", fmt.Errorf("saving oauth states: %w", err)
	}
	return pending.DiscordUserID, nil
}

// Exchange trades an authorization code for an access token.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("no access token received from Pinterest")
	}
	return tok.AccessToken, nil
}
