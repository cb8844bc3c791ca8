package pinterest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jusunglee/mjpin/internal/store"
	"github.com/samber/lo"
)

var (
	ErrNoAccount     = errors.New("no Pinterest account linked")
	ErrBoardNotFound = errors.New("board not found")
)

// Account is a Pinterest login linked to a Discord user.
type Account struct {
	AccessToken     string    `json:"accessToken"`
	PinterestUserID string    `json:"pinterestUserId"`
	AccountName     string    `json:"accountName"`
	CreatedAt       time.Time `json:"createdAt"`
}

type linkedAccounts struct {
	Accounts      map[string]Account `json:"accounts"`
	ActiveAccount string             `json:"activeAccount"`
}

// AccountName is how an account is shown in Discord: the username followed
// by the first eight characters of the Pinterest user ID.
func AccountName(u UserAccount) string {
	username := u.Username
	if username == "" {
		username = "Pinterest Account"
	}
	id := u.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s (%s)", username, id)
}

// Registry stores linked accounts (pinterest_tokens) and synced boards
// (boards). Writes are serialized within the process.
type Registry struct {
	store store.Store
	mu    sync.Mutex
	now   func() time.Time
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

func (r *Registry) loadAccounts(ctx context.Context) (map[string]linkedAccounts, error) {
	all := make(map[string]linkedAccounts)
	if err := store.ReadJSON(ctx, r.store, store.KeyPinterestAuth, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SaveAccount links (or relinks) a Pinterest account to discordUserID. The
// first linked account becomes active.
func (r *Registry) SaveAccount(ctx context.Context, discordUserID string, user UserAccount, token string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadAccounts(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("loading accounts: %w", err)
	}

	linked := all[discordUserID]
	if linked.Accounts == nil {
		linked.Accounts = make(map[string]Account)
	}
	acct := Account{
		AccessToken:     token,
		PinterestUserID: user.ID,
		AccountName:     AccountName(user),
		CreatedAt:       r.now().UTC(),
	}
	linked.Accounts[user.ID] = acct
	if linked.ActiveAccount == "" {
		linked.ActiveAccount = user.ID
	}
	all[discordUserID] = linked

	if err := store.WriteJSON(ctx, r.store, store.KeyPinterestAuth, all); err != nil {
		return Account{}, fmt.Errorf("saving accounts: %w", err)
	}
	return acct, nil
}

// ActiveAccount returns ErrNoAccount when discordUserID has nothing linked.
func (r *Registry) ActiveAccount(ctx context.Context, discordUserID string) (Account, error) {
	all, err := r.loadAccounts(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("loading accounts: %w", err)
	}
	linked := all[discordUserID]
	acct, ok := linked.Accounts[linked.ActiveAccount]
	if !ok {
		return Account{}, ErrNoAccount
	}
	return acct, nil
}

// Accounts lists every account linked to discordUserID, sorted by name.
func (r *Registry) Accounts(ctx context.Context, discordUserID string) ([]Account, error) {
	all, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	accts := lo.Values(all[discordUserID].Accounts)
	slices.SortFunc(accts, func(a, b Account) int {
		return cmp.Or(cmp.Compare(a.AccountName, b.AccountName), cmp.Compare(a.PinterestUserID, b.PinterestUserID))
	})
	return accts, nil
}

// SetActiveAccount reports false if pinterestUserID is not linked to
// discordUserID.
func (r *Registry) SetActiveAccount(ctx context.Context, discordUserID, pinterestUserID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadAccounts(ctx)
	if err != nil {
		return false, fmt.Errorf("loading accounts: %w", err)
	}
	linked, ok := all[discordUserID]
	if !ok {
		return false, nil
	}
	if _, ok := linked.Accounts[pinterestUserID]; !ok {
		return false, nil
	}
	linked.ActiveAccount = pinterestUserID
	all[discordUserID] = linked

	if err := store.WriteJSON(ctx, r.store, store.KeyPinterestAuth, all); err != nil {
		return false, fmt.Errorf("saving accounts: %w", err)
	}
	return true, nil
}

// SaveBoards replaces the synced board list for a Pinterest account.
func (r *Registry) SaveBoards(ctx context.Context, pinterestUserID string, boards []Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make(map[string][]Board)
	if err := store.ReadJSON(ctx, r.store, store.KeyBoards, &all); err != nil {
		return fmt.Errorf("loading boards: %w", err)
	}
	if boards == nil {
		boards = []Board{}
	}
	all[pinterestUserID] = boards
	if err := store.WriteJSON(ctx, r.store, store.KeyBoards, all); err != nil {
		return fmt.Errorf("saving boards: %w", err)
	}
	return nil
}

func (r *Registry) Boards(ctx context.Context, pinterestUserID string) ([]Board, error) {
	all := make(map[string][]Board)
	if err := store.ReadJSON(ctx, r.store, store.KeyBoards, &all); err != nil {
		return nil, fmt.Errorf("loading boards: %w", err)
	}
	return all[pinterestUserID], nil
}

// FindBoard looks a board up by name, ignoring case. The error wraps
// ErrBoardNotFound and the returned slice holds the boards that do exist.
func (r *Registry) FindBoard(ctx context.Context, pinterestUserID, name string) (Board, []Board, error) {
	boards, err := r.Boards(ctx, pinterestUserID)
	if err != nil {
		return Board{}, nil, err
	}
	b, ok := lo.Find(boards, func(b Board) bool {
		return strings.EqualFold(b.Name, strings.TrimSpace(name))
	})
	if !ok {
		return Board{}, boards, fmt.Errorf("%w: %s", ErrBoardNotFound, name)
	}
	return b, boards, nil
}
