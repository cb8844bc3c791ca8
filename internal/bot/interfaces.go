package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/pinterest"
	"github.com/jusunglee/mjpin/internal/prompt"
	"github.com/jusunglee/mjpin/internal/search"
)

// Logger defines the logging interface used by Bot
type Logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	Info(msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	Warn(msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// DiscordSession defines the Discord session interface used by Bot
type DiscordSession interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponse(interaction *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	// GetUserID returns the bot's user ID
	GetUserID() string
}

// PinLimiter is the per-account sliding window guarding Pinterest posts.
type PinLimiter interface {
	Limit() int
	Window() time.Duration
	RecentCount(ctx context.Context, accountID string, now time.Time) (int, error)
	Record(ctx context.Context, accountID string, now time.Time) error
}

// HistoryScanner finds the last /pin reply and the image messages after it.
type HistoryScanner interface {
	FindMarker(ctx context.Context, channelID string, pred search.Predicate, maxMessages int) *discordgo.Message
	ExtractMatches(ctx context.Context, channelID, keyword string, marker *discordgo.Message, limit int) []string
}

// PinterestAPI is the subset of the Pinterest client the commands call.
type PinterestAPI interface {
	CreatePin(ctx context.Context, token string, req pinterest.PinRequest) (pinterest.Pin, error)
	UserAccount(ctx context.Context, token string) (pinterest.UserAccount, error)
	ListBoards(ctx context.Context, token string) ([]pinterest.Board, error)
}

// AccountRegistry holds linked Pinterest accounts and their synced boards.
type AccountRegistry interface {
	ActiveAccount(ctx context.Context, discordUserID string) (pinterest.Account, error)
	Accounts(ctx context.Context, discordUserID string) ([]pinterest.Account, error)
	SetActiveAccount(ctx context.Context, discordUserID, pinterestUserID string) (bool, error)
	SaveBoards(ctx context.Context, pinterestUserID string, boards []pinterest.Board) error
	FindBoard(ctx context.Context, pinterestUserID, name string) (pinterest.Board, []pinterest.Board, error)
}

// Authorizer mints Pinterest consent links.
type Authorizer interface {
	Configured() bool
	AuthURL(ctx context.Context, discordUserID string) (string, error)
}

type PromptGenerator interface {
	Generate(ctx context.Context, model, input string) (string, error)
}

// PromptLibrary is the editable set of system prompt sections.
type PromptLibrary interface {
	Sections() []prompt.Section
	Section(id string) (prompt.Section, bool)
	UpdateSection(id, content string) error
}

// ModelLister returns the model IDs the LLM provider offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// slogAdapter wraps *slog.Logger to return our Logger interface from With()
type slogAdapter struct {
	*slog.Logger
}

func (l *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{Logger: l.Logger.With(args...)}
}

// NewLogger wraps a *slog.Logger to implement the Logger interface
func NewLogger(log *slog.Logger) Logger {
	return &slogAdapter{Logger: log}
}

// discordSessionAdapter wraps *discordgo.Session to implement DiscordSession
type discordSessionAdapter struct {
	*discordgo.Session
}

func (s *discordSessionAdapter) GetUserID() string {
	if s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

// NewDiscordSession wraps a *discordgo.Session to implement the DiscordSession interface
func NewDiscordSession(session *discordgo.Session) DiscordSession {
	return &discordSessionAdapter{Session: session}
}
