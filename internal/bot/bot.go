package bot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/jusunglee/mjpin/internal/ratelimit"
	"github.com/jusunglee/mjpin/internal/search"
	"github.com/jusunglee/mjpin/internal/store"
)

const (
	DefaultGatherLimit     = 10
	DefaultLoginAttempts   = 3
	DefaultLoginRetryDelay = time.Second
	DefaultCommandTimeout  = time.Minute

	genericErrorMessage = "There was an error executing this command. Please try again."
)

type Config struct {
	GuildID string
	// ApplicationID owns the slash commands. Defaults to the bot user.
	ApplicationID string
	// GatherLimit caps the message IDs /gather returns.
	GatherLimit int
	// MarkerScan bounds how far back /gather looks for the last /pin reply.
	MarkerScan      int
	LoginAttempts   int
	LoginRetryDelay time.Duration
	CommandTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.GatherLimit <= 0 {
		c.GatherLimit = DefaultGatherLimit
	}
	if c.MarkerScan <= 0 {
		c.MarkerScan = search.DefaultMarkerScan
	}
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = DefaultLoginAttempts
	}
	if c.LoginRetryDelay <= 0 {
		c.LoginRetryDelay = DefaultLoginRetryDelay
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	return c
}

// Deps are the services the commands run against. Models may be nil when the
// configured LLM provider cannot list models.
type Deps struct {
	Store     store.Store
	Limiter   PinLimiter
	Scanner   HistoryScanner
	Pinterest PinterestAPI
	Accounts  AccountRegistry
	Auth      Authorizer
	Generator PromptGenerator
	Prompts   PromptLibrary
	Models    ModelLister
	Throttle  *ratelimit.Throttle
}

type Bot struct {
	log       Logger
	session   DiscordSession
	store     store.Store
	limiter   PinLimiter
	scanner   HistoryScanner
	pinterest PinterestAPI
	accounts  AccountRegistry
	auth      Authorizer
	generator PromptGenerator
	prompts   PromptLibrary
	models    ModelLister
	throttle  *ratelimit.Throttle
	config    Config

	// guards read-modify-write of the model settings document
	settingsMu sync.Mutex

	now      func() time.Time
	shutdown context.CancelCauseFunc
}

// ErrRestartRequested is the cancel cause /restart uses to stop the process.
var ErrRestartRequested = errors.New("restart requested")

func New(log Logger, session DiscordSession, deps Deps, config Config) *Bot {
	throttle := deps.Throttle
	if throttle == nil {
		throttle = ratelimit.NewThrottle(ratelimit.DefaultCommandLimit, ratelimit.DefaultCommandWindow)
	}
	return &Bot{
		log:       log,
		session:   session,
		store:     deps.Store,
		limiter:   deps.Limiter,
		scanner:   deps.Scanner,
		pinterest: deps.Pinterest,
		accounts:  deps.Accounts,
		auth:      deps.Auth,
		generator: deps.Generator,
		prompts:   deps.Prompts,
		models:    deps.Models,
		throttle:  throttle,
		config:    config.withDefaults(),
		now:       time.Now,
		shutdown:  func(error) {},
	}
}

func (b *Bot) Run(ctx context.Context, cancel context.CancelCauseFunc) error {
	b.shutdown = cancel
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleReady)

	if err := b.open(ctx); err != nil {
		return err
	}

	if err := b.registerCommands(ctx); err != nil {
		b.session.Close()
		return fmt.Errorf("registering commands: %w", err)
	}

	b.log.InfoContext(ctx, "bot is running, press Ctrl+C to stop")

	<-ctx.Done()
	b.log.Info("shutdown signal received", "cause", context.Cause(ctx))
	if err := b.session.Close(); err != nil {
		b.log.Warn("closing discord session", "error", err)
	}
	b.log.Info("shut down complete")
	return nil
}

// open connects to the gateway, retrying with a doubling delay.
func (b *Bot) open(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= b.config.LoginAttempts; attempt++ {
		if err = b.session.Open(); err == nil {
			return nil
		}
		b.log.ErrorContext(ctx, "login attempt failed", "attempt", attempt, "error", err)
		if attempt == b.config.LoginAttempts {
			break
		}
		delay := b.config.LoginRetryDelay << attempt
		b.log.InfoContext(ctx, "retrying login", "delay", delay)
		sleepWithContext(ctx, delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("opening Discord connection after %d attempts: %w", b.config.LoginAttempts, err)
}

func (b *Bot) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.CommandTimeout)
	defer cancel()
	b.log.InfoContext(ctx, "connected to Discord", "username", r.User.Username)
	b.completeRestart(ctx)
}

func (b *Bot) registerCommands(ctx context.Context) error {
	appID := cmp.Or(b.config.ApplicationID, b.session.GetUserID())
	guildID := b.config.GuildID
	if guildID != "" {
		b.log.InfoContext(ctx, "registering commands to guild", "guild_id", guildID)
		_, err := b.session.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{})
		if err != nil {
			b.log.WarnContext(ctx, "failed to clear global commands", "error", err)
		} else {
			b.log.InfoContext(ctx, "cleared global commands")
		}
	} else {
		b.log.InfoContext(ctx, "registering commands globally (may take up to 1 hour to propagate)")
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	if err != nil {
		return fmt.Errorf("bulk overwrite commands: %w", err)
	}
	b.log.InfoContext(ctx, "registered commands", "count", len(commands))
	return nil
}

func sleepWithContext(ctx context.Context, dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-timer.C:
		return
	case <-ctx.Done():
		return
	}
}

func permission(p int64) *int64 {
	return &p
}

func messageIDOptions() []*discordgo.ApplicationCommandOption {
	opts := make([]*discordgo.ApplicationCommandOption, 0, maxPinMessages)
	for n := 2; n <= maxPinMessages; n++ {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        fmt.Sprintf("message_id_%d", n),
			Description: fmt.Sprintf("Discord message ID #%d", n),
		})
	}
	return opts
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "pin",
		Description: "Pin images to a Pinterest board from message IDs",
		Options: append([]*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "board",
				Description: "Pinterest board name",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message_id_1",
				Description: "Discord message ID #1",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Destination URL for the pin",
			},
		}, messageIDOptions()...),
	},
	{
		Name:        "gather",
		Description: "Gather message IDs for images matching a keyword after the last /pin command",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "keyword",
				Description: "Keyword to search for (plural and singular forms included)",
				Required:    true,
			},
		},
	},
	{
		Name:        "prompt",
		Description: "Generate a Midjourney prompt",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "input",
				Description: "Describe what you want to generate",
				Required:    true,
			},
		},
	},
	{
		Name:                     "sync",
		Description:              "Sync Pinterest boards for your active account",
		DefaultMemberPermissions: permission(discordgo.PermissionManageGuild),
	},
	{
		Name:        "auth",
		Description: "Link a Pinterest account so the bot can pin on your behalf",
	},
	{
		Name:        "settings",
		Description: "View and switch your linked Pinterest accounts",
	},
	{
		Name:                     "model",
		Description:              "Choose the model used for /prompt in this server",
		DefaultMemberPermissions: permission(discordgo.PermissionManageGuild),
		Contexts:                 &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild},
	},
	{
		Name:                     "editprompt",
		Description:              "Edit the system prompt",
		DefaultMemberPermissions: permission(discordgo.PermissionAdministrator),
	},
	{
		Name:                     "restart",
		Description:              "Restart the bot",
		DefaultMemberPermissions: permission(discordgo.PermissionAdministrator),
	},
}

type handlerResult struct {
	Response   string
	Components []discordgo.MessageComponent
	// Ephemeral only applies to commands that are not deferred.
	Ephemeral bool
	Err       error
	// after runs once the response has been delivered.
	after func(ctx context.Context)
}

type userError struct {
	Err error
}

func (e *userError) Error() string {
	return e.Err.Error()
}

func (e *userError) Unwrap() error {
	return e.Err
}

func newUserError(err error) *userError {
	return &userError{Err: err}
}

// userReply is a handlerResult for a user mistake whose message doubles as
// the error.
func userReply(msg string) handlerResult {
	return handlerResult{Response: msg, Ephemeral: true, Err: newUserError(errors.New(msg))}
}

type command struct {
	run func(ctx context.Context, i *discordgo.InteractionCreate) handlerResult
	// deferred commands acknowledge first and edit the reply when done.
	deferred  bool
	ephemeral bool
}

func (b *Bot) command(name string) (command, bool) {
	switch name {
	case "pin":
		return command{run: b.handlePin, deferred: true}, true
	case "gather":
		return command{run: b.handleGather, deferred: true}, true
	case "prompt":
		return command{run: b.handlePrompt, deferred: true}, true
	case "sync":
		return command{run: b.handleSync, deferred: true, ephemeral: true}, true
	case "auth":
		return command{run: b.handleAuth, ephemeral: true}, true
	case "settings":
		return command{run: b.handleSettings, deferred: true, ephemeral: true}, true
	case "model":
		return command{run: b.handleModel, deferred: true, ephemeral: true}, true
	case "editprompt":
		return command{run: b.handleEditPrompt, ephemeral: true}, true
	case "restart":
		return command{run: b.handleRestart}, true
	}
	return command{}, false
}

func (b *Bot) handleInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(i)
	case discordgo.InteractionModalSubmit:
		b.handleModalSubmit(i)
	}
}

func (b *Bot) handleCommand(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.CommandTimeout)
	defer cancel()
	name := i.ApplicationCommandData().Name

	cmd, ok := b.command(name)
	if !ok {
		b.log.WarnContext(ctx, "unknown command", "command", name)
		return
	}

	if cmd.deferred {
		if err := b.deferResponse(i, cmd.ephemeral); err != nil {
			b.log.ErrorContext(ctx, "failed to defer interaction", "command", name, "error", err)
			return
		}
	}

	result := cmd.run(ctx, i)
	if result.Err != nil && result.Response == "" {
		result.Response = genericErrorMessage
	}

	if cmd.deferred {
		b.editResponse(ctx, i, result.Response, result.Components)
	} else {
		b.respond(ctx, i, result, cmd.ephemeral || result.Ephemeral)
	}

	if result.after != nil {
		result.after(ctx)
	}

	outcome := "ok"
	if result.Err != nil {
		if _, ok := errors.AsType[*userError](result.Err); ok {
			outcome = "user_error"
			b.log.WarnContext(ctx, "user error", "command", name, "error", result.Err, "channel_id", i.ChannelID)
		} else {
			outcome = "error"
			b.log.ErrorContext(ctx, "command failed", "command", name, "error", result.Err, "channel_id", i.ChannelID)
		}
	}
	metrics.CommandsTotal.WithLabelValues(name, outcome).Inc()
}

func (b *Bot) handleComponent(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.CommandTimeout)
	defer cancel()
	data := i.MessageComponentData()

	var err error
	switch data.CustomID {
	case selectAccountID:
		err = b.handleAccountSelect(ctx, i, data.Values)
	case selectModelID:
		err = b.handleModelSelect(ctx, i, data.Values)
	case selectSectionID:
		err = b.handleSectionSelect(ctx, i, data.Values)
	default:
		return
	}
	if err != nil {
		b.log.ErrorContext(ctx, "component failed", "custom_id", data.CustomID, "error", err)
	}
}

func (b *Bot) handleModalSubmit(i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), b.config.CommandTimeout)
	defer cancel()
	data := i.ModalSubmitData()

	prefix, id, ok := strings.Cut(data.CustomID, ":")
	if !ok || prefix != editPromptModalPrefix {
		return
	}
	if err := b.handleSectionSubmit(ctx, i, id, textInputValue(data.Components, sectionInputID)); err != nil {
		b.log.ErrorContext(ctx, "modal submit failed", "custom_id", data.CustomID, "error", err)
	}
}

func (b *Bot) deferResponse(i *discordgo.InteractionCreate, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return b.session.InteractionRespond(i.Interaction, resp)
}

func (b *Bot) respond(ctx context.Context, i *discordgo.InteractionCreate, result handlerResult, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Content:    result.Response,
		Components: result.Components,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.ErrorContext(ctx, "failed to respond to interaction", "error", err)
	}
}

// editResponse replaces the body of a deferred or earlier reply. A nil
// components slice clears any select menu.
func (b *Bot) editResponse(ctx context.Context, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.log.ErrorContext(ctx, "failed to edit interaction response", "error", err)
	}
}

// update rewrites the message a component is attached to.
func (b *Bot) update(i *discordgo.InteractionCreate, content string) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) error {
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func getOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// hasPermission checks the invoking member's resolved permissions.
// Administrators pass every check.
func hasPermission(i *discordgo.InteractionCreate, perm int64) bool {
	if i.Member == nil {
		return false
	}
	p := i.Member.Permissions
	return p&discordgo.PermissionAdministrator != 0 || p&perm == perm
}

func textInputValue(rows []discordgo.MessageComponent, customID string) string {
	for _, row := range rows {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}
