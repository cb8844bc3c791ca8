package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/jusunglee/mjpin/internal/anthropic"
	"github.com/jusunglee/mjpin/internal/bot"
	"github.com/jusunglee/mjpin/internal/envsetup"
	"github.com/jusunglee/mjpin/internal/google"
	"github.com/jusunglee/mjpin/internal/health"
	"github.com/jusunglee/mjpin/internal/llm"
	"github.com/jusunglee/mjpin/internal/logger"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/jusunglee/mjpin/internal/openai"
	"github.com/jusunglee/mjpin/internal/pinterest"
	"github.com/jusunglee/mjpin/internal/prompt"
	"github.com/jusunglee/mjpin/internal/ratelimit"
	"github.com/jusunglee/mjpin/internal/search"
	"github.com/jusunglee/mjpin/internal/store"
	"github.com/jusunglee/mjpin/internal/store/file"
	"github.com/jusunglee/mjpin/internal/store/postgres"
	"github.com/jusunglee/mjpin/internal/store/redis"
	"github.com/jusunglee/mjpin/internal/store/sqlite"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"
)

const envFile = ".env"

func main() {
	if err := mainE(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func mainE() error {
	if envsetup.NeedsSetup(envFile) && os.Getenv("MJPIN_DISCORD_TOKEN") == "" && isatty.IsTerminal(os.Stdin.Fd()) {
		ok, err := envsetup.Run(envFile)
		if err != nil {
			return fmt.Errorf("running env setup: %w", err)
		}
		if !ok {
			return errors.New("env setup cancelled")
		}
	}
	_ = godotenv.Load()

	fs := ff.NewFlagSet("mjpin")
	var (
		discordToken          = fs.StringLong("discord-token", "", "Discord bot token")
		discordGuildID        = fs.StringLong("discord-guild-id", "", "Register commands to this guild only")
		discordClientID       = fs.StringLong("discord-client-id", "", "Discord application ID (defaults to the bot user)")
		pinterestClientID     = fs.StringLong("pinterest-client-id", "", "Pinterest app ID")
		pinterestClientSecret = fs.StringLong("pinterest-client-secret", "", "Pinterest app secret")
		pinterestRedirectURI  = fs.StringLong("pinterest-redirect-uri", "", "OAuth redirect URI registered on the Pinterest app")
		httpPort              = fs.Int64Long("http-port", 8080, "Port for /health, /metrics and the OAuth callback")
		storeKind             = fs.StringEnumLong("store", "Storage backend", "file", "sqlite", "postgres", "redis")
		dataDir               = fs.StringLong("data-dir", "./data", "Directory for JSON documents and prompt files")
		databaseURL           = fs.StringLong("database-url", "", "SQLite path or PostgreSQL connection URL")
		redisURL              = fs.StringLong("redis-url", "", "Redis URL (redis://host:port/db)")
		llmProvider           = fs.StringEnumLong("llm-provider", "LLM provider for /prompt", "openai", "anthropic", "google")
		llmModel              = fs.StringLong("llm-model", "", "Default LLM model (provider default if empty)")
		openaiAPIKey          = fs.StringLong("openai-api-key", "", "OpenAI API key")
		anthropicAPIKey       = fs.StringLong("anthropic-api-key", "", "Anthropic API key")
		googleAPIKey          = fs.StringLong("google-api-key", "", "Google API key")
		pinLimit              = fs.Int64Long("pin-limit", 100, "Pins allowed per Pinterest account per window")
		pinWindow             = fs.DurationLong("pin-window", 12*time.Hour, "Pin quota window")
		scanPageDelay         = fs.DurationLong("scan-page-delay", search.DefaultPageDelay, "Delay between history page requests")
		logFormat             = fs.StringEnumLong("log-format", "Log output format", "pretty", "json")
		logLevel              = fs.StringLong("log-level", "info", "Log level (debug, info, warn, error)")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("MJPIN")); err != nil {
		fmt.Printf("%s\n", ffhelp.Flags(fs))
		return fmt.Errorf("parsing flags: %w", err)
	}

	if *discordToken == "" {
		return errors.New("discord-token is required")
	}

	log := logger.New(os.Stdout, *logFormat, *logLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	kv, err := openStore(ctx, *storeKind, *dataDir, *databaseURL, *redisURL)
	if err != nil {
		return err
	}
	defer kv.Close()
	log.InfoContext(ctx, "opened store", "backend", *storeKind)

	if pg, ok := kv.(*postgres.Store); ok {
		go exportPoolStats(ctx, pg)
	}

	llmClient, models, err := newLLMClient(ctx, *llmProvider, *llmModel, *openaiAPIKey, *anthropicAPIKey, *googleAPIKey)
	if err != nil {
		return err
	}

	library, err := prompt.NewLibrary(*dataDir)
	if err != nil {
		return fmt.Errorf("loading prompt files: %w", err)
	}
	log.InfoContext(ctx, "loaded prompt sections", "count", len(library.Sections()), "dir", library.Dir())

	dg, err := discordgo.New("Bot " + *discordToken)
	if err != nil {
		return fmt.Errorf("creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	pinClient := pinterest.NewClient()
	registry := pinterest.NewRegistry(kv)
	oauth := pinterest.NewOAuth(pinterest.OAuthConfig{
		ClientID:     *pinterestClientID,
		ClientSecret: *pinterestClientSecret,
		RedirectURI:  *pinterestRedirectURI,
	}, kv)
	if !oauth.Configured() {
		log.WarnContext(ctx, "pinterest oauth is not configured, /auth is disabled")
	}

	b := bot.New(bot.NewLogger(log), bot.NewDiscordSession(dg), bot.Deps{
		Store:     kv,
		Limiter:   ratelimit.NewPinLimiter(kv, int(*pinLimit), *pinWindow),
		Scanner:   search.NewScanner(dg, log.With("component", "search"), *scanPageDelay),
		Pinterest: pinClient,
		Accounts:  registry,
		Auth:      oauth,
		Generator: prompt.NewGenerator(library, llmClient),
		Prompts:   library,
		Models:    models,
	}, bot.Config{
		GuildID:       *discordGuildID,
		ApplicationID: *discordClientID,
	})

	srv := health.New(int(*httpPort), log)
	srv.Handle("GET /pinterest/callback", pinterest.NewCallbackHandler(oauth, pinClient, registry, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx, cancel)
	})
	g.Go(func() error {
		log.InfoContext(ctx, "starting http server", "port", *httpPort)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if errors.Is(context.Cause(ctx), bot.ErrRestartRequested) {
		log.Info("exiting for restart")
	}
	return nil
}

func openStore(ctx context.Context, kind, dataDir, databaseURL, redisURL string) (store.Store, error) {
	switch kind {
	case "sqlite":
		path := databaseURL
		if path == "" {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data dir: %w", err)
			}
			path = filepath.Join(dataDir, "mjpin.db")
		}
		s, err := sqlite.New(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return s, nil
	case "postgres":
		if databaseURL == "" {
			return nil, errors.New("database-url is required for the postgres store")
		}
		s, err := postgres.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating PostgreSQL store: %w", err)
		}
		return s, nil
	case "redis":
		if redisURL == "" {
			return nil, errors.New("redis-url is required for the redis store")
		}
		s, err := redis.New(ctx, redisURL)
		if err != nil {
			return nil, fmt.Errorf("creating Redis store: %w", err)
		}
		return s, nil
	default:
		s, err := file.New(dataDir)
		if err != nil {
			return nil, fmt.Errorf("creating file store: %w", err)
		}
		return s, nil
	}
}

// newLLMClient returns the prompt generation client and, for OpenAI only, the
// model catalog behind /model.
func newLLMClient(ctx context.Context, provider, model, openaiKey, anthropicKey, googleKey string) (llm.Client, bot.ModelLister, error) {
	switch provider {
	case "anthropic":
		if anthropicKey == "" {
			return nil, nil, errors.New("anthropic-api-key is required when using anthropic provider")
		}
		return llm.Instrument(provider, anthropic.NewClient(anthropicKey, anthropic.Model(model))), nil, nil
	case "google":
		if googleKey == "" {
			return nil, nil, errors.New("google-api-key is required when using google provider")
		}
		c, err := google.NewClient(ctx, googleKey, google.Model(model))
		if err != nil {
			return nil, nil, fmt.Errorf("creating Google client: %w", err)
		}
		return llm.Instrument(provider, c), nil, nil
	default:
		if openaiKey == "" {
			return nil, nil, errors.New("openai-api-key is required when using openai provider")
		}
		c := openai.NewClient(openaiKey, model)
		return llm.Instrument(provider, c), c, nil
	}
}

// Periodically export pgxpool stats as Prometheus gauges
func exportPoolStats(ctx context.Context, pg *postgres.Store) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s := pg.PoolStats()
			metrics.DBPoolTotalConns.Set(float64(s.TotalConns()))
			metrics.DBPoolIdleConns.Set(float64(s.IdleConns()))
			metrics.DBPoolAcquiredConns.Set(float64(s.AcquiredConns()))
			metrics.DBPoolMaxConns.Set(float64(s.MaxConns()))
		case <-ctx.Done():
			return
		}
	}
}
