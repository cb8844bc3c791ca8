// Package search finds image messages in a channel's history: a backward
// walk to the last successful /pin reply, a forward walk after it, and the
// keyword filter applied to what was found.
package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jusunglee/mjpin/internal/metrics"
	"github.com/samber/lo"
)

const (
	// PageSize is Discord's ceiling on messages per history request.
	PageSize = 100

	DefaultMarkerScan = 500
	DefaultForwardMax = 1000
	DefaultPageDelay  = 100 * time.Millisecond
)

// History is the subset of *discordgo.Session the scanner pages through.
type History interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Predicate selects the marker message.
type Predicate func(*discordgo.Message) bool

type Scanner struct {
	history   History
	log       *slog.Logger
	pageDelay time.Duration
}

func NewScanner(history History, log *slog.Logger, pageDelay time.Duration) *Scanner {
	if pageDelay < 0 {
		pageDelay = 0
	}
	return &Scanner{history: history, log: log, pageDelay: pageDelay}
}

// PinSuccessMarker matches replies the bot itself posted for a /pin
// interaction that pinned at least one image.
func PinSuccessMarker(botUserID string) Predicate {
	return func(m *discordgo.Message) bool {
		if m == nil || !strings.Contains(m.Content, "Pinned successfully") {
			return false
		}
		if botUserID != "" && (m.Author == nil || m.Author.ID != botUserID) {
			return false
		}
		// InteractionMetadata has no command name, so the deprecated field it is.
		if m.Interaction != nil {
			return m.Interaction.Name == "pin"
		}
		return false
	}
}

func (s *Scanner) fetch(ctx context.Context, channelID string, limit int, beforeID, afterID string) ([]*discordgo.Message, error) {
	page, err := s.history.ChannelMessages(channelID, limit, beforeID, afterID, "", discordgo.WithContext(ctx))
	if err != nil {
		metrics.HistoryScanErrors.Inc()
		return nil, err
	}
	metrics.HistoryPagesFetched.Inc()
	return page, nil
}

// pause waits between pages. It returns false if ctx ended first.
func (s *Scanner) pause(ctx context.Context) bool {
	if s.pageDelay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.pageDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// FindMarker walks backward from the newest message and returns the first
// message matching pred. It gives up after maxMessages, at the start of the
// channel, or on a transport error, returning nil in every case.
func (s *Scanner) FindMarker(ctx context.Context, channelID string, pred Predicate, maxMessages int) *discordgo.Message {
	if maxMessages <= 0 {
		maxMessages = DefaultMarkerScan
	}

	before := ""
	examined := 0
	for examined < maxMessages {
		page, err := s.fetch(ctx, channelID, min(PageSize, maxMessages-examined), before, "")
		if err != nil {
			s.log.ErrorContext(ctx, "finding marker message", "channel_id", channelID, "examined", examined, "error", err)
			return nil
		}
		if len(page) == 0 {
			break
		}

		// Discord returns newest first.
		for _, m := range page {
			if pred(m) {
				s.log.DebugContext(ctx, "found marker message", "channel_id", channelID, "message_id", m.ID, "examined", examined)
				return m
			}
		}

		before = page[len(page)-1].ID
		examined += len(page)
		if !s.pause(ctx) {
			break
		}
	}
	return nil
}

// ScanAfter collects up to maxMessages messages posted strictly after
// afterID, oldest first. A transport error or cancelled ctx ends the walk and
// whatever was collected is returned.
func (s *Scanner) ScanAfter(ctx context.Context, channelID, afterID string, maxMessages int) []*discordgo.Message {
	if maxMessages <= 0 {
		maxMessages = DefaultForwardMax
	}

	var out []*discordgo.Message
	cursor := afterID
	for len(out) < maxMessages {
		page, err := s.fetch(ctx, channelID, min(PageSize, maxMessages-len(out)), "", cursor)
		if err != nil {
			s.log.ErrorContext(ctx, "scanning messages", "channel_id", channelID, "after", cursor, "collected", len(out), "error", err)
			return out
		}
		if len(page) == 0 {
			break
		}

		page = slices.Clone(page)
		slices.SortFunc(page, func(a, b *discordgo.Message) int {
			return compareSnowflakes(a.ID, b.ID)
		})
		page = lo.Filter(page, func(m *discordgo.Message, _ int) bool {
			return compareSnowflakes(m.ID, cursor) > 0
		})
		if len(page) == 0 {
			break
		}
		if room := maxMessages - len(out); len(page) > room {
			page = page[:room]
		}

		out = append(out, page...)
		cursor = page[len(page)-1].ID
		if !s.pause(ctx) {
			break
		}
	}
	return out
}

// ExtractMatches returns the IDs of up to limit image messages mentioning
// keyword. With a marker it scans forward from it in chronological order.
// Without one it looks only at the most recent page, newest first.
func (s *Scanner) ExtractMatches(ctx context.Context, channelID, keyword string, marker *discordgo.Message, limit int) []string {
	if limit <= 0 {
		return nil
	}

	var candidates []*discordgo.Message
	if marker != nil {
		candidates = s.ScanAfter(ctx, channelID, marker.ID, DefaultForwardMax)
	} else {
		page, err := s.fetch(ctx, channelID, PageSize, "", "")
		if err != nil {
			s.log.ErrorContext(ctx, "fetching recent messages", "channel_id", channelID, "error", err)
			return nil
		}
		candidates = page
	}

	variants := Variants(keyword)
	ids := make([]string, 0, min(limit, len(candidates)))
	for _, m := range candidates {
		if len(ids) >= limit {
			break
		}
		if HasImage(m) && MatchesKeywords(m, variants) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// compareSnowflakes orders decimal snowflake IDs numerically without parsing.
func compareSnowflakes(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
