// Package prompt owns the system prompt used for /prompt. The prompt is
// assembled from the *.txt section files in a directory and can be reloaded
// after an admin edits a section.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultSystemPrompt = "You are a helpful AI that generates Midjourney prompts."

	// MaxSectionLength is the longest text a Discord modal input accepts.
	MaxSectionLength = 4000

	sectionExt = ".txt"
)

var (
	ErrUnknownSection = errors.New("unknown prompt section")
	ErrSectionTooLong = fmt.Errorf("prompt section exceeds %d characters", MaxSectionLength)
)

type Section struct {
	ID      string
	Label   string
	Content string
}

type Library struct {
	dir string

	mu       sync.RWMutex
	sections []Section
	system   string
}

// NewLibrary loads every section in dir. A missing directory is treated as
// empty.
func NewLibrary(dir string) (*Library, error) {
	l := &Library{dir: dir}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Library) Dir() string {
	return l.dir
}

// Reload rereads the section files and rebuilds the system prompt.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading prompt dir: %w", err)
	}

	var sections []Section
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != sectionExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), sectionExt)
		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading prompt section %s: %w", id, err)
		}
		sections = append(sections, Section{ID: id, Label: Label(id), Content: string(data)})
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if text := strings.TrimSpace(s.Content); text != "" {
			parts = append(parts, text)
		}
	}
	system := strings.Join(parts, "\n\n")
	if system == "" {
		system = DefaultSystemPrompt
	}

	l.mu.Lock()
	l.sections = sections
	l.system = system
	l.mu.Unlock()
	return nil
}

func (l *Library) SystemPrompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.system
}

// Sections lists the loaded sections in file name order.
func (l *Library) Sections() []Section {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Section, len(l.sections))
	copy(out, l.sections)
	return out
}

func (l *Library) Section(id string) (Section, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// UpdateSection overwrites an existing section file and reloads.
func (l *Library) UpdateSection(id, content string) error {
	s, ok := l.Section(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSection, id)
	}
	if utf8.RuneCountInString(content) > MaxSectionLength {
		return ErrSectionTooLong
	}
	if err := os.WriteFile(filepath.Join(l.dir, s.ID+sectionExt), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing prompt section %s: %w", id, err)
	}
	return l.Reload()
}

// Label turns a section file stem into a display name: "style_guide" becomes
// "Style Guide".
func Label(id string) string {
	runes := []rune(strings.ReplaceAll(id, "_", " "))
	for i, r := range runes {
		if i == 0 || !isWordRune(runes[i-1]) {
			runes[i] = unicode.ToUpper(r)
		}
	}
	return string(runes)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
