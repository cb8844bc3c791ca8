// envsetup provides a lightweight .env configuration wizard.
// It runs automatically on first bot startup when no .env file exists,
// collecting Discord, Pinterest, and LLM credentials.
package envsetup

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type step int

const (
	stepWelcome step = iota
	stepFields
	stepConfirm
	stepDone
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

var providers = []string{"openai", "anthropic", "google"}

// field is one prompt of the wizard. key is filled in later for the LLM API
// key because it depends on the chosen provider.
type field struct {
	key      string
	title    string
	help     []string
	link     string
	fallback string
	required bool
	secret   bool
	validate func(string) error
}

func fields() []field {
	return []field{
		{
			key:   "MJPIN_DISCORD_TOKEN",
			title: "Discord Bot Token",
			link:  "https://discord.com/developers/applications",
			help: []string{
				"Create a new application (or select existing)",
				"Go to the Bot section and click 'Reset Token'",
				"Enable 'Message Content Intent' under Privileged Gateway Intents",
			},
			required: true,
			secret:   true,
		},
		{
			key:   "MJPIN_DISCORD_GUILD_ID",
			title: "Discord Server ID (optional)",
			help: []string{
				"Registers commands to one server so they show up immediately",
				"Leave empty to register globally",
			},
		},
		{
			key:   "MJPIN_PINTEREST_CLIENT_ID",
			title: "Pinterest App ID (optional)",
			link:  "https://developers.pinterest.com/apps/",
			help:  []string{"Needed for /auth. Leave empty to set up later"},
		},
		{
			key:    "MJPIN_PINTEREST_CLIENT_SECRET",
			title:  "Pinterest App Secret (optional)",
			secret: true,
		},
		{
			key:      "MJPIN_PINTEREST_REDIRECT_URI",
			title:    "Pinterest Redirect URI",
			help:     []string{"Must match a redirect URI registered on the Pinterest app"},
			fallback: "http://localhost:8080/pinterest/callback",
		},
		{
			key:      "MJPIN_LLM_PROVIDER",
			title:    "LLM Provider (openai, anthropic, google)",
			fallback: "openai",
			validate: func(v string) error {
				if !slices.Contains(providers, v) {
					return fmt.Errorf("choose one of %s", strings.Join(providers, ", "))
				}
				return nil
			},
		},
		{
			title:    "LLM API Key",
			required: true,
			secret:   true,
		},
	}
}

// apiKeyField names the key variable and signup link for provider.
func apiKeyField(provider string) (key, link string) {
	switch provider {
	case "anthropic":
		return "MJPIN_ANTHROPIC_API_KEY", "https://console.anthropic.com"
	case "google":
		return "MJPIN_GOOGLE_API_KEY", "https://aistudio.google.com/apikey"
	default:
		return "MJPIN_OPENAI_API_KEY", "https://platform.openai.com/api-keys"
	}
}

type model struct {
	path      string
	step      step
	fields    []field
	current   int
	values    map[string]string
	textInput textinput.Model
	err       error
	width     int
}

func New(path string) model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60

	return model{
		path:      path,
		step:      stepWelcome,
		fields:    fields(),
		values:    make(map[string]string),
		textInput: ti,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleEnter()
		}
	}

	if m.step == stepFields || m.step == stepConfirm {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	m.err = nil
	input := strings.TrimSpace(m.textInput.Value())

	switch m.step {
	case stepWelcome:
		m.step = stepFields
		m.current = 0
		m = m.prepareField()

	case stepFields:
		f := m.fields[m.current]
		if input == "" {
			input = f.fallback
		}
		if input == "" && f.required {
			m.err = fmt.Errorf("%s is required", f.title)
			return m, nil
		}
		if f.validate != nil {
			input = strings.ToLower(input)
			if err := f.validate(input); err != nil {
				m.err = err
				return m, nil
			}
		}
		m.values[f.key] = input

		m.current++
		if m.current == len(m.fields) {
			m.step = stepConfirm
			m.textInput.Reset()
			m.textInput.EchoMode = textinput.EchoNormal
			m.textInput.Placeholder = "Y"
			return m, nil
		}
		m = m.prepareField()

	case stepConfirm:
		switch strings.ToLower(input) {
		case "", "y", "yes":
			if err := m.writeEnvFile(); err != nil {
				m.err = err
				return m, nil
			}
			m.step = stepDone
			return m, tea.Quit
		case "n", "no":
			return New(m.path), nil
		}
		m.err = fmt.Errorf("please answer y or n")
	}

	return m, nil
}

// prepareField resets the input for the field at m.current, resolving the API
// key field from the chosen provider.
func (m model) prepareField() model {
	f := &m.fields[m.current]
	if f.key == "" {
		f.key, f.link = apiKeyField(m.values["MJPIN_LLM_PROVIDER"])
	}

	m.textInput.Reset()
	m.textInput.Placeholder = f.fallback
	m.textInput.EchoMode = textinput.EchoNormal
	if f.secret {
		m.textInput.EchoMode = textinput.EchoPassword
	}
	return m
}

func (m model) writeEnvFile() error {
	return os.WriteFile(m.path, []byte(envFileContent(m.fields, m.values)), 0o600)
}

// envFileContent renders one KEY=value line per answered field in wizard
// order, followed by the storage defaults.
func envFileContent(fs []field, values map[string]string) string {
	var s strings.Builder
	for _, f := range fs {
		if v := values[f.key]; v != "" {
			fmt.Fprintf(&s, "%s=%s\n", f.key, v)
		}
	}
	s.WriteString("MJPIN_STORE=file\n")
	s.WriteString("MJPIN_DATA_DIR=./data\n")
	return s.String()
}

func (m model) View() string {
	var s strings.Builder

	switch m.step {
	case stepWelcome:
		s.WriteString(titleStyle.Render("mjpin - Env Setup"))
		s.WriteString("\n\n")
		s.WriteString("This wizard will help you configure the bot.\n")
		s.WriteString("You'll need:\n\n")
		s.WriteString("  - A Discord bot token\n")
		s.WriteString("  - A Pinterest app (optional, for /auth and /pin)\n")
		s.WriteString("  - An LLM API key (OpenAI, Anthropic or Google)\n")
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("Press Enter to continue, Ctrl+C to exit"))

	case stepFields:
		f := m.fields[m.current]
		s.WriteString(titleStyle.Render(fmt.Sprintf("Step %d of %d: %s", m.current+1, len(m.fields), f.title)))
		s.WriteString("\n\n")
		if f.link != "" {
			s.WriteString("  Go to " + linkStyle.Render(f.link) + "\n")
		}
		for _, line := range f.help {
			s.WriteString("  " + line + "\n")
		}
		s.WriteString("\n")
		s.WriteString(labelStyle.Render(f.key + ":"))
		s.WriteString("\n")
		s.WriteString(m.textInput.View())

	case stepConfirm:
		s.WriteString(titleStyle.Render("Configuration Complete"))
		s.WriteString("\n\n")
		for _, f := range m.fields {
			v := m.values[f.key]
			if v == "" {
				continue
			}
			if f.secret {
				v = maskToken(v)
			}
			s.WriteString(fmt.Sprintf("  %-32s %s\n", f.key, successStyle.Render(v)))
		}
		s.WriteString("\n")
		s.WriteString(labelStyle.Render(fmt.Sprintf("Save this configuration to %s? [Y/n]:", m.path)))
		s.WriteString("\n")
		s.WriteString(m.textInput.View())

	case stepDone:
		s.WriteString(successStyle.Render("Saved " + m.path))
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}
	s.WriteString("\n")
	return s.String()
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// Run starts the setup wizard and returns true if the env file was written.
func Run(path string) (bool, error) {
	p := tea.NewProgram(New(path))
	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}

	m := finalModel.(model)
	return m.step == stepDone, nil
}

// NeedsSetup reports whether the env file at path is missing.
func NeedsSetup(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
