package tui

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/sheets"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// SetupValues backs the first-run setup form.
type SetupValues struct {
	GoogleURL    string
	MicrosoftURL string
	Theme        string
	Granularity  string
}

func sourceURL(cfg config.Config, name string) string {
	for _, s := range cfg.Sources {
		if strings.EqualFold(s.Name, name) {
			return s.URL
		}
	}
	return ""
}

// SetupValuesFrom seeds the setup form from an existing config.
func SetupValuesFrom(cfg config.Config) *SetupValues {
	return &SetupValues{
		GoogleURL:    sourceURL(cfg, "google"),
		MicrosoftURL: sourceURL(cfg, "microsoft"),
		Theme:        cfg.Appearance.Theme,
		Granularity:  cfg.General.DefaultGranularity,
	}
}

// ValidateSourceURL accepts a blank value, an http(s) or file:// URL, or
// the path of an existing local file.
func ValidateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		case "file":
			raw = strings.TrimPrefix(raw, "file://")
		}
	}
	if _, err := os.Stat(raw); err != nil {
		return fmt.Errorf("not a URL or readable file: %s", raw)
	}
	return nil
}

// NewSetupForm builds the setup form. vals seeds the fields and receives
// the answers.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themes := make([]huh.Option[string], 0, len(theme.Names()))
	for _, name := range theme.Names() {
		themes = append(themes, huh.NewOption(name, name))
	}
	grans := make([]huh.Option[string], 0, len(model.Granularities))
	for _, g := range model.Granularities {
		grans = append(grans, huh.NewOption(g.Label(), string(g)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to adpulse").
				Description("Paste the published CSV links of your ad reports.\n"+
					"Spreadsheet edit links are converted automatically."),
			huh.NewInput().
				Title("Google Ads feed").
				Placeholder("https://docs.google.com/spreadsheets/d/.../pub?output=csv").
				Value(&vals.GoogleURL).
				Validate(ValidateSourceURL),
			huh.NewInput().
				Title("Microsoft Ads feed").
				Placeholder("https://... or a local .csv path").
				Value(&vals.MicrosoftURL).
				Validate(func(s string) error {
					if err := ValidateSourceURL(s); err != nil {
						return err
					}
					if strings.TrimSpace(s) == "" && strings.TrimSpace(vals.GoogleURL) == "" {
						return errors.New("configure at least one feed")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default granularity").
				Options(grans...).
				Value(&vals.Granularity),
			huh.NewSelect[string]().
				Title("Theme").
				Options(themes...).
				Value(&vals.Theme),
		),
	).WithTheme(formTheme()).WithShowHelp(true)
}

// ApplySetup copies the setup answers into cfg.
func ApplySetup(cfg *config.Config, vals *SetupValues) {
	cfg.SetSourceURL("google", "google", sheets.NormalizeURL(vals.GoogleURL))
	cfg.SetSourceURL("microsoft", "microsoft", sheets.NormalizeURL(vals.MicrosoftURL))
	if vals.Theme != "" {
		cfg.Appearance.Theme = vals.Theme
	}
	if vals.Granularity != "" {
		cfg.General.DefaultGranularity = vals.Granularity
	}
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		// Skip setup and load whatever is configured.
		a.setupForm = nil
		a.setupVals = nil
		return a, a.startLoad()
	}

	m, cmd := a.setupForm.Update(msg)
	if f, ok := m.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		vals := a.setupVals
		if err := a.sess.update(func(c *config.Config) { ApplySetup(c, vals) }); err != nil {
			a.lastErr = "could not save config: " + err.Error()
		}
		cfg := a.sess.config()
		theme.SetActive(cfg.Appearance.Theme)
		if g, err := model.ParseGranularity(cfg.General.DefaultGranularity); err == nil {
			a.query.Granularity = g
		}
		a.setupForm = nil
		a.setupVals = nil
		return a, a.startLoad()
	case huh.StateAborted:
		a.setupForm = nil
		a.setupVals = nil
		return a, a.startLoad()
	}
	return a, cmd
}

func (a App) startLoad() tea.Cmd {
	return tea.Batch(loadDataCmd(a.sess), a.spinner.Tick, tickCmd())
}

// formTheme styles huh forms with the active palette.
func formTheme() *huh.Theme {
	t := theme.Active
	ht := huh.ThemeBase()

	ht.Focused.Base = ht.Focused.Base.BorderForeground(t.BorderAccent)
	ht.Focused.Title = ht.Focused.Title.Foreground(t.AccentBright).Bold(true)
	ht.Focused.NoteTitle = ht.Focused.NoteTitle.Foreground(t.AccentBright).Bold(true)
	ht.Focused.Description = ht.Focused.Description.Foreground(t.TextMuted)
	ht.Focused.ErrorIndicator = ht.Focused.ErrorIndicator.Foreground(t.Red)
	ht.Focused.ErrorMessage = ht.Focused.ErrorMessage.Foreground(t.Red)
	ht.Focused.SelectSelector = ht.Focused.SelectSelector.Foreground(t.Accent)
	ht.Focused.MultiSelectSelector = ht.Focused.MultiSelectSelector.Foreground(t.Accent)
	ht.Focused.Option = ht.Focused.Option.Foreground(t.TextPrimary)
	ht.Focused.SelectedOption = ht.Focused.SelectedOption.Foreground(t.Green)
	ht.Focused.SelectedPrefix = lipgloss.NewStyle().Foreground(t.Green).SetString("[•] ")
	ht.Focused.UnselectedPrefix = lipgloss.NewStyle().Foreground(t.TextDim).SetString("[ ] ")
	ht.Focused.UnselectedOption = ht.Focused.UnselectedOption.Foreground(t.TextPrimary)
	ht.Focused.TextInput.Cursor = ht.Focused.TextInput.Cursor.Foreground(t.Accent)
	ht.Focused.TextInput.Placeholder = ht.Focused.TextInput.Placeholder.Foreground(t.TextDim)
	ht.Focused.TextInput.Prompt = ht.Focused.TextInput.Prompt.Foreground(t.Accent)
	ht.Focused.FocusedButton = ht.Focused.FocusedButton.Foreground(t.Background).Background(t.Accent)

	ht.Blurred = ht.Focused
	ht.Blurred.Base = ht.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())
	return ht
}
