package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/export"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/source"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

const dateLayout = "2006-01-02"

// rangePreset is a date range relative to today, cycled with p/P.
type rangePreset struct {
	label string
	span  func(today time.Time) model.DateRange
}

var rangePresets = []rangePreset{
	{"All time", func(time.Time) model.DateRange { return model.DateRange{} }},
	{"Last 30 days", func(today time.Time) model.DateRange {
		return model.DateRange{Start: today.AddDate(0, 0, -29), End: today}
	}},
	{"Last 90 days", func(today time.Time) model.DateRange {
		return model.DateRange{Start: today.AddDate(0, 0, -89), End: today}
	}},
	{"Year to date", func(today time.Time) model.DateRange {
		return model.DateRange{Start: time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), End: today}
	}},
	{"Last 12 months", func(today time.Time) model.DateRange {
		return model.DateRange{Start: today.AddDate(-1, 0, 1), End: today}
	}},
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameRange(a, b model.DateRange) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// matchPreset returns the preset equal to the current range, or -1.
func (a App) matchPreset() int {
	today := truncateDay(a.now())
	for i, p := range rangePresets {
		if sameRange(p.span(today), a.query.Range) {
			return i
		}
	}
	return -1
}

func (p rangePreset) spanAt(now time.Time) model.DateRange {
	return p.span(truncateDay(now))
}

func (a App) rangeLabel() string {
	if a.preset >= 0 {
		return rangePresets[a.preset].label
	}
	from, to := "…", "…"
	if !a.query.Range.Start.IsZero() {
		from = cli.FormatDate(a.query.Range.Start)
	}
	if !a.query.Range.End.IsZero() {
		to = cli.FormatDate(a.query.Range.End)
	}
	return from + " – " + to
}

// filterCount is the number of restricted dimensions.
func filterCount(f model.Filters) int {
	n := 0
	for _, d := range model.Dimensions {
		if len(f.For(d)) > 0 {
			n++
		}
	}
	return n
}

// filterValues backs the filter form fields.
type filterValues struct {
	Accounts      []string
	Languages     []string
	CampaignTypes []string
	Domains       []string
	From          string
	To            string
}

func (v *filterValues) target(d model.Dimension) *[]string {
	switch d {
	case model.DimLanguage:
		return &v.Languages
	case model.DimCampaignType:
		return &v.CampaignTypes
	case model.DimDomain:
		return &v.Domains
	default:
		return &v.Accounts
	}
}

func formatDateInput(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// parseDateInput parses an optional date field. Blank means open.
func parseDateInput(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, ok := source.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%q is not a valid date", s)
	}
	return t, nil
}

func (v *filterValues) validateTo(s string) error {
	to, err := parseDateInput(s)
	if err != nil {
		return err
	}
	from, err := parseDateInput(v.From)
	if err != nil || from.IsZero() || to.IsZero() {
		return nil
	}
	if to.Before(from) {
		return errors.New("end date is before start date")
	}
	return nil
}

func (v *filterValues) apply(q *model.Query) error {
	from, err := parseDateInput(v.From)
	if err != nil {
		return err
	}
	to, err := parseDateInput(v.To)
	if err != nil {
		return err
	}
	q.Filters = model.Filters{
		Accounts:      v.Accounts,
		Languages:     v.Languages,
		CampaignTypes: v.CampaignTypes,
		Domains:       v.Domains,
	}
	q.Range = model.DateRange{Start: from, End: to}
	return nil
}

// newFilterForm builds a multi-select per dimension that has values, plus
// the date range inputs.
func newFilterForm(opts model.Filters, vals *filterValues) *huh.Form {
	var groups []*huh.Group
	for _, d := range model.Dimensions {
		choices := opts.For(d)
		if len(choices) == 0 {
			continue
		}
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(d.Label()).
				Description("space to toggle, none selected means all").
				Options(huh.NewOptions(choices...)...).
				Value(vals.target(d)).
				Height(min(len(choices), 8)+2),
		))
	}
	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("From").
			Placeholder("YYYY-MM-DD, blank for open").
			Value(&vals.From).
			Validate(func(s string) error {
				_, err := parseDateInput(s)
				return err
			}),
		huh.NewInput().
			Title("To").
			Placeholder("YYYY-MM-DD, blank for open").
			Value(&vals.To).
			Validate(vals.validateTo),
	).Title("Date range"))

	return huh.NewForm(groups...).
		WithTheme(formTheme()).
		WithShowHelp(true)
}

func (a App) openFilterForm() (tea.Model, tea.Cmd) {
	q := a.query
	a.filterVals = &filterValues{
		Accounts:      q.Filters.Accounts,
		Languages:     q.Filters.Languages,
		CampaignTypes: q.Filters.CampaignTypes,
		Domains:       q.Filters.Domains,
		From:          formatDateInput(q.Range.Start),
		To:            formatDateInput(q.Range.End),
	}
	a.filterForm = newFilterForm(a.options, a.filterVals).WithWidth(a.formWidth())
	if a.height > 0 {
		a.filterForm = a.filterForm.WithHeight(a.height - 4)
	}
	return a, a.filterForm.Init()
}

func (a App) updateFilterForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		a.filterForm = nil
		a.filterVals = nil
		return a, nil
	}

	m, cmd := a.filterForm.Update(msg)
	if f, ok := m.(*huh.Form); ok {
		a.filterForm = f
	}

	switch a.filterForm.State {
	case huh.StateCompleted:
		if err := a.filterVals.apply(&a.query); err != nil {
			a.setMessage(err.Error())
		} else {
			a.preset = a.matchPreset()
			a.recompute()
			a.setMessage("filters applied")
		}
		a.filterForm = nil
		a.filterVals = nil
		return a, nil
	case huh.StateAborted:
		a.filterForm = nil
		a.filterVals = nil
		return a, nil
	}
	return a, cmd
}

// exportPath names the export after the view and the current date.
func exportPath(q model.Query, now time.Time) string {
	name := fmt.Sprintf("adpulse-%s-%s-%s.xlsx", q.Granularity, q.Dimension, now.Format("20060102-150405"))
	return filepath.Join(".", name)
}

// exportCmd writes the current view to an XLSX file in the working directory.
func exportCmd(d pipeline.Derived, now time.Time) tea.Cmd {
	return func() tea.Msg {
		path := exportPath(d.Query, now)
		return exportedMsg{path: path, err: export.WriteFile(path, export.XLSX, d)}
	}
}
