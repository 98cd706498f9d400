// Package tui provides the interactive Bubble Tea dashboard for adpulse.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/adpulse/internal/cli"
	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/pipeline"
	"github.com/theirongolddev/adpulse/internal/tui/components"
	"github.com/theirongolddev/adpulse/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// LoadFunc loads every source configured in cfg.
type LoadFunc func(ctx context.Context, cfg config.Config, progress pipeline.ProgressFunc) (*pipeline.LoadResult, error)

// Options configures a dashboard.
type Options struct {
	Config config.Config
	Load   LoadFunc
	// Query is the initial view; unset fields take the dashboard defaults.
	Query model.Query
	// NeedSetup opens the setup form before the first load.
	NeedSetup bool
	// SaveConfig persists setup answers and the auto-refresh toggle by
	// applying edit to the stored config. Nil keeps changes in memory.
	SaveConfig func(edit func(*config.Config)) error
}

// DataLoadedMsg is sent when a load or refresh finishes.
type DataLoadedMsg struct {
	Result *pipeline.LoadResult
	Err    error
}

// ProgressMsg reports how many sources have loaded.
type ProgressMsg struct {
	Current int
	Total   int
}

type tickMsg struct{}

type exportedMsg struct {
	path string
	err  error
}

// session is the state shared by every copy of the App value.
type session struct {
	load      LoadFunc
	save      func(edit func(*config.Config)) error
	refresher *pipeline.Refresher
	sub       chan tea.Msg
	// Progress is forwarded only while the first load is on screen.
	first atomic.Bool

	mu  sync.Mutex
	cfg config.Config
}

func (s *session) config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// update applies edit to the live config and hands the same edit to the
// save hook, so only the edited fields reach disk.
func (s *session) update(edit func(*config.Config)) error {
	s.mu.Lock()
	edit(&s.cfg)
	s.mu.Unlock()
	if s.save == nil {
		return nil
	}
	return s.save(edit)
}

func (s *session) progress(current, total int) {
	if !s.first.Load() {
		return
	}
	// Non-blocking: if the channel is full the next update catches up.
	select {
	case s.sub <- ProgressMsg{Current: current, Total: total}:
	default:
	}
}

// App is the root Bubble Tea model.
type App struct {
	sess *session

	// Data
	result  *pipeline.LoadResult
	derived pipeline.Derived
	options model.Filters
	loaded  bool
	lastErr string

	// View state
	query  model.Query
	preset int // index into rangePresets, -1 for a custom range

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	scroll    int
	message   string
	messageAt time.Time

	// Forms
	filterForm *huh.Form
	filterVals *filterValues
	setupForm  *huh.Form
	setupVals  *SetupValues

	// Loading
	spinner     spinner.Model
	progress    int
	progressMax int

	now func() time.Time
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	minContentHeight = 5
	messageTTL       = 5 * time.Second
	tickInterval     = time.Second
)

// NewApp creates a new dashboard model.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	sess := &session{
		load: opts.Load,
		save: opts.SaveConfig,
		sub:  make(chan tea.Msg, 1),
		cfg:  opts.Config,
	}
	sess.refresher = pipeline.NewRefresher(func(ctx context.Context) (*pipeline.LoadResult, error) {
		if sess.load == nil {
			return nil, errors.New("no loader configured")
		}
		return sess.load(ctx, sess.config(), sess.progress)
	})

	a := App{
		sess:            sess,
		query:           pipeline.Normalize(opts.Query),
		autoRefresh:     opts.Config.Refresh.Auto,
		refreshInterval: opts.Config.RefreshInterval(),
		spinner:         sp,
		now:             time.Now,
	}
	a.preset = a.matchPreset()
	if opts.NeedSetup {
		a.setupVals = SetupValuesFrom(opts.Config)
		a.setupForm = NewSetupForm(a.setupVals)
	}
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	if a.setupForm != nil {
		return tea.Batch(tea.EnableMouseCellMotion, a.setupForm.Init())
	}
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.sess),
		a.spinner.Tick,
		tickCmd(),
	)
}

// recompute re-derives every view from the loaded records.
func (a *App) recompute() {
	var records []model.Record
	if a.result != nil {
		records = a.result.Records
	}
	a.derived = pipeline.DeriveAll(records, a.query)
	a.options = pipeline.FilterOptions(records)
	a.clampScroll()
}

func (a *App) setMessage(s string) {
	a.message = s
	a.messageAt = a.now()
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(a.formWidth()).WithHeight(msg.Height)
		}
		if a.filterForm != nil {
			a.filterForm = a.filterForm.WithWidth(a.formWidth()).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.setupForm != nil || a.filterForm != nil {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.scrollBy(-1)
		case tea.MouseButtonWheelDown:
			a.scrollBy(1)
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					a.switchTab(tab)
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.sess.refresher.Stop()
			return a, tea.Quit
		}
		if a.setupForm != nil {
			return a.updateSetupForm(msg)
		}
		if a.filterForm != nil {
			return a.updateFilterForm(msg)
		}
		if !a.loaded {
			return a, nil
		}
		return a.handleKey(msg.String())

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.sess.sub)

	case DataLoadedMsg:
		if errors.Is(msg.Err, pipeline.ErrSuperseded) {
			// The newer load reports on its own.
			return a, nil
		}
		a.refreshing = false
		a.loaded = true
		a.lastRefresh = a.now()
		if msg.Err != nil {
			// Keep showing the last good data.
			a.lastErr = msg.Err.Error()
			return a, nil
		}
		a.lastErr = ""
		a.result = msg.Result
		a.recompute()
		return a, nil

	case exportedMsg:
		if msg.err != nil {
			a.setMessage("export failed: " + msg.err.Error())
		} else {
			a.setMessage("exported " + msg.path)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.message != "" && a.now().Sub(a.messageAt) >= messageTTL {
			a.message = ""
		}
		if a.loaded && a.autoRefresh && !a.refreshing &&
			a.now().Sub(a.lastRefresh) >= a.refreshInterval {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.sess))
		}
		return a, tea.Batch(cmds...)
	}

	// Forward everything else (cursor blinks, etc.) to an open form.
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.filterForm != nil {
		return a.updateFilterForm(msg)
	}
	return a, nil
}

func (a App) handleKey(key string) (tea.Model, tea.Cmd) {
	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		a.sess.refresher.Stop()
		return a, tea.Quit

	// Tabs
	case "o", "t", "b":
		a.switchTab(components.TabIdxByKey(rune(key[0])))
	case "left", "shift+tab":
		a.switchTab((a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs))
	case "right", "tab":
		a.switchTab((a.activeTab + 1) % len(components.Tabs))

	// View selectors
	case "g", "G":
		a.query.Granularity = cycle(model.Granularities, a.query.Granularity, step(key))
		a.recompute()
	case "d", "D":
		a.query.Dimension = cycle(model.Dimensions, a.query.Dimension, step(key))
		a.recompute()
	case "m", "M":
		a.query.Metric = cycle(model.AllMetrics, a.query.Metric, step(key))
		a.recompute()
	case "p", "P":
		a.preset = (max(a.preset, 0) + step(key) + len(rangePresets)) % len(rangePresets)
		a.query.Range = rangePresets[a.preset].spanAt(a.now())
		a.recompute()

	// Filters
	case "f":
		return a.openFilterForm()
	case "c":
		a.query.Filters = model.Filters{}
		a.query.Range = model.DateRange{}
		a.preset = 0
		a.recompute()
		a.setMessage("filters cleared")

	// Data
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.sess)
		}
	case "R":
		a.autoRefresh = !a.autoRefresh
		auto := a.autoRefresh
		if err := a.sess.update(func(c *config.Config) { c.Refresh.Auto = auto }); err != nil {
			a.setMessage("could not save config: " + err.Error())
		} else if a.autoRefresh {
			a.setMessage("auto-refresh every " + cli.FormatDuration(a.refreshInterval))
		} else {
			a.setMessage("auto-refresh off")
		}
	case "x":
		return a, exportCmd(a.derived, a.now())

	// Scrolling
	case "j", "down":
		a.scrollBy(1)
	case "k", "up":
		a.scrollBy(-1)
	case "pgdown", "ctrl+d":
		a.scrollBy(a.pageSize())
	case "pgup", "ctrl+u":
		a.scrollBy(-a.pageSize())
	case "home":
		a.scroll = 0
	case "end":
		a.scroll = a.rowCount()
		a.clampScroll()
	}
	return a, nil
}

func step(key string) int {
	if strings.ToUpper(key) == key {
		return -1
	}
	return 1
}

// cycle returns the element step positions after cur, wrapping around.
func cycle[T comparable](list []T, cur T, step int) T {
	for i, v := range list {
		if v == cur {
			return list[(i+step+len(list))%len(list)]
		}
	}
	return list[0]
}

func (a *App) switchTab(tab int) {
	if tab < 0 || tab >= len(components.Tabs) || tab == a.activeTab {
		return
	}
	a.activeTab = tab
	a.scroll = 0
}

// rowCount is the number of table rows on the active tab.
func (a App) rowCount() int {
	switch a.activeTab {
	case tabTrends:
		return len(a.derived.Comparison)
	case tabBreakdown:
		return len(a.derived.Dimension)
	}
	return 0
}

func (a App) pageSize() int {
	return max((a.height-8)/2, 1)
}

func (a *App) scrollBy(n int) {
	a.scroll += n
	a.clampScroll()
}

func (a *App) clampScroll() {
	a.scroll = min(a.scroll, a.rowCount()-1)
	a.scroll = max(a.scroll, 0)
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) formWidth() int {
	return min(a.width, 90)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.setupForm != nil {
		return a.viewForm("◈ adpulse setup", a.setupForm)
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.filterForm != nil {
		return a.viewForm("◈ Filters", a.filterForm)
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  adpulse needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewForm(title string, form *huh.Form) string {
	t := theme.Active
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim)
	body := titleStyle.Render(title) + "\n\n" + form.View() + "\n" + hintStyle.Render("esc to cancel")
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, body)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	countStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ adpulse"))
	b.WriteString(subtitleStyle.Render(" · Ad Performance"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())

	if a.progressMax > 0 {
		barW := min(max(a.width-30, 20), 40)
		b.WriteString(subtitleStyle.Render(" Fetching sources\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(countStyle.Render(fmt.Sprintf("%d", a.progress)))
		b.WriteString(subtitleStyle.Render(" / "))
		b.WriteString(countStyle.Render(fmt.Sprintf("%d", a.progressMax)))
	} else {
		b.WriteString(subtitleStyle.Render(" Connecting to sources..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"o t b", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Scroll tables"},
			{"PgUp PgDn", "Scroll a page"},
		}},
		{"View", [][2]string{
			{"g / G", "Next / previous granularity"},
			{"d / D", "Next / previous dimension"},
			{"m / M", "Next / previous metric"},
			{"p / P", "Next / previous date range"},
			{"f", "Filter dimensions and dates"},
			{"c", "Clear filters"},
		}},
		{"Data", [][2]string{
			{"r", "Refresh now"},
			{"R", "Toggle auto-refresh"},
			{"x", "Export view to XLSX"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind[0])),
				descStyle.Render(bind[1]))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	header := components.RenderTabBar(a.activeTab, w) + "\n" + a.renderQueryLine(w)
	statusBar := components.RenderStatusBar(w, a.status())

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverviewTab(cw)
	case tabTrends:
		content = a.renderTrendsTab(cw, contentH)
	case tabBreakdown:
		content = a.renderBreakdownTab(cw, contentH)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// renderQueryLine shows the active view selectors and filters.
func (a App) renderQueryLine(w int) string {
	t := theme.Active
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	sep := dim.Render(" │ ")
	parts := []string{
		accent.Render(a.query.Granularity.Label()),
		accent.Render(a.query.Dimension.Label()),
		accent.Render(a.query.Metric.Label()),
		accent.Render(a.rangeLabel()),
	}
	if n := filterCount(a.query.Filters); n > 0 {
		parts = append(parts, accent.Render(fmt.Sprintf("%d filtered", n)))
	}
	line := dim.Render(" ") + strings.Join(parts, sep)
	return lipgloss.NewStyle().Background(t.Surface).Width(w).Render(line)
}

func (a App) status() components.Status {
	st := components.Status{
		Err:         a.lastErr,
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
	}
	if a.message != "" {
		st.Message = a.message
	}
	if a.result != nil {
		st.Info = fmt.Sprintf("%s records · loaded %s",
			cli.FormatNumber(float64(a.derived.Summary.Records)),
			a.lastRefresh.Format("15:04"))
	}
	return st
}

// ─── Commands ───────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd runs the first load in a background goroutine, streaming
// ProgressMsg updates and a final DataLoadedMsg through the session channel.
func loadDataCmd(s *session) tea.Cmd {
	return func() tea.Msg {
		go func() {
			s.first.Store(true)
			res, err := s.refresher.Refresh(context.Background())
			s.first.Store(false)
			s.sub <- DataLoadedMsg{Result: res, Err: err}
		}()
		return <-s.sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd reloads in the background without progress updates.
func refreshDataCmd(s *session) tea.Cmd {
	return func() tea.Msg {
		res, err := s.refresher.Refresh(context.Background())
		return DataLoadedMsg{Result: res, Err: err}
	}
}

// ─── Layout helpers ─────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with the background color
// so gaps between cards are never left unstyled.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // one-column separator
	}
	return -1
}
