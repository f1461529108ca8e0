package tui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/config"
	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/run"
	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewSetup
	viewRun
	viewExplorer
	viewFilePicker
	viewRecent
	viewRuns
)

// App is the root bubbletea model.
type App struct {
	cfg         *config.Config
	searcher    scraper.Searcher
	disabled    error
	store       *storage.Store
	currentView viewID
	width       int
	height      int
	home        views.HomeModel
	setup       views.SetupModel
	run         views.RunModel
	explorer    views.ExplorerModel
	filePicker  views.FilePickerModel
	recent      views.RecentModel
	runs        views.RunsModel
	log         *zap.Logger
}

// NewApp builds the root model. A nil searcher starts every run disabled
// with the given reason.
func NewApp(cfg *config.Config, version string, searcher scraper.Searcher, disabled error) *App {
	return &App{
		cfg:         cfg,
		searcher:    searcher,
		disabled:    disabled,
		currentView: viewHome,
		home:        views.NewHomeModel(version, disabled),
		log:         zap.L().With(zap.String("component", "tui")),
	}
}

func (a *App) Init() tea.Cmd {
	return a.home.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && a.currentView != viewRun {
			a.closeStore()
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToHome:
		a.closeStore()
		a.currentView = viewHome
		a.home = a.home.WithNotice(nil)
		return a, nil
	case views.NavigateToSetup:
		a.currentView = viewSetup
		a.setup = views.NewSetupModel(a.cfg.Params())
		return a, a.setup.Init()
	case views.StartRunMsg:
		return a, a.startRun(msg)
	case views.ResumeRunMsg:
		return a, a.resumeRun(msg)
	case views.NavigateToLoad:
		a.currentView = viewFilePicker
		a.filePicker = views.NewFilePickerModel(filepath.Dir(a.cfg.Output.DB))
		return a, a.filePicker.Init()
	case views.NavigateToRuns:
		a.remember(msg.DBPath, "")
		a.currentView = viewRuns
		a.runs = views.NewRunsModel(msg.DBPath)
		return a, a.runs.Init()
	case views.NavigateToExplorer:
		a.closeStore()
		a.currentView = viewExplorer
		a.explorer = views.NewExplorerModel(msg.DBPath, msg.RunID)
		return a, tea.Batch(a.explorer.Init(), a.sizeCmd())
	case views.NavigateToRecent:
		a.currentView = viewRecent
		entries := LoadRecent()
		recentEntries := make([]views.RecentEntry, 0, len(entries))
		for _, e := range entries {
			recentEntries = append(recentEntries, views.RecentEntry{
				Path:     e.Path,
				OpenedAt: e.OpenedAt,
				Keyword:  e.Keyword,
			})
		}
		a.recent = views.NewRecentModel(recentEntries)
		return a, a.recent.Init()
	case views.ForgetRecentMsg:
		if err := ForgetRecent(msg.Path); err != nil {
			a.log.Warn("forget recent failed", zap.Error(err))
		}
		return a, nil
	}

	var cmd tea.Cmd
	switch a.currentView {
	case viewHome:
		var m tea.Model
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewSetup:
		var m tea.Model
		m, cmd = a.setup.Update(msg)
		a.setup = m.(views.SetupModel)
	case viewRun:
		var m tea.Model
		m, cmd = a.run.Update(msg)
		a.run = m.(views.RunModel)
	case viewExplorer:
		var m tea.Model
		m, cmd = a.explorer.Update(msg)
		a.explorer = m.(views.ExplorerModel)
	case viewFilePicker:
		var m tea.Model
		m, cmd = a.filePicker.Update(msg)
		a.filePicker = m.(views.FilePickerModel)
	case viewRecent:
		var m tea.Model
		m, cmd = a.recent.Update(msg)
		a.recent = m.(views.RecentModel)
	case viewRuns:
		var m tea.Model
		m, cmd = a.runs.Update(msg)
		a.runs = m.(views.RunsModel)
	}

	return a, cmd
}

func (a *App) sessionOptions(region orb.MultiPolygon) []run.Option {
	opts := []run.Option{run.WithRegion(region)}
	if a.store != nil {
		opts = append(opts, run.WithStore(a.store))
	}
	if a.disabled != nil {
		opts = append(opts, run.WithDisabledReason(a.disabled))
	}
	return opts
}

// startRun seeds a new session and persists it in the configured database.
// A database that cannot be opened leaves the run in memory only.
func (a *App) startRun(msg views.StartRunMsg) tea.Cmd {
	a.closeStore()
	dbPath := msg.Params.DBPath
	if dbPath != "" {
		store, err := storage.NewStore(dbPath)
		if err != nil {
			a.log.Error("open run database", zap.String("path", dbPath), zap.Error(err))
			dbPath = ""
		} else {
			a.store = store
			a.remember(dbPath, msg.Params.Keyword)
		}
	}

	session := run.New(msg.Params, a.searcher, a.sessionOptions(msg.Region)...)
	if err := session.Save(); err != nil {
		a.log.Warn("initial snapshot failed", zap.Error(err))
	}
	a.currentView = viewRun
	a.run = views.NewRunModel(session, msg.Region, dbPath)
	return tea.Batch(a.run.Init(), a.sizeCmd())
}

func (a *App) resumeRun(msg views.ResumeRunMsg) tea.Cmd {
	a.closeStore()
	store, err := storage.NewStore(msg.DBPath)
	if err != nil {
		return a.fail(err)
	}
	a.store = store

	params, _, err := store.LoadRun(msg.RunID)
	if err != nil {
		return a.fail(err)
	}
	var region orb.MultiPolygon
	if params.RegionPath != "" {
		if region, err = geo.LoadRegion(params.RegionPath); err != nil {
			a.log.Warn("region unavailable for resumed run", zap.String("path", params.RegionPath), zap.Error(err))
		}
	}

	session, err := run.Resume(store, msg.RunID, a.searcher, a.sessionOptions(region)...)
	if err != nil {
		return a.fail(err)
	}
	a.currentView = viewRun
	a.run = views.NewRunModel(session, region, msg.DBPath)
	return tea.Batch(a.run.Init(), a.sizeCmd())
}

func (a *App) fail(err error) tea.Cmd {
	a.log.Error("tui action failed", zap.Error(err))
	a.closeStore()
	a.currentView = viewHome
	a.home = a.home.WithNotice(err)
	return nil
}

func (a *App) remember(dbPath, keyword string) {
	if err := SaveRecent(dbPath, keyword); err != nil {
		a.log.Warn("save recent failed", zap.Error(err))
	}
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close run database", zap.Error(err))
	}
	a.store = nil
}

func (a *App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewSetup:
		content = a.setup.View()
	case viewRun:
		content = a.run.View()
	case viewExplorer:
		content = a.explorer.View()
	case viewFilePicker:
		content = a.filePicker.View()
	case viewRecent:
		content = a.recent.View()
	case viewRuns:
		content = a.runs.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a *App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI. Without a usable provider the app still opens, with
// search disabled.
func Run(cfg *config.Config, version string) error {
	searcher, err := run.NewProvider(cfg)
	if err != nil {
		zap.L().Warn("search disabled", zap.Error(err))
	}
	app := NewApp(cfg, version, searcher, err)
	defer app.closeStore()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
