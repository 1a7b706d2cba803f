package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/library"
	"github.com/desertthunder/nexus/internal/tasks"
)

// recentLines is how many progress messages the acquire view keeps on screen.
const recentLines = 6

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SearchView ViewState = iota
	CandidateListView
	ConfirmView
	AcquireView
	ResultView
)

// Importer is the slice of [tasks.Importer] the TUI drives.
type Importer interface {
	Search(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) ([]acquire.SearchCandidate, error)
	Import(ctx context.Context, req tasks.ImportRequest, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error)
}

// Options carries the import defaults for songs added from the TUI.
type Options struct {
	OwnerID    string
	PlaylistID string
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	importer   Importer
	opts       Options
	view       ViewState
	width      int
	height     int
	query      textinput.Model
	moods      textinput.Model
	candidates list.Model
	selected   *acquire.SearchCandidate
	searching  bool
	spinner    spinner.Model
	bar        progress.Model
	cancel     context.CancelFunc
	update     tasks.ProgressUpdate
	recent     []string
	result     *tasks.ImportResult
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, importer Importer, opts Options) *Model {
	query := textinput.New()
	query.Placeholder = "Search for a song or paste a link"
	query.Focus()
	query.CharLimit = 500
	query.Width = 60

	moods := textinput.New()
	moods.Placeholder = "chill, focus"
	moods.CharLimit = 200
	moods.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50

	return &Model{
		ctx:      ctx,
		importer: importer,
		opts:     opts,
		view:     SearchView,
		width:    80,
		height:   24,
		query:    query,
		moods:    moods,
		spinner:  s,
		bar:      bar,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the cursor blink of the search input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if len(m.candidates.Items()) > 0 {
			m.candidates.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m.handleQuit()
		}
		switch m.view {
		case SearchView:
			return m.handleSearchKeys(msg)
		case CandidateListView:
			return m.handleCandidateKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.searching && m.view != AcquireView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSearchCompleted:
		res := msg.data.(searchResult)
		m.searching = false
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		if len(res.candidates) == 0 {
			m.err = fmt.Errorf("no results for %q", strings.TrimSpace(m.query.Value()))
			return m, nil
		}
		m.err = nil
		m.candidates = list.New(candidateItems(res.candidates), list.NewDefaultDelegate(), 0, 0)
		m.candidates.Title = fmt.Sprintf("Results for '%s'", strings.TrimSpace(m.query.Value()))
		m.candidates.SetSize(m.width-4, m.height-8)
		m.candidates.DisableQuitKeybindings()
		m.query.Blur()
		m.view = CandidateListView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(progressStep)
		m.update = update.update
		m.recent = append(m.recent, update.update.Message)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		return m, waitForProgress(update.progress, update.done)

	case MsgImportComplete:
		res := msg.data.(importResult)
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.result = res.result
		m.err = res.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// handleQuit cancels a running import instead of quitting so the result view can report it.
func (m *Model) handleQuit() (tea.Model, tea.Cmd) {
	if m.view == AcquireView && m.cancel != nil {
		m.cancel()
		m.recent = append(m.recent, "Cancelling...")
		return m, nil
	}
	return m, tea.Quit
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.enter) {
		query := strings.TrimSpace(m.query.Value())
		if query == "" || m.searching {
			return m, nil
		}
		m.searching = true
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.search(query))
	}

	var cmd tea.Cmd
	m.query, cmd = m.query.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.candidates.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.back):
			m.view = SearchView
			return m, m.query.Focus()
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.candidates.SelectedItem().(candidateItem); ok {
				c := item.candidate
				m.selected = &c
				m.view = ConfirmView
				return m, m.moods.Focus()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.candidates, cmd = m.candidates.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.moods.Blur()
		m.view = CandidateListView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		m.moods.Blur()
		m.view = AcquireView
		return m, tea.Batch(m.spinner.Tick, m.startImport())
	}

	var cmd tea.Cmd
	m.moods, cmd = m.moods.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.restart, m.keys.enter) {
		m.reset()
		return m, m.query.Focus()
	}
	return m, nil
}

func (m *Model) reset() {
	m.view = SearchView
	m.query.SetValue("")
	m.moods.SetValue("")
	m.selected = nil
	m.update = tasks.ProgressUpdate{}
	m.recent = nil
	m.result = nil
	m.err = nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SearchView:
		m.query, cmd = m.query.Update(msg)
	case CandidateListView:
		m.candidates, cmd = m.candidates.Update(msg)
	case ConfirmView:
		m.moods, cmd = m.moods.Update(msg)
	}
	return m, cmd
}

func (m *Model) search(query string) tea.Cmd {
	return func() tea.Msg {
		candidates, err := m.importer.Search(m.ctx, query, nil)
		return searchCompletedMsg(candidates, err)
	}
}

// startImport runs the import in its own goroutine.
//
// The result is handed over on done before progress is closed, so the command that observes the
// closed channel always finds it.
func (m *Model) startImport() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.recent = nil
	m.update = tasks.ProgressUpdate{}

	req := tasks.ImportRequest{
		Reference:  m.selected.Reference,
		OwnerID:    m.opts.OwnerID,
		Moods:      strings.Split(m.moods.Value(), ","),
		PlaylistID: m.opts.PlaylistID,
	}
	progressChan := make(chan tasks.ProgressUpdate, 50)
	done := make(chan importResult, 1)

	go func() {
		result, err := m.importer.Import(ctx, req, progressChan)
		done <- importResult{result: result, err: err}
		close(progressChan)
	}()

	return waitForProgress(progressChan, done)
}

func waitForProgress(progressChan <-chan tasks.ProgressUpdate, done <-chan importResult) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			res := <-done
			return importCompleteMsg(res.result, res.err)
		}
		return progressUpdateMsg(update, progressChan, done)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SearchView:
		return m.renderSearch()
	case CandidateListView:
		return m.renderCandidates()
	case ConfirmView:
		return m.renderConfirm()
	case AcquireView:
		return m.renderAcquire()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Import a Song"))
	b.WriteString("\n")
	b.WriteString(m.query.View())
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString(m.spinner.View() + " Searching...\n\n")
	} else if m.err != nil {
		b.WriteString(renderError(m.err))
		b.WriteString("\n\n")
	}

	search := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search"))
	b.WriteString(m.help.ShortHelpView([]key.Binding{search, m.keys.quit}))
	return b.String()
}

func (m *Model) renderCandidates() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.candidates.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	c := m.selected
	title := styles.title.Render(fmt.Sprintf("Import '%s'?", c.Title))
	info := fmt.Sprintf("Artist: %s\nDuration: %s\nSource: %s\n", c.Artist, c.Duration, c.Reference)
	if m.opts.PlaylistID != "" {
		info += fmt.Sprintf("Playlist: %s\n", m.opts.PlaylistID)
	}

	importKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "import"))
	helpView := m.help.ShortHelpView([]key.Binding{importKey, m.keys.back, m.keys.quit})

	return fmt.Sprintf("%s\n%s\nMoods (comma separated):\n%s\n\n%s", title, info, m.moods.View(), helpView)
}

func (m *Model) renderAcquire() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Importing " + m.selected.Title))
	b.WriteString("\n")

	percent := 0.0
	if m.update.Total > 0 {
		percent = float64(m.update.Step) / float64(m.update.Total)
	}
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.phaseLabel())
	b.WriteString(m.bar.ViewAs(percent))
	b.WriteString("\n\n")

	for _, line := range m.recent {
		b.WriteString(styles.dim.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	cancel := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel"))
	b.WriteString(m.help.ShortHelpView([]key.Binding{cancel}))
	return b.String()
}

func (m *Model) phaseLabel() string {
	switch m.update.Phase {
	case tasks.Download:
		return fmt.Sprintf("Downloading (attempt %d/%d)", m.update.Step, m.update.Total)
	case tasks.Backoff:
		return styles.warn.Render(fmt.Sprintf("Waiting before attempt %d/%d", m.update.Step+1, m.update.Total))
	case tasks.Register:
		return "Adding to library..."
	case tasks.AddToPlaylist:
		return "Adding to playlist..."
	default:
		return "Starting..."
	}
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil && m.result == nil {
		return fmt.Sprintf("%s\n\n%s", renderError(m.err), helpView)
	}
	if m.result == nil || m.result.Song == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	song := m.result.Song
	title := styles.ok.Render("✓ Import Complete!")
	info := fmt.Sprintf("\nSong: %s\nArtist: %s\nFile: %s\nID: %s", song.Title, song.Artist, song.Filename, song.ID())
	if len(song.Moods) > 0 {
		labels := make([]string, len(song.Moods))
		for i, mood := range song.Moods {
			labels[i] = library.MoodLabel(mood)
		}
		info += "\nMoods: " + strings.Join(labels, ", ")
	}
	if acq := m.result.Acquisition; acq != nil {
		info += fmt.Sprintf("\nClient: %s after %d attempt(s)", acq.Profile, acq.Attempts)
	}

	var warning string
	if m.err != nil {
		warning = "\n\n" + styles.warn.Render(m.err.Error())
	} else if m.result.AddedToPlaylist {
		info += "\nAdded to playlist " + m.opts.PlaylistID
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, warning, helpView)
}

func renderError(err error) string {
	out := styles.err.Render(fmt.Sprintf("Error: %v", err))
	if hint := acquire.HintFor(err); hint != "" {
		out += "\n" + styles.help.Render(hint)
	}
	return out
}
