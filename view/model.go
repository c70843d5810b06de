/*package view is the terminal front-end of the player.

The bubbletea program is the frame loop. Every tick advances the loader by
one Step and the controller by the time since the previous tick, so loading
never holds up key handling for more than one slice of work.
*/
package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/phil-mansfield/qcloud"
	"github.com/phil-mansfield/qcloud/playback"
	"github.com/phil-mansfield/qcloud/variant"
)

type Screen int

const (
	ScreenInit Screen = iota
	ScreenEditor
	ScreenTutorial
)

func (s Screen) String() string {
	switch s {
	case ScreenInit:
		return "init"
	case ScreenEditor:
		return "editor"
	case ScreenTutorial:
		return "tutorial"
	}
	return fmt.Sprintf("Screen(%d)", int(s))
}

// Loader is the part of a loader.Loader the view drives.
type Loader interface {
	playback.Loader
	Start()
	Step() bool
	Progress() float64
	Close()
}

// ReloadMsg replaces the loader, usually because the container changed on
// disk. The previous loader is closed.
type ReloadMsg struct {
	Loader Loader
}

type tickMsg time.Time

type Options struct {
	FrameRate int
	HideDelay time.Duration
	Log       *zap.Logger
}

type styles struct {
	title, muted, status, notice, err lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		notice: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#FFD75F")),
		err:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F")),
	}
}

// Model is the bubbletea model of the player.
type Model struct {
	ld  Loader
	ctl *playback.Controller
	sel *variant.Selector
	pal *variant.Palette
	r   *TermRenderer
	ind *Indicator
	bar progress.Model
	log *zap.Logger

	frame   time.Duration
	last    time.Time
	screen  Screen
	notice  string
	gridSet bool
	styles  styles
}

// New creates a Model. ctl must have been built on ld and r.
func New(
	ld Loader, ctl *playback.Controller, pal *variant.Palette,
	r *TermRenderer, opt Options,
) (*Model, error) {
	switch {
	case ld == nil:
		return nil, &qcloud.ConfigurationError{What: "loader"}
	case ctl == nil:
		return nil, &qcloud.ConfigurationError{What: "controller"}
	case pal == nil:
		return nil, &qcloud.ConfigurationError{What: "palette"}
	case r == nil:
		return nil, &qcloud.ConfigurationError{What: "renderer"}
	}

	sel, err := variant.NewSelector(pal.Len())
	if err != nil {
		return nil, err
	}
	if opt.FrameRate <= 0 {
		opt.FrameRate = 60
	}
	log := opt.Log
	if log == nil {
		log = zap.NewNop()
	}

	m := &Model{
		ld: ld, ctl: ctl, sel: sel, pal: pal, r: r,
		ind:    NewIndicator(opt.HideDelay),
		bar:    progress.New(progress.WithDefaultGradient()),
		log:    log,
		frame:  time.Second / time.Duration(opt.FrameRate),
		styles: defaultStyles(),
	}
	sel.Subscribe(func(st variant.State) {
		if st.Active >= 0 {
			ctl.SetVariant(st.Active)
		}
	})
	return m, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	m.ld.Start()
	return m.tick()
}

// Advance runs one frame of dt.
func (m *Model) Advance(dt time.Duration) {
	m.ld.Step()
	if !m.gridSet && m.ld.Loaded() {
		m.r.SetGrid(m.ld.Header())
		m.gridSet = true
	}
	m.ctl.Update(dt)
	m.ind.Update(m.ld.Loading(), m.ld.Loaded(), m.ld.Failed(), dt)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		now := time.Time(msg)
		dt := m.frame
		if !m.last.IsZero() {
			dt = now.Sub(m.last)
		}
		m.last = now
		m.Advance(dt)
		return m, m.tick()

	case ReloadMsg:
		m.reload(msg.Loader)
		return m, nil

	case tea.WindowSizeMsg:
		m.r.Width = msg.Width
		m.r.Height = msg.Height - 6
		if m.r.Height < 1 {
			m.r.Height = 1
		}
		m.bar.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		return m, m.key(msg.String())
	}
	return m, nil
}

func (m *Model) reload(ld Loader) {
	if ld == nil {
		return
	}
	m.log.Info("Reloading dataset.")
	m.ld.Close()
	m.ld = ld
	m.r.SetBuffer(nil)
	m.r.SetPointCount(0)
	m.gridSet = false
	m.ind = NewIndicator(m.ind.HideDelay)
	if err := m.ctl.Rebind(ld); err != nil {
		m.log.Error("Rebind failed.", zap.Error(err))
	}
	m.ld.Start()
}

func (m *Model) key(k string) tea.Cmd {
	m.notice = ""
	switch k {
	case "q", "ctrl+c":
		return tea.Quit
	}

	switch m.screen {
	case ScreenInit:
		switch k {
		case "i":
			m.ctl.Initialize()
			m.selectVariant(0)
			m.screen = ScreenEditor
		case "t":
			m.screen = ScreenTutorial
		}

	case ScreenTutorial:
		switch k {
		case "t", "esc", "b":
			m.screen = ScreenInit
		}

	case ScreenEditor:
		switch k {
		case "b":
			m.ctl.Stop()
			m.sel.Reset()
			m.screen = ScreenInit
		case " ":
			m.ctl.Toggle()
		case "right", "n":
			m.ctl.Next()
		case "left", "p":
			m.ctl.Previous()
		case "r":
			m.ctl.Reset()
		default:
			if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
				m.selectVariant(int(k[0] - '1'))
			}
		}
	}
	return nil
}

// selectVariant selects k, or tries to turn it off if it is already the
// active variant.
func (m *Model) selectVariant(k int) {
	var err error
	if k == m.sel.Active() {
		_, err = m.sel.Deactivate(k)
	} else {
		_, err = m.sel.Select(k)
	}
	if err != nil {
		m.notice = err.Error()
		m.log.Debug("Variant change refused.", zap.Int("variant", k), zap.Error(err))
	}
}

func (m *Model) Screen() Screen                   { return m.screen }
func (m *Model) Selector() *variant.Selector      { return m.sel }
func (m *Model) Controller() *playback.Controller { return m.ctl }
func (m *Model) Notice() string                   { return m.notice }

func (m *Model) View() string {
	sb := &strings.Builder{}
	sb.WriteString(m.styles.title.Render("qcloud"))
	sb.WriteString("\n")

	if err := m.ctl.Err(); err != nil {
		sb.WriteString(m.styles.err.Render("Playback disabled: " + err.Error()))
		sb.WriteString("\n")
	} else if m.ind.Visible() {
		sb.WriteString(m.ind.Text())
		sb.WriteString("\n")
		sb.WriteString(m.bar.ViewAs(m.ld.Progress()))
		sb.WriteString("\n")
	}

	switch m.screen {
	case ScreenInit:
		sb.WriteString(m.styles.muted.Render(
			"[i] initialize  [t] tutorial  [q] quit"))
	case ScreenTutorial:
		sb.WriteString(tutorialText)
		sb.WriteString("\n")
		sb.WriteString(m.styles.muted.Render("[t] back"))
	case ScreenEditor:
		if frame := m.r.Render(); frame != "" {
			sb.WriteString(frame)
			sb.WriteString("\n")
		}
		sb.WriteString(m.styles.status.Render(m.status()))
		sb.WriteString("\n")
		sb.WriteString(m.styles.muted.Render(
			"[space] play/pause  [n/p] step  [r] reset  [1-9] variant  [b] back  [q] quit"))
	}

	if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(m.styles.notice.Render(m.notice))
	}
	return sb.String()
}

func (m *Model) status() string {
	state := "paused"
	if m.ctl.Playing() {
		state = "playing"
	}
	name := "none"
	if k := m.sel.Active(); k >= 0 {
		name = m.pal.Names[k]
	}
	return fmt.Sprintf("t = %d/%d  %s  variant: %s  particles: %d",
		m.ctl.CurrentTimestep(), m.ctl.MaxTimestep(), state, name,
		m.ctl.Frame().Len())
}

const tutorialText = `Each frame shows the pollutant concentration q over x and y at one
timestep, summed over height. Denser characters mean more grid cells inside
the concentration window.

Press i on the start screen to begin. Space plays and pauses, n and p step
through time, and the number keys switch between pollutants.`
