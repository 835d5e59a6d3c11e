package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"beatpad/config"
	"beatpad/debug"
	"beatpad/feed"
	"beatpad/midi"
	"beatpad/playback"
	"beatpad/sound"
	"beatpad/theme"
	"beatpad/widgets"
)

// How long a notification stays on screen
const noticeTTL = 3 * time.Second

type view int

const (
	viewGrid view = iota
	viewFeed
	viewComment
)

type Model struct {
	Player    *playback.Player
	Surface   *playback.Surface
	DeviceMgr *midi.DeviceManager
	Store     *feed.Store
	Config    *config.Config
	Theme     *theme.Theme

	// Library is loaded once audio comes up, if it was off at startup
	Library []sound.Descriptor

	ctx      context.Context
	keys     keyMap
	help     help.Model
	comment  textinput.Model
	view     view
	quitting bool

	cursorRow, cursorCol int
	soundIdx             int

	posts   []feed.Post
	postIdx int
	remixOf *feed.Post // post loaded into the grid, if any

	notice    string
	noticeErr bool
	noticeSeq int
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

type recordDoneMsg struct {
	sound sound.Sound
	err   error
}

type postsMsg struct {
	posts []feed.Post
	err   error
}

type noticeMsg struct {
	text  string
	isErr bool
}

type noticeExpiredMsg struct{ seq int }

func NewModel(ctx context.Context, p *playback.Player, s *playback.Surface, deviceMgr *midi.DeviceManager, store *feed.Store, cfg *config.Config, th *theme.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "say something nice"
	ti.CharLimit = 280

	return Model{
		Player:    p,
		Surface:   s,
		DeviceMgr: deviceMgr,
		Store:     store,
		Config:    cfg,
		Theme:     th,
		ctx:       ctx,
		keys:      defaultKeyMap(),
		help:      help.New(),
		comment:   ti,
	}
}

func ListenForUpdates(p *playback.Player) tea.Cmd {
	return func() tea.Msg {
		<-p.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Player)}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	if !m.Player.State().AudioReady {
		cmds = append(cmds, func() tea.Msg {
			return noticeMsg{text: "Audio is off, press i to enable sound", isErr: true}
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.view {
		case viewFeed:
			return m.updateFeed(msg)
		case viewComment:
			return m.updateComment(msg)
		}
		return m.updateGrid(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case UpdateMsg:
		return m, ListenForUpdates(m.Player)

	case DeviceEventMsg:
		m.handleDevice(midi.DeviceEvent(msg))
		return m, ListenForDevices(m.DeviceMgr)

	case recordDoneMsg:
		if msg.err != nil {
			cmd := m.fail(msg.err)
			return m, cmd
		}
		m.soundIdx = len(m.Player.Sounds()) - 1
		cmd := m.notify(fmt.Sprintf("Recorded %s (%.1fs), press a to assign", msg.sound.Name, msg.sound.Duration().Seconds()), false)
		return m, cmd

	case postsMsg:
		if msg.err != nil {
			cmd := m.fail(msg.err)
			return m, cmd
		}
		m.posts = msg.posts
		if m.postIdx >= len(m.posts) {
			m.postIdx = max(0, len(m.posts)-1)
		}

	case soundsLoadedMsg:
		if msg.err != nil {
			cmd := m.fail(msg.err)
			return m, cmd
		}
		if msg.n > 0 {
			cmd := m.notify(fmt.Sprintf("Loaded %d sounds", msg.n), false)
			return m, cmd
		}

	case noticeMsg:
		cmd := m.notify(msg.text, msg.isErr)
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
	}

	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	g := m.Player.Grid()
	var err error

	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		m.Player.Stop()
		return m, tea.Quit

	case key.Matches(msg, k.Up):
		m.cursorRow = max(0, m.cursorRow-1)
	case key.Matches(msg, k.Down):
		m.cursorRow = min(g.Rows()-1, m.cursorRow+1)
	case key.Matches(msg, k.Left):
		m.cursorCol = max(0, m.cursorCol-1)
	case key.Matches(msg, k.Right):
		m.cursorCol = min(g.Cols()-1, m.cursorCol+1)

	case key.Matches(msg, k.Toggle):
		err = m.Player.Toggle(m.cursorRow, m.cursorCol)
	case key.Matches(msg, k.Assign):
		if s, ok := m.selectedSound(); ok {
			err = m.Player.AssignSound(m.cursorRow, m.cursorCol, s.ID)
		}
	case key.Matches(msg, k.PrevSound):
		m.cycleSound(-1)
	case key.Matches(msg, k.NextSound):
		m.cycleSound(1)
	case key.Matches(msg, k.Audition):
		if s, ok := m.selectedSound(); ok {
			m.Player.Audition(s.ID)
		}

	case key.Matches(msg, k.Play):
		err = m.Player.TogglePlayback()
	case key.Matches(msg, k.Faster):
		err = m.Player.SetTempo(m.Player.Tempo() + 5)
	case key.Matches(msg, k.Slower):
		err = m.Player.SetTempo(m.Player.Tempo() - 5)
	case key.Matches(msg, k.AddCol):
		err = m.Player.AddColumn()
	case key.Matches(msg, k.RemoveCol):
		err = m.Player.RemoveColumn()
	case key.Matches(msg, k.AddRow):
		err = m.Player.AddRow()
	case key.Matches(msg, k.RemoveRow):
		err = m.Player.RemoveRow()
	case key.Matches(msg, k.Clear):
		err = m.Player.ClearGrid()

	case key.Matches(msg, k.Record):
		if m.Player.State().Recording {
			m.Player.StopRecording()
			return m, nil
		}
		if !m.Player.State().AudioReady {
			cmd := m.notify("Audio is off, press i to enable sound", true)
			return m, cmd
		}
		cmd := m.notify("Recording...", false)
		return m, tea.Batch(m.record(), cmd)

	case key.Matches(msg, k.Audio):
		if err = m.Player.Init(); err == nil {
			cmd := m.notify("Audio on", false)
			return m, tea.Batch(cmd, m.loadSounds(m.Library))
		}

	case key.Matches(msg, k.Publish):
		return m.publish()

	case key.Matches(msg, k.Feed):
		m.view = viewFeed
		return m, m.loadPosts()

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.clampCursor()
	if err != nil {
		cmd := m.fail(err)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateFeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		m.Player.Stop()
		return m, tea.Quit
	case key.Matches(msg, k.Back):
		m.view = viewGrid
	case key.Matches(msg, k.Up):
		m.postIdx = max(0, m.postIdx-1)
	case key.Matches(msg, k.Down):
		m.postIdx = min(len(m.posts)-1, m.postIdx+1)
		m.postIdx = max(0, m.postIdx)
	}

	post, ok := m.selectedPost()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, k.Open):
		if err := m.Player.LoadGrid(post.Grid, post.BPM); err != nil {
			cmd := m.fail(err)
			return m, cmd
		}
		m.remixOf = &post
		m.view = viewGrid
		m.clampCursor()
		cmd := m.notify(fmt.Sprintf("Remixing %s's beat, press P to publish", post.AuthorName), false)
		return m, tea.Batch(cmd, m.loadSounds(post.Sounds))

	case key.Matches(msg, k.Like):
		if _, err := m.Store.Like(post.ID); err != nil {
			cmd := m.fail(err)
			return m, cmd
		}
		return m, m.loadPosts()

	case key.Matches(msg, k.Comment):
		m.view = viewComment
		m.comment.SetValue("")
		cmd := m.comment.Focus()
		return m, cmd

	case key.Matches(msg, k.Delete):
		if err := m.Store.Delete(post.ID); err != nil {
			cmd := m.fail(err)
			return m, cmd
		}
		if m.remixOf != nil && m.remixOf.ID == post.ID {
			m.remixOf = nil
		}
		cmd := m.notify("Post deleted", false)
		return m, tea.Batch(m.loadPosts(), cmd)
	}
	return m, nil
}

func (m Model) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.comment.Blur()
		m.view = viewFeed
		return m, nil
	case tea.KeyEnter:
		m.comment.Blur()
		m.view = viewFeed
		post, ok := m.selectedPost()
		if !ok {
			return m, nil
		}
		if _, err := m.Store.Comment(post.ID, m.Config.Author.Name, m.comment.Value()); err != nil {
			cmd := m.fail(err)
			return m, cmd
		}
		return m, m.loadPosts()
	}

	var cmd tea.Cmd
	m.comment, cmd = m.comment.Update(msg)
	return m, cmd
}

func (m *Model) handleDevice(event midi.DeviceEvent) {
	switch event.Type {
	case midi.DeviceConnected:
		switch event.Controller.Type() {
		case midi.ControllerLaunchpad:
			m.Surface.Bind(event.Controller)
		case midi.ControllerKeyboard:
			m.Surface.Listen(event.Controller)
		}
	case midi.DeviceDisconnected:
		m.Surface.Unbind(event.ID)
	}
}

func (m Model) publish() (tea.Model, tea.Cmd) {
	draft := m.Player.Snapshot(m.Config.Author.ID, m.Config.Author.Name)
	var (
		post feed.Post
		err  error
	)
	if m.remixOf != nil {
		post, err = m.Store.Remix(m.remixOf.ID, draft)
	} else {
		post, err = m.Store.Publish(draft)
	}
	if err != nil {
		cmd := m.fail(err)
		return m, cmd
	}
	m.remixOf = nil
	debug.Log("tui", "published %s", post.ID)
	if post.IsRemix() {
		cmd := m.notify("Remix of "+post.OriginalAuthorName+" published", false)
		return m, cmd
	}
	cmd := m.notify("Beat published", false)
	return m, cmd
}

func (m Model) record() tea.Cmd {
	p, ctx := m.Player, m.ctx
	return func() tea.Msg {
		s, err := p.Record(ctx)
		return recordDoneMsg{sound: s, err: err}
	}
}

type soundsLoadedMsg struct {
	n   int
	err error
}

func (m Model) loadSounds(ds []sound.Descriptor) tea.Cmd {
	p, ctx := m.Player, m.ctx
	return func() tea.Msg {
		n, err := p.LoadSounds(ctx, ds)
		return soundsLoadedMsg{n: n, err: err}
	}
}

func (m Model) loadPosts() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		posts, err := store.List()
		return postsMsg{posts: posts, err: err}
	}
}

// notify shows a transient message
func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

// fail shows err's user-facing message
func (m *Model) fail(err error) tea.Cmd {
	debug.Log("tui", "error (%s): %v", ftag.Get(err), err)
	text := fmsg.GetIssue(err)
	if text == "" {
		text = err.Error()
	}
	return m.notify(text, true)
}

func (m *Model) cycleSound(delta int) {
	n := len(m.Player.Sounds())
	if n == 0 {
		return
	}
	m.soundIdx = ((m.soundIdx+delta)%n + n) % n
}

func (m Model) selectedSound() (sound.Sound, bool) {
	sounds := m.Player.Sounds()
	if len(sounds) == 0 {
		return sound.Sound{}, false
	}
	return sounds[min(m.soundIdx, len(sounds)-1)], true
}

func (m Model) selectedPost() (feed.Post, bool) {
	if m.postIdx < 0 || m.postIdx >= len(m.posts) {
		return feed.Post{}, false
	}
	return m.posts[m.postIdx], true
}

func (m *Model) clampCursor() {
	g := m.Player.Grid()
	m.cursorRow = max(0, min(m.cursorRow, g.Rows()-1))
	m.cursorCol = max(0, min(m.cursorCol, g.Cols()-1))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	var keys help.KeyMap = gridKeys{m.keys}
	switch m.view {
	case viewFeed, viewComment:
		body = m.viewFeed()
		keys = feedKeys{m.keys}
	default:
		body = m.viewGrid()
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.viewHeader())
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n")
	if m.notice != "" {
		style := lipgloss.NewStyle().Foreground(m.Theme.Success())
		if m.noticeErr {
			style = lipgloss.NewStyle().Foreground(m.Theme.Warning())
		}
		out.WriteString("\n")
		out.WriteString(style.Render(m.notice))
	}
	out.WriteString("\n\n")
	out.WriteString(m.help.View(keys))
	return out.String()
}

func (m Model) viewHeader() string {
	st := m.Player.State()
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	playState := "STOP"
	if st.Playing {
		playState = "PLAY"
	}
	status := ""
	if m.Surface != nil && m.Surface.Controller() != nil {
		status += " LP"
	}
	if st.Recording {
		status += " " + string(m.Theme.Symbols.Recording) + "REC"
	}
	if !st.AudioReady {
		status += " (no audio)"
	}

	header := headerStyle.Render(fmt.Sprintf("beatpad  %s  %3.0fbpm  step:%02d  %dx%d%s",
		playState, st.BPM, st.Column, st.Rows, st.Cols, status))
	if m.remixOf != nil {
		header += dimStyle.Render("  remix of " + m.remixOf.AuthorName)
	}
	return header
}

func (m Model) viewGrid() string {
	g := m.Player.Grid()
	st := m.Player.State()
	sym := m.Theme.Symbols
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())

	names := make(map[string]string)
	for _, s := range m.Player.Sounds() {
		names[s.ID] = s.Name
	}

	var lines []string
	for r := 0; r < g.Rows(); r++ {
		rowStyle := lipgloss.NewStyle().Foreground(m.Theme.Row(r, g.Rows()))
		var line strings.Builder

		label := "-"
		if pad, ok := g.Pad(r, 0); ok && pad.SoundID != "" {
			label = names[pad.SoundID]
		}
		line.WriteString(dimStyle.Render(fmt.Sprintf("%-12.12s", label)))

		for c := 0; c < g.Cols(); c++ {
			pad, _ := g.Pad(r, c)
			cursor := r == m.cursorRow && c == m.cursorCol
			playhead := st.Playing && c == st.Column

			var ch rune
			style := rowStyle
			switch {
			case cursor && playhead:
				ch = sym.CursorPlayhead
				style = cursorStyle
			case cursor && pad.Active:
				ch = sym.CursorOn
				style = cursorStyle
			case cursor && pad.SoundID != "":
				ch = sym.CursorOff
				style = cursorStyle
			case cursor:
				ch = sym.CursorNone
				style = cursorStyle
			case playhead && pad.Active:
				ch = sym.PadPlayhead
				style = playStyle
			case pad.Active:
				ch = sym.PadOn
			case pad.SoundID != "":
				ch = sym.PadOff
			default:
				ch = sym.PadNone
				style = dimStyle
			}
			line.WriteString(" ")
			line.WriteString(style.Render(string(ch)))
		}
		lines = append(lines, line.String())
	}

	selected := "no sounds loaded"
	if s, ok := m.selectedSound(); ok {
		selected = fmt.Sprintf("sound %d/%d: %s", min(m.soundIdx, len(m.Player.Sounds())-1)+1, len(m.Player.Sounds()), s.Name)
		if s.Synthetic {
			selected += fmt.Sprintf(" (tone %.0fHz)", s.ToneHz)
		}
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(m.Theme.FG()).Render(selected))

	if m.Surface != nil && m.Surface.Controller() != nil {
		dark := m.Theme.Palette.Lookup(theme.RoleSurface)
		lines = append(lines, "", widgets.RenderLaunchpad(m.Surface.RenderLEDs(), dark))
		if m.help.ShowAll {
			for _, b := range playback.Buttons() {
				lines = append(lines, widgets.RenderLegendItem(b.Color, b.Name, b.Desc))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewFeed() string {
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	selStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())

	if len(m.posts) == 0 {
		return dimStyle.Render("Nothing published yet. Press P on the grid to publish a beat.")
	}

	var lines []string
	for i, p := range m.posts {
		liked := " "
		if p.HasLiked {
			liked = "♥"
		}
		line := fmt.Sprintf("%s %-12.12s %3.0fbpm %dx%d  %s%d  %d comments  %s",
			liked, p.AuthorName, p.BPM, p.Grid.Rows(), p.Grid.Cols(),
			"likes:", p.Likes, len(p.Comments), p.CreatedAt.Format("Jan 2 15:04"))
		if p.IsRemix() {
			line += "  remix of " + p.OriginalAuthorName
		}
		if i == m.postIdx {
			lines = append(lines, selStyle.Render("> "+line))
			for _, c := range p.Comments {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("    %s: %s", c.AuthorName, c.Text)))
			}
		} else {
			lines = append(lines, "  "+line)
		}
	}

	if m.view == viewComment {
		lines = append(lines, "", m.comment.View())
	}
	return strings.Join(lines, "\n")
}
