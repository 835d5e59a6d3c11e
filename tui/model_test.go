package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beatpad/config"
	"beatpad/feed"
	"beatpad/playback"
	"beatpad/sequencer"
	"beatpad/sound"
	"beatpad/theme"
)

func press(k string) tea.KeyMsg {
	switch k {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func newTestModel(t *testing.T) (Model, *feed.Store) {
	t.Helper()
	reg := sound.NewRegistry(sound.NewHeadlessOutput())
	if err := reg.Open(); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Load(context.Background(), "", "Kick"); err != nil {
		t.Fatal(err)
	}
	clock := sequencer.NewClock(reg, sequencer.WithScheduler(sequencer.NewManualScheduler(time.Unix(0, 0))))
	p := playback.New(reg, clock, nil)
	t.Cleanup(p.Close)

	store := feed.NewStore(t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Author.Name = "Sam"
	m := NewModel(context.Background(), p, playback.NewSurface(p), nil, store, cfg, theme.New(nil))
	return m, store
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestGridEditingKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = send(t, m, press("l"))
	m, _ = send(t, m, press(" "))
	if pad, _ := m.Player.Grid().Pad(0, 1); !pad.Active {
		t.Fatal("space did not toggle the pad under the cursor")
	}

	m, _ = send(t, m, press("+"))
	if m.Player.Tempo() != 125 {
		t.Errorf("tempo = %v, want 125", m.Player.Tempo())
	}

	m, _ = send(t, m, press("n"))
	if m.Player.Grid().Cols() != 5 {
		t.Errorf("cols = %d, want 5", m.Player.Grid().Cols())
	}

	// Cursor stays on the grid when it shrinks
	for i := 0; i < 10; i++ {
		m, _ = send(t, m, press("l"))
	}
	m, _ = send(t, m, press("N"))
	m, _ = send(t, m, press("N"))
	if m.cursorCol != 2 {
		t.Errorf("cursor col = %d, want 2", m.cursorCol)
	}

	m, _ = send(t, m, press("p"))
	if !m.Player.Playing() {
		t.Error("p did not start playback")
	}
}

func TestErrorsBecomeNotices(t *testing.T) {
	m, _ := newTestModel(t)

	m.Player.Close()
	m, cmd := send(t, m, press("p"))
	if !m.noticeErr || m.notice == "" {
		t.Fatal("starting without audio did not raise a notice")
	}
	if cmd == nil {
		t.Fatal("notice has no expiry")
	}
	seq := m.noticeSeq
	m, _ = send(t, m, noticeExpiredMsg{seq: seq})
	if m.notice != "" {
		t.Error("notice did not expire")
	}
}

func TestPublishFeedAndRemix(t *testing.T) {
	m, store := newTestModel(t)

	m, _ = send(t, m, press(" "))
	m, _ = send(t, m, press("P"))
	posts, err := store.List()
	if err != nil || len(posts) != 1 {
		t.Fatalf("after publish: %d posts, %v", len(posts), err)
	}
	if posts[0].AuthorName != "Sam" || posts[0].Grid.ActiveCount() != 1 {
		t.Errorf("post = %+v", posts[0])
	}

	m, cmd := send(t, m, press("f"))
	if m.view != viewFeed || cmd == nil {
		t.Fatal("f did not open the feed")
	}
	m, _ = send(t, m, cmd())
	if len(m.posts) != 1 {
		t.Fatalf("feed shows %d posts", len(m.posts))
	}

	m, cmd = send(t, m, press("L"))
	m, _ = send(t, m, cmd())
	if !m.posts[0].HasLiked || m.posts[0].Likes != 1 {
		t.Errorf("like not applied: %+v", m.posts[0])
	}

	m, _ = send(t, m, press("c"))
	for _, r := range "nice" {
		m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, cmd = send(t, m, press("enter"))
	m, _ = send(t, m, cmd())
	if len(m.posts[0].Comments) != 1 || m.posts[0].Comments[0].Text != "nice" {
		t.Errorf("comment not stored: %+v", m.posts[0].Comments)
	}

	m, _ = send(t, m, press("enter"))
	if m.view != viewGrid || m.remixOf == nil {
		t.Fatal("enter did not load the post for remixing")
	}
	m, _ = send(t, m, press("P"))
	posts, _ = store.List()
	remixes := 0
	for _, p := range posts {
		if p.IsRemix() {
			remixes++
			if p.OriginalAuthorName != "Sam" {
				t.Errorf("remix credits %q", p.OriginalAuthorName)
			}
		}
	}
	if len(posts) != 2 || remixes != 1 {
		t.Errorf("posts=%d remixes=%d, want 2 and 1", len(posts), remixes)
	}
}

func TestViewRenders(t *testing.T) {
	m, _ := newTestModel(t)
	if m.View() == "" {
		t.Error("empty grid view")
	}
	m.view = viewFeed
	if m.View() == "" {
		t.Error("empty feed view")
	}
}
