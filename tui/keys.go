package tui

import "github.com/charmbracelet/bubbles/key"

// Key builds a binding whose help text shows the first key
func Key(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

type keyMap struct {
	Up, Down, Left, Right key.Binding

	Toggle    key.Binding
	Assign    key.Binding
	PrevSound key.Binding
	NextSound key.Binding
	Audition  key.Binding

	Play      key.Binding
	Faster    key.Binding
	Slower    key.Binding
	AddCol    key.Binding
	RemoveCol key.Binding
	AddRow    key.Binding
	RemoveRow key.Binding
	Clear     key.Binding

	Record  key.Binding
	Audio   key.Binding
	Publish key.Binding
	Feed    key.Binding

	// Feed view
	Open    key.Binding
	Like    key.Binding
	Comment key.Binding
	Delete  key.Binding
	Back    key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:    Key("up", "up", "k"),
		Down:  Key("down", "down", "j"),
		Left:  Key("left", "left", "h"),
		Right: Key("right", "right", "l"),

		Toggle:    Key("toggle pad", "space", " ", "enter"),
		Assign:    Key("assign sound", "a"),
		PrevSound: Key("prev sound", "["),
		NextSound: Key("next sound", "]"),
		Audition:  Key("audition", "s"),

		Play:      Key("play/stop", "p"),
		Faster:    Key("tempo +5", "+", "="),
		Slower:    Key("tempo -5", "-", "_"),
		AddCol:    Key("add column", "n"),
		RemoveCol: Key("remove column", "N"),
		AddRow:    Key("add row", "m"),
		RemoveRow: Key("remove row", "M"),
		Clear:     Key("clear grid", "x"),

		Record:  Key("record/stop", "r"),
		Audio:   Key("enable audio", "i"),
		Publish: Key("publish", "P"),
		Feed:    Key("feed", "f"),

		Open:    Key("remix", "enter"),
		Like:    Key("like", "L"),
		Comment: Key("comment", "c"),
		Delete:  Key("delete", "d"),
		Back:    Key("back", "esc", "f"),

		Help: Key("help", "?"),
		Quit: Key("quit", "q", "ctrl+c"),
	}
}

// gridKeys is the help.KeyMap of the beat grid view
type gridKeys struct{ keyMap }

func (k gridKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Assign, k.NextSound, k.Play, k.Faster, k.Record, k.Publish, k.Feed, k.Help, k.Quit}
}

func (k gridKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Toggle},
		{k.Assign, k.PrevSound, k.NextSound, k.Audition, k.Record},
		{k.Play, k.Faster, k.Slower, k.Audio},
		{k.AddCol, k.RemoveCol, k.AddRow, k.RemoveRow, k.Clear},
		{k.Publish, k.Feed, k.Help, k.Quit},
	}
}

// feedKeys is the help.KeyMap of the feed view
type feedKeys struct{ keyMap }

func (k feedKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Like, k.Comment, k.Delete, k.Back, k.Quit}
}

func (k feedKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
