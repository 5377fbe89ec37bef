package command

import "strings"

// Key is an input-box key event relevant to command mode.
type Key int

const (
	KeyEscape Key = iota
	KeyEnter
)

// Input models the chat input box: its text and whether the command list is open.
type Input struct {
	value    string
	showList bool
	current  Classification
}

// Value returns the current input text.
func (in *Input) Value() string {
	return in.value
}

// PopupVisible reports whether the command list renders right now.
func (in *Input) PopupVisible() bool {
	return in.showList && in.current.Popup()
}

// Candidates returns the commands listed in the popup.
func (in *Input) Candidates() []Command {
	if !in.PopupVisible() {
		return nil
	}
	return in.current.Candidates
}

// Change replaces the input text and reclassifies it.
func (in *Input) Change(value string) Classification {
	in.value = value
	in.current = Classify(value)
	in.showList = in.current.IsCommand
	return in.current
}

// Key handles escape (closes the list) and enter (submits).
func (in *Input) Key(k Key) (string, bool) {
	switch k {
	case KeyEscape:
		in.showList = false
	case KeyEnter:
		return in.Submit()
	}
	return "", false
}

// Choose applies the dispatch action of cmd. For instant commands the returned
// message must be sent by the caller.
func (in *Input) Choose(cmd Command) (Action, string, bool) {
	action := Select(cmd)
	in.showList = false
	if action.Kind == ActionSend {
		in.value = ""
		in.current = Classification{}
		return action, action.Text, true
	}
	in.value = action.Text
	in.current = Classify(in.value)
	return action, "", false
}

// Submit returns the trimmed message and clears the input; blank input sends nothing.
func (in *Input) Submit() (string, bool) {
	msg := strings.TrimSpace(in.value)
	if msg == "" {
		return "", false
	}
	in.value = ""
	in.showList = false
	in.current = Classification{}
	return msg, true
}
