package command

import (
	"strings"

	"github.com/saker-ai/chiku/internal/media"
)

// Classification is what the input box should show for the current text.
type Classification struct {
	// IsCommand is true when the input begins with the trigger.
	IsCommand bool

	// Prefix is the lowercased text typed after the trigger.
	Prefix string

	// Candidates are the matching commands in table order.
	Candidates []Command
}

// Popup reports whether the command list should render. An empty candidate
// set renders nothing.
func (c Classification) Popup() bool {
	return c.IsCommand && len(c.Candidates) > 0
}

// Classify decides whether raw is a plain message or a command prefix.
func Classify(raw string) Classification {
	rest, ok := strings.CutPrefix(raw, Trigger)
	if !ok {
		return Classification{}
	}

	prefix := strings.ToLower(rest)
	result := Classification{IsCommand: true, Prefix: prefix}
	for _, cmd := range table {
		if strings.HasPrefix(cmd.ID, prefix) {
			result.Candidates = append(result.Candidates, cmd)
		}
	}
	return result
}

// ActionKind says what happens after a command is picked from the list.
type ActionKind int

const (
	// ActionStage replaces the input with Text and waits for the user.
	ActionStage ActionKind = iota
	// ActionSend sends Text as the whole message right away.
	ActionSend
)

// Action is the outcome of selecting a command.
type Action struct {
	Kind ActionKind
	Text string
}

// Select maps a chosen command to its dispatch action.
func Select(cmd Command) Action {
	if cmd.Mode == DispatchInstant {
		return Action{Kind: ActionSend, Text: cmd.Text()}
	}
	return Action{Kind: ActionStage, Text: cmd.Text() + " "}
}

// Parse turns a submitted message into a media request. Messages that do not
// start with a known command return false and are plain chat.
func Parse(text string) (media.Request, bool) {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, Trigger)
	if !ok {
		return media.Request{}, false
	}

	name, arg, _ := strings.Cut(rest, " ")
	cmd, ok := Lookup(name)
	if !ok {
		return media.Request{}, false
	}
	return media.Request{Command: cmd.ID, Argument: strings.TrimSpace(arg)}, true
}
