package command

import "strings"

// Completer completes command names for line editors. Its Do method matches
// the AutoCompleter interface of github.com/chzyer/readline.
type Completer struct{}

// Do returns the completion suffixes for the word before pos.
func (Completer) Do(line []rune, pos int) ([][]rune, int) {
	if pos > len(line) {
		pos = len(line)
	}
	typed := string(line[:pos])
	if strings.ContainsAny(typed, " \t") {
		return nil, 0
	}
	classification := Classify(typed)
	if !classification.Popup() {
		return nil, 0
	}

	typedLen := len([]rune(typed))
	out := make([][]rune, 0, len(classification.Candidates))
	for _, cmd := range classification.Candidates {
		full := []rune(Select(cmd).Text)
		out = append(out, full[typedLen:])
	}
	return out, typedLen
}
