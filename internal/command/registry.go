// Package command implements the slash command table, the input classifier
// that drives the command popup, and the parser that turns a submitted
// message into a media request.
package command

import (
	"slices"
	"strings"

	"github.com/saker-ai/chiku/internal/media"
)

// Trigger is the character that puts the input box into command mode.
const Trigger = "/"

// DispatchMode decides what selecting a command does.
type DispatchMode int

const (
	// DispatchFill stages "<command> " in the input for the user to finish.
	DispatchFill DispatchMode = iota
	// DispatchInstant sends the bare command immediately.
	DispatchInstant
)

// String returns the mode name.
func (m DispatchMode) String() string {
	if m == DispatchInstant {
		return "instant"
	}
	return "fill"
}

// Command is one entry of the command table.
type Command struct {
	// ID is the wire identifier sent to the backend (e.g. "imagegen").
	ID string

	// Label is the display name (e.g. "ImageGen") and the subject of error texts.
	Label string

	Description string

	// ArgumentName is the request body field carrying the argument ("prompt", "text").
	ArgumentName     string
	RequiresArgument bool
	Mode             DispatchMode
	Kind             media.Kind
}

// Text is the message form of the command, e.g. "/tts".
func (c Command) Text() string {
	return Trigger + c.ID
}

// SubType is the result tag for media produced by this command.
func (c Command) SubType() string {
	if c.ID == IDImageGen {
		return media.SubTypeGenerated
	}
	return c.ID
}

// Command identifiers.
const (
	IDImageGen = "imagegen"
	IDTTS      = "tts"
	IDNeko     = "neko"
	IDWaifu    = "waifu"
	IDHug      = "hug"
	IDPat      = "pat"
	IDKiss     = "kiss"
	IDWave     = "wave"
	IDSmile    = "smile"
	IDBlush    = "blush"
	IDPoke     = "poke"
	IDDance    = "dance"
)

// table is in declaration order; popup candidates keep this order.
var table = []Command{
	{ID: IDImageGen, Label: "ImageGen", Description: "Generate an image from your prompt", ArgumentName: "prompt", RequiresArgument: true, Mode: DispatchFill, Kind: media.KindImage},
	{ID: IDTTS, Label: "TTS", Description: "Convert text to speech audio", ArgumentName: "text", RequiresArgument: true, Mode: DispatchFill, Kind: media.KindAudio},
	reaction(IDNeko, "Neko", "Get a random cute neko image"),
	reaction(IDWaifu, "Waifu", "Get a random waifu image"),
	reaction(IDHug, IDHug, "Get a cute hug reaction GIF"),
	reaction(IDPat, IDPat, "Get a headpat reaction GIF"),
	reaction(IDKiss, IDKiss, "Get a kiss reaction GIF"),
	reaction(IDWave, IDWave, "Get a waving reaction GIF"),
	reaction(IDSmile, IDSmile, "Get a happy smiling GIF"),
	reaction(IDBlush, IDBlush, "Get a cute blushing GIF"),
	reaction(IDPoke, IDPoke, "Get a poking reaction GIF"),
	reaction(IDDance, IDDance, "Get a dancing anime GIF"),
}

func reaction(id, label, description string) Command {
	return Command{ID: id, Label: label, Description: description, Mode: DispatchInstant, Kind: media.KindImage}
}

// Table returns a copy of the command table in declaration order.
func Table() []Command {
	return slices.Clone(table)
}

// Lookup finds a command by identifier, case-insensitively. A leading trigger is ignored.
func Lookup(id string) (Command, bool) {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), Trigger))
	for _, cmd := range table {
		if cmd.ID == id {
			return cmd, true
		}
	}
	return Command{}, false
}

// IsReaction reports whether the command fetches from the keyed reaction endpoint.
func (c Command) IsReaction() bool {
	return c.Mode == DispatchInstant
}
