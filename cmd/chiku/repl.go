package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/command"
	"github.com/saker-ai/chiku/internal/conversation"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/playback"
)

type player func(ctx context.Context, payload media.Payload, title string) error

// repl turns typed lines into conversation sends and local commands.
type repl struct {
	persona string
	conv    *conversation.Conversation
	saver   *playback.Saver
	catalog catalogFunc
	input   command.Input
	out     io.Writer
	play    player
	// stage pre-fills the next prompt with a fill-mode command.
	stage  func(text string)
	logger *zap.Logger
}

// handle processes one line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ":") {
		return r.local(ctx, line)
	}

	classification := r.input.Change(line)
	if classification.IsCommand && !strings.Contains(line, " ") {
		if cmd, ok := command.Lookup(classification.Prefix); ok {
			if cmd.RequiresArgument {
				r.choose(ctx, cmd)
				return false
			}
		} else {
			switch len(classification.Candidates) {
			case 0:
			case 1:
				r.choose(ctx, classification.Candidates[0])
				return false
			default:
				r.printCandidates(classification.Candidates)
				r.input.Key(command.KeyEscape)
				return false
			}
		}
	}

	if msg, ok := r.input.Submit(); ok {
		r.send(ctx, msg)
	}
	return false
}

func (r *repl) choose(ctx context.Context, cmd command.Command) {
	action, msg, send := r.input.Choose(cmd)
	if send {
		r.send(ctx, msg)
		return
	}
	fmt.Fprintf(r.out, "%s needs %s\n", cmd.Text(), cmd.ArgumentName)
	if r.stage != nil {
		r.stage(action.Text)
	}
	r.input.Submit()
}

func (r *repl) send(ctx context.Context, text string) {
	reply, err := r.conv.Send(ctx, text)
	if err != nil {
		fmt.Fprintf(r.out, "! %v\n", err)
		return
	}
	if reply == nil {
		fmt.Fprintf(r.out, "%s: (only slash commands get a reply here, try /neko)\n", r.persona)
		return
	}
	r.printReply(*reply)
}

func (r *repl) printReply(msg conversation.Message) {
	n := r.indexOf(msg.ID)
	switch {
	case msg.Failed():
		fmt.Fprintf(r.out, "%s #%d ✗ %s  (:retry %d)\n", r.persona, n, msg.Error, n)
	case msg.Media != nil && msg.Media.Kind == media.KindAudio:
		d := playback.ProbeDuration(*msg.Media)
		fmt.Fprintf(r.out, "%s #%d ♪ \"%s\" %s  (:play %d, :save %d)\n",
			r.persona, n, msg.Text, playback.FormatDuration(d.Seconds()), n, n)
	case msg.Media != nil:
		path, ok := r.saver.Save(*msg.Media)
		if !ok {
			fmt.Fprintf(r.out, "%s #%d [%s %s, %s] not saved  (:save %d)\n",
				r.persona, n, msg.Media.SubType, msg.Media.MimeType, humanBytes(msg.Media.Size), n)
			return
		}
		fmt.Fprintf(r.out, "%s #%d [%s %s, %s] %s\n",
			r.persona, n, msg.Media.SubType, msg.Media.MimeType, humanBytes(msg.Media.Size), path)
	default:
		fmt.Fprintf(r.out, "%s: %s\n", r.persona, msg.Text)
	}
}

func (r *repl) local(ctx context.Context, line string) bool {
	verb, arg, _ := strings.Cut(line, " ")
	switch verb {
	case ":q", ":quit", ":exit":
		return true
	case ":help", ":h":
		r.printHelp(ctx)
	case ":list", ":ls":
		r.printList()
	case ":retry":
		msg, ok := r.lookup(arg)
		if !ok {
			return false
		}
		reply, err := r.conv.Retry(ctx, msg.ID)
		if err != nil {
			fmt.Fprintf(r.out, "! %v\n", err)
			return false
		}
		r.printReply(*reply)
	case ":save":
		msg, ok := r.lookup(arg)
		if !ok || msg.Media == nil {
			fmt.Fprintln(r.out, "! nothing to save")
			return false
		}
		if path, ok := r.saver.Save(*msg.Media); ok {
			fmt.Fprintf(r.out, "saved %s\n", path)
		} else {
			fmt.Fprintln(r.out, "! save failed")
		}
	case ":play":
		msg, ok := r.lookup(arg)
		if !ok || msg.Media == nil || msg.Media.Kind != media.KindAudio {
			fmt.Fprintln(r.out, "! not an audio message")
			return false
		}
		if r.play == nil {
			return false
		}
		if err := r.play(ctx, *msg.Media, msg.Text); err != nil {
			r.logger.Warn("player failed", zap.Error(err))
			fmt.Fprintf(r.out, "! %v\n", err)
		}
	default:
		fmt.Fprintf(r.out, "! unknown command %s, try :help\n", verb)
	}
	return false
}

func (r *repl) lookup(arg string) (conversation.Message, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	msgs := r.conv.Messages()
	if err != nil || n < 1 || n > len(msgs) {
		fmt.Fprintf(r.out, "! no message %q\n", arg)
		return conversation.Message{}, false
	}
	return msgs[n-1], true
}

func (r *repl) indexOf(id string) int {
	for i, msg := range r.conv.Messages() {
		if msg.ID == id {
			return i + 1
		}
	}
	return 0
}

func (r *repl) printCandidates(cmds []command.Command) {
	for _, cmd := range cmds {
		fmt.Fprintf(r.out, "  %-10s %s\n", cmd.Text(), cmd.Description)
	}
}

func (r *repl) printHelp(ctx context.Context) {
	fmt.Fprintln(r.out, "commands (tab completes):")
	r.printCatalog(ctx)
	fmt.Fprintln(r.out, "  :list      show messages")
	fmt.Fprintln(r.out, "  :play N    play audio message N")
	fmt.Fprintln(r.out, "  :save N    save media of message N")
	fmt.Fprintln(r.out, "  :retry N   retry failed message N")
	fmt.Fprintln(r.out, "  :quit")
}

// printCatalog lists what the backend serves, or the local table when
// commands resolve in-process or the backend cannot list them.
func (r *repl) printCatalog(ctx context.Context) {
	if r.catalog == nil {
		r.printCandidates(command.Table())
		return
	}
	infos, err := r.catalog(ctx)
	if err != nil {
		r.logger.Warn("list backend commands failed", zap.Error(err))
		r.printCandidates(command.Table())
		return
	}
	for _, info := range infos {
		suffix := ""
		if info.Instant {
			suffix = " (sends on select)"
		}
		fmt.Fprintf(r.out, "  %-10s %s%s\n", command.Trigger+info.ID, info.Description, suffix)
	}
}

func (r *repl) printList() {
	for i, msg := range r.conv.Messages() {
		status := ""
		switch {
		case msg.Failed():
			status = " ✗ " + msg.Error
		case msg.Status == conversation.StatusPending:
			status = " …"
		case msg.Media != nil:
			status = fmt.Sprintf(" [%s %s]", msg.Media.Kind, msg.Media.SubType)
		}
		fmt.Fprintf(r.out, "#%d %-9s %s%s\n", i+1, msg.Role, msg.Text, status)
	}
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
