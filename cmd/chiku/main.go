package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/command"
	appconfig "github.com/saker-ai/chiku/internal/config"
	"github.com/saker-ai/chiku/internal/conversation"
	"github.com/saker-ai/chiku/internal/logger"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/playback"
	"github.com/saker-ai/chiku/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	backendURL := flag.String("backend", "", "backend base URL (defaults to client.backend_url)")
	local := flag.Bool("local", false, "resolve commands in-process instead of calling a backend")
	stream := flag.Bool("stream", false, "send commands over the websocket endpoint")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := cliLogger(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx, cfg, connectOptions{BaseURL: *backendURL, Local: *local, Stream: *stream}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, cfg, b, log)
	b.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliLogger keeps stdout for the prompt: logs go to the file sink or nowhere.
func cliLogger(cfg logger.Config) *zap.Logger {
	if !cfg.File.Enabled {
		return zap.NewNop()
	}
	cfg.Stdout = false
	return logger.MustNew(cfg)
}

func run(ctx context.Context, cfg appconfig.Config, b backend, log *zap.Logger) error {
	persona := cfg.Persona.Name
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		AutoComplete:    command.Completer{},
		HistoryFile:     filepath.Join(os.TempDir(), "chiku.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	saver := playback.NewSaver(cfg.Client.DownloadDir, log)
	r := &repl{
		persona: persona,
		conv: conversation.New(conversation.Options{
			Resolver: b.resolver,
			Greeting: cfg.Persona.Greeting,
			Logger:   log,
		}),
		saver:   saver,
		catalog: b.catalog,
		out:     rl.Stdout(),
		play: func(ctx context.Context, payload media.Payload, title string) error {
			return tui.Play(ctx, payload, title, saver, log)
		},
		stage: func(text string) {
			rl.WriteStdin([]byte(text))
		},
		logger: log,
	}

	for _, msg := range r.conv.Messages() {
		fmt.Fprintf(r.out, "%s: %s\n", persona, msg.Text)
	}
	fmt.Fprintln(r.out, "type / for commands, :help for more")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
}
