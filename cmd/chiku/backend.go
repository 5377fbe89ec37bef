package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/chiku/internal/config"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
	"github.com/saker-ai/chiku/internal/proxy"
	"github.com/saker-ai/chiku/pkg/chikuclient"
)

const healthTimeout = 5 * time.Second

type catalogFunc func(ctx context.Context) ([]protocol.CommandInfo, error)

// backend is where commands resolve: in-process, over HTTP or over /ws.
type backend struct {
	resolver media.Resolver
	// catalog lists the commands a remote backend serves; nil when local.
	catalog catalogFunc
	close   func()
}

type connectOptions struct {
	BaseURL string
	Local   bool
	Stream  bool
}

// connect checks a remote backend's health before the prompt opens.
func connect(ctx context.Context, cfg appconfig.Config, opts connectOptions, logger *zap.Logger) (backend, error) {
	if opts.Local {
		return backend{resolver: proxy.NewFromConfig(cfg.Providers, logger), close: func() {}}, nil
	}

	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = cfg.Client.BackendURL
	}
	clientCfg := chikuclient.Config{
		BaseURL:   base,
		UserAgent: cfg.Providers.UserAgent,
	}
	client := chikuclient.New(clientCfg, logger)

	checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := client.Health(checkCtx); err != nil {
		return backend{}, fmt.Errorf("backend %s unreachable: %w", base, err)
	}

	b := backend{resolver: client, catalog: client.Commands, close: func() {}}
	if !opts.Stream {
		return b, nil
	}

	s, err := chikuclient.Dial(ctx, clientCfg, logger)
	if err != nil {
		return backend{}, fmt.Errorf("open stream to %s: %w", base, err)
	}
	b.resolver = s
	b.close = func() {
		_ = s.Close()
	}
	return b, nil
}
