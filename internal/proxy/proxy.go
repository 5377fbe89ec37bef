// Package proxy resolves media requests against the upstream provider chains.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/chiku/internal/config"
	"github.com/saker-ai/chiku/internal/command"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/provider"
)

// Proxy resolves one request at a time per call. It keeps no state between
// calls: no cache, no retries beyond the configured chain order.
type Proxy struct {
	chains map[string][]provider.Provider
	logger *zap.Logger
}

// New builds a proxy over explicit provider chains keyed by command id.
func New(chains map[string][]provider.Provider, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{chains: chains, logger: logger}
}

// NewFromConfig wires the default chains for every command in the table.
func NewFromConfig(cfg appconfig.ProvidersConfig, logger *zap.Logger) *Proxy {
	fetcher := provider.NewFetcher(provider.FetcherOptions{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	return New(DefaultChains(cfg, fetcher), logger)
}

// DefaultChains returns the provider chain of each command. Image generation
// prefers the direct provider and falls back to the hosted list provider.
func DefaultChains(cfg appconfig.ProvidersConfig, fetcher *provider.Fetcher) map[string][]provider.Provider {
	chains := map[string][]provider.Provider{
		command.IDImageGen: {
			&provider.DirectImage{URL: cfg.ImagePrimaryURL, Fetcher: fetcher},
			&provider.HostedImageList{URL: cfg.ImageFallbackURL, Fetcher: fetcher},
		},
		command.IDTTS: {
			&provider.Speech{URL: cfg.TTSURL, Voice: cfg.TTSVoice, Fetcher: fetcher},
		},
	}
	for _, cmd := range command.Table() {
		if !cmd.IsReaction() {
			continue
		}
		defaultMime := "image/gif"
		if cmd.ID == command.IDNeko || cmd.ID == command.IDWaifu {
			defaultMime = "image/png"
		}
		chains[cmd.ID] = []provider.Provider{&provider.Reaction{
			BaseURL:     cfg.NekosURL,
			Key:         cmd.ID,
			Label:       cmd.Label,
			DefaultMime: defaultMime,
			Fetcher:     fetcher,
		}}
	}
	return chains
}

// Resolve fetches the media for req. Providers of a chain are tried strictly
// one after another; the first success wins.
func (p *Proxy) Resolve(ctx context.Context, req media.Request) (result media.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("media resolve panicked",
				zap.String("command", req.Command),
				zap.Any("panic", r),
			)
			result = media.ServerError()
		}
	}()

	cmd, ok := command.Lookup(req.Command)
	if !ok {
		return media.ClientError("Unknown command")
	}

	arg := strings.TrimSpace(req.Argument)
	if cmd.RequiresArgument && arg == "" {
		return media.ClientError("Missing " + cmd.ArgumentName)
	}

	chain := p.chains[cmd.ID]
	if len(chain) == 0 {
		p.logger.Error("no provider configured", zap.String("command", cmd.ID))
		return media.UpstreamError(fmt.Sprintf("%s fetch failed", cmd.Label))
	}

	var lastErr error
	for i, prov := range chain {
		blob, err := prov.Attempt(ctx, arg)
		if err == nil && blob != nil {
			p.logger.Info("media resolved",
				zap.String("command", cmd.ID),
				zap.String("provider", prov.Name()),
				zap.String("content_type", blob.ContentType),
				zap.Int("bytes", len(blob.Data)),
			)
			return media.Success(media.NewPayload(cmd.Kind, cmd.SubType(), blob.ContentType, blob.Data))
		}
		if err == nil {
			err = errors.New("provider returned no data")
		}
		lastErr = err
		if i < len(chain)-1 {
			p.logger.Warn("provider failed; falling back",
				zap.String("command", cmd.ID),
				zap.String("provider", prov.Name()),
				zap.String("next", chain[i+1].Name()),
				zap.Error(err),
			)
		}
	}

	p.logger.Error("media upstream failed", zap.String("command", cmd.ID), zap.Error(lastErr))
	return media.UpstreamError(userMessage(lastErr, cmd))
}

func userMessage(err error, cmd command.Command) string {
	var perr *provider.Error
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return fmt.Sprintf("%s fetch failed", cmd.Label)
}
