package chikuclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/command"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
)

// Client resolves commands against a remote backend.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

// New creates a client. It never retries.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL)
	rc.SetRetryCount(0)
	rc.SetHeader("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{cfg: cfg, http: rc, logger: logger}
}

// Resolve posts req and converts the reply into a result. Transport
// failures become server errors so callers see one failure shape.
func (c *Client) Resolve(ctx context.Context, req media.Request) media.Result {
	var body protocol.CommandResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(protocol.NewCommandRequest(req)).
		Post(c.cfg.Path)
	if err != nil {
		c.logger.Warn("chiku backend unreachable",
			zap.String("base_url", c.cfg.BaseURL),
			zap.String("command", req.Command),
			zap.Error(err),
		)
		return media.ServerError()
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		c.logger.Warn("chiku backend returned invalid json",
			zap.Int("status", resp.StatusCode()),
			zap.Error(err),
		)
		return media.Failure(media.ClassFromStatus(resp.StatusCode()), http.StatusText(resp.StatusCode()))
	}
	kind, subType := expectation(req.Command)
	return body.Result(kind, subType, resp.StatusCode())
}

// Commands fetches the command table the backend serves.
func (c *Client) Commands(ctx context.Context) ([]protocol.CommandInfo, error) {
	var list protocol.CommandList
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		Get("/commands")
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list commands: %w", statusError(resp.StatusCode()))
	}
	return list.Commands, nil
}

// Health reports whether the backend answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError(resp.StatusCode())
	}
	return nil
}

func statusError(status int) error {
	return errors.New(strings.ToLower(http.StatusText(status)))
}

func expectation(id string) (media.Kind, string) {
	cmd, ok := command.Lookup(id)
	if !ok {
		return media.KindImage, ""
	}
	return cmd.Kind, cmd.SubType()
}
