// Package runtime assembles the Chiku backend: config, logger, media proxy,
// HTTP router and websocket channel.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/chiku/internal/config"
	apphttp "github.com/saker-ai/chiku/internal/http"
	applogger "github.com/saker-ai/chiku/internal/logger"
	"github.com/saker-ai/chiku/internal/proxy"
	"github.com/saker-ai/chiku/internal/ws"
)

// Server is a configured backend ready to listen.
type Server struct {
	cfg    appconfig.Config
	logger *zap.Logger
	server *http.Server
	proxy  *proxy.Proxy
}

// New loads the config at configPath (or the default search) and builds a server.
func New(configPath string) (*Server, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load chiku config: %w", err)
	}

	logger := applogger.MustNew(cfg.Log)
	logger.Info("chiku logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
	)
	logger.Info("chiku config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("persona", cfg.Persona.Name),
	)
	return NewWithConfig(cfg, logger), nil
}

// NewWithConfig builds a server from an already loaded config.
func NewWithConfig(cfg appconfig.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mediaProxy := proxy.NewFromConfig(cfg.Providers, logger.Named("proxy"))
	wsHandler := ws.NewHandler(logger.Named("ws"), mediaProxy)
	router := apphttp.NewRouter(cfg, mediaProxy, wsHandler, logger)

	return &Server{
		cfg:    cfg,
		logger: logger,
		proxy:  mediaProxy,
		server: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: router,
		},
	}
}

// Run blocks serving until Shutdown is called.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	if s == nil || s.server == nil {
		return nil
	}
	return ignoreServerClosed(serve(s.server, ln, s.cfg, s.logger))
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Handler
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger {
	if s == nil || s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Proxy returns the in-process media proxy.
func (s *Server) Proxy() *proxy.Proxy {
	if s == nil {
		return nil
	}
	return s.proxy
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return ignoreServerClosed(s.server.Shutdown(ctx))
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
