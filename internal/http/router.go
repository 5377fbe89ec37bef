package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "github.com/saker-ai/chiku/internal/config"
	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/protocol"
	"github.com/saker-ai/chiku/internal/ws"
)

// NewRouter builds the backend endpoint.
func NewRouter(cfg appconfig.Config, resolver media.Resolver, wsHandler *ws.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(requestLogger(logger))
	router.Use(cors(cfg.CORS))
	router.Use(recovery(logger))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "persona": cfg.Persona.Name}
		if wsHandler != nil {
			body["sessions"] = wsHandler.SessionCount()
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/commands", func(c *gin.Context) {
		c.JSON(http.StatusOK, protocol.NewCommandList())
	})

	handle := commandHandler(resolver, logger)
	router.POST("/", handle)
	router.POST("/chiku-commands", handle)

	if wsHandler != nil {
		router.GET("/ws", func(c *gin.Context) {
			wsHandler.Handle(c.Writer, c.Request)
		})
	}

	return router
}

func commandHandler(resolver media.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req protocol.CommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("invalid command body", zap.Error(err))
			status, body := protocol.NewCommandResponse(media.ServerError())
			c.JSON(status, body)
			return
		}

		result := resolver.Resolve(c.Request.Context(), req.MediaRequest())
		status, body := protocol.NewCommandResponse(result)
		if !result.OK() {
			logger.Info("command failed",
				zap.String("command", req.Command),
				zap.Stringer("class", result.Class()),
				zap.String("error", result.Message()),
			)
		}
		c.JSON(status, body)
	}
}

// cors attaches the access-control headers to every response and answers
// preflight requests directly.
func cors(cfg appconfig.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", cfg.AllowOrigin)
		c.Header("Access-Control-Allow-Headers", cfg.AllowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("handler panicked",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", err),
		)
		status, body := protocol.NewCommandResponse(media.ServerError())
		c.AbortWithStatusJSON(status, body)
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
