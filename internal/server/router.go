package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"telemetry-broker/internal/handler"
	"telemetry-broker/internal/hub"
	"telemetry-broker/internal/ingest"
	"telemetry-broker/internal/middleware"
)

// Store is everything the HTTP surface reads or writes.
type Store interface {
	ingest.Store
	handler.SettingsReader
}

type Deps struct {
	Store  Store
	Hub    *hub.Hub
	Logger *zap.Logger
	// FeedLimiter throttles feed upgrades per peer host; nil leaves the
	// feed unthrottled. The caller owns it and stops it.
	FeedLimiter *middleware.RateLimiter
	// MaxPayloadBytes caps /add bodies; zero means no limit.
	MaxPayloadBytes int64
}

func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	feedHub := deps.Hub
	if feedHub == nil {
		feedHub = hub.New()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrivateOrigin(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	ingestHandler := &handler.IngestHandler{
		Pipeline:        ingest.NewPipeline(deps.Store, logger),
		Hub:             feedHub,
		Logger:          logger,
		MaxPayloadBytes: deps.MaxPayloadBytes,
	}
	r.POST("/add", ingestHandler.Add)

	v1 := r.Group("/v1")

	settingsHandler := &handler.SettingsHandler{Store: deps.Store}
	v1.GET("/settings", settingsHandler.List)

	feedHandler := &handler.FeedHandler{Hub: feedHub, Sources: deps.Store, Logger: logger}
	if deps.FeedLimiter != nil {
		v1.GET("/feed", middleware.RateLimit(deps.FeedLimiter), feedHandler.Serve)
	} else {
		v1.GET("/feed", feedHandler.Serve)
	}

	return r
}
