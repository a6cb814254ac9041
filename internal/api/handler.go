package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"fieldboard/internal/board"
	"fieldboard/internal/directory"
	"fieldboard/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	engine    *board.Engine
	loader    *directory.Loader
	customers board.CustomerNames
	webpush   *webpush.Options
	logger    *zap.SugaredLogger
}

// NewHandler creates a new API handler. customers may be nil.
func NewHandler(s store.Store, engine *board.Engine, loader *directory.Loader, customers board.CustomerNames, webpushOptions *webpush.Options, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		store:     s,
		engine:    engine,
		loader:    loader,
		customers: customers,
		webpush:   webpushOptions,
		logger:    logger,
	}
}
