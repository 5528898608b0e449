package middleware

import (
	"context"
	"time"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/logger"
)

// Counter counts hits per key inside a sliding-start window
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Middleware holds all HTTP middleware
type Middleware struct {
	counter Counter
	log     *logger.Logger
	cfg     *config.Config
}

// New creates a new Middleware instance. counter may be nil when Redis is
// disabled; rate limiting is then skipped.
func New(counter Counter, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		counter: counter,
		log:     log,
		cfg:     cfg,
	}
}
