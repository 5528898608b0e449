package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/database"
	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/notify"
)

// Version is reported by the health endpoint
var Version = "0.1.0"

// Handler holds all HTTP handlers
type Handler struct {
	registry *contact.Registry
	hub      *notify.Hub
	rdb      *database.Redis
	log      *logger.Logger
	cfg      *config.Config
}

// New creates a new Handler instance. rdb may be nil when Redis is disabled.
func New(registry *contact.Registry, hub *notify.Hub, rdb *database.Redis, log *logger.Logger, cfg *config.Config) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		rdb:      rdb,
		log:      log,
		cfg:      cfg,
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// readOptionalJSON is readJSON that accepts an empty body.
func readOptionalJSON(r *http.Request, v interface{}) (bool, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return false, nil
	}
	err := readJSON(r, v)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	return err == nil, err
}
