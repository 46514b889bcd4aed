package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// SweepRunner performs one expiration sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (int64, error)
}

// CronHandler exposes the expiration sweep to an external scheduler
type CronHandler struct {
	sweeper    SweepRunner
	secretHash []byte
	logger     *slog.Logger
}

// NewCronHandler creates a cron handler. An empty secretHash disables the
// endpoint.
func NewCronHandler(sweeper SweepRunner, secretHash string, logger *slog.Logger) *CronHandler {
	return &CronHandler{sweeper: sweeper, secretHash: []byte(secretHash), logger: logger}
}

// Expire handles GET /api/cron/expire. The shared secret is read from the
// X-Cron-Secret header or the secret query parameter.
func (h *CronHandler) Expire(w http.ResponseWriter, r *http.Request) {
	if len(h.secretHash) == 0 {
		errorResponse(w, http.StatusNotFound, "the requested resource could not be found")
		return
	}

	secret := r.Header.Get("X-Cron-Secret")
	if secret == "" {
		secret = r.URL.Query().Get("secret")
	}
	if secret == "" || bcrypt.CompareHashAndPassword(h.secretHash, []byte(secret)) != nil {
		errorResponse(w, http.StatusUnauthorized, "invalid cron secret")
		return
	}

	n, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		serverErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "expired": n})
}
