// Package email is the notification sink. Messages are validated and logged;
// nothing is delivered.
package email

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/api"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/validation"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := api.DecodeJSON(w, r, &n); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}
	if err := validation.Struct(n); err != nil {
		api.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("email sent", "to", n.To, "subject", n.Subject)
	api.WriteOK(w, h.logger, "Email accepted", n)
}
