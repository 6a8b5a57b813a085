package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

type GrantService interface {
	List(ctx context.Context) ([]*domain.PermissionGrant, error)
	Revoke(ctx context.Context, id string) error
}

type GrantHandler struct {
	service GrantService
}

func NewGrantHandler(s GrantService) *GrantHandler {
	return &GrantHandler{service: s}
}

func (h *GrantHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Revoke(r.Context(), id); err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
