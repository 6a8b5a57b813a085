package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/wallet-gate/internal/domain"
)

type NetworkAdmin interface {
	GetNetwork(ctx context.Context, id string) (*domain.Network, error)
	SetNetworkRPCOverride(ctx context.Context, id, url string) error
}

type NetworkHandler struct {
	admin NetworkAdmin
}

func NewNetworkHandler(a NetworkAdmin) *NetworkHandler {
	return &NetworkHandler{admin: a}
}

// Get — метаданные сети, включая действующую подмену ноды.
func (h *NetworkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	network, err := h.admin.GetNetwork(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if network == nil {
		http.Error(w, "network not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(network)
}

type rpcOverrideRequest struct {
	URL string `json:"url"` // пустая строка снимает подмену
}

// SetRPCOverride направляет транзакции сети на другую ноду.
func (h *NetworkHandler) SetRPCOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req rpcOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.SetNetworkRPCOverride(r.Context(), id, req.URL); err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
