package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/wallet-gate/internal/history"
)

type HistoryProvider interface {
	ListHistory(ctx context.Context, accountID string, limit int) ([]history.Entry, error)
}

type HistoryHandler struct {
	provider HistoryProvider
}

func NewHistoryHandler(p HistoryProvider) *HistoryHandler {
	return &HistoryHandler{provider: p}
}

// List — история транзакций аккаунта: /v1/history?account=...&limit=50
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		http.Error(w, "account query param is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.provider.ListHistory(r.Context(), accountID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
