package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/wallet-gate/internal/domain"
	"github.com/xela07ax/wallet-gate/internal/infra/auth"
)

// ApprovalService Описываем, что нам нужно от сервиса
type ApprovalService interface {
	ListPending(ctx context.Context) ([]*domain.PendingRequest, error)
	GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.PendingRequest, error)
	Decide(ctx context.Context, kind domain.RequestKind, id string, approved bool, reviewerID string) error
	ReportClosed(ctx context.Context, id string) error
}

type ApprovalHandler struct {
	service ApprovalService
}

func NewApprovalHandler(s ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: s}
}

// List — очередь запросов, ждущих решения оператора.
func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPending(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// GetDetails — полный запрос для экрана одобрения. Вид передается
// query-параметром: ?kind=PERMISSION|TRANSACTION|SIGN_MSG.
func (h *ApprovalHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := domain.RequestKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = domain.KindPermission
	}

	req, err := h.service.GetRequest(r.Context(), kind, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

type DecideRequest struct {
	Kind     domain.RequestKind `json:"kind"`
	Approved bool               `json:"approved"`
}

// Decide — вердикт оператора: Publish в Redis, дальше шлюз сам.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}

	// Авторизованный оператор из контекста (проставлен middleware-ом)
	reviewerID := auth.UserID(r.Context())
	if reviewerID == "" {
		http.Error(w, "reviewer is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Decide(r.Context(), req.Kind, id, req.Approved, reviewerID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Closed — страница одобрения закрыта без нажатия кнопок.
func (h *ApprovalHandler) Closed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.ReportClosed(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
