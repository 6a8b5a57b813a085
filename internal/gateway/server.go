package gateway

/*
Файл server.go — HTTP-вход для недоверенной стороны (dApp).

Каждый запрос несет конверт {params, context{origin,name,favicon}}.
Шлюз не аутентифицирует dApp: origin — заявленная идентичность,
а защита — в том, что без одобренных человеком прав операции
не проходят.
*/

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/broker"
	"github.com/xela07ax/wallet-gate/internal/domain"
)

// DappMessage — конверт входящего запроса.
type DappMessage struct {
	Params  json.RawMessage `json:"params"`
	Context broker.Session  `json:"context"`
}

type Server struct {
	router *chi.Mux
	broker *broker.Broker
	logger *zap.Logger
}

func NewServer(b *broker.Broker, logger *zap.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		broker: b,
		logger: logger.Named("gateway"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1/dapp", func(r chi.Router) {
		r.Post("/connect", s.handleConnect)
		r.Post("/accounts-info", s.handleAccountsInfo)
		r.Post("/accounts", s.handleAccounts) // deprecated
		r.Post("/public-key", s.handlePublicKey)
		r.Post("/permissions", s.handleHasPermissions)
		r.Post("/sign-message", s.handleSignMessage)
		r.Post("/execute-transaction", s.handleExecuteTransaction)
		r.Post("/request-transaction", s.handleRequestTransaction) // deprecated
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type connectParams struct {
	Permissions []domain.Capability `json:"permissions"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	var p connectParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.writeError(w, r, domain.NewInvalidParamError("malformed params"))
		return
	}

	granted, err := s.broker.Connect(r.Context(), p.Permissions, msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]bool{"granted": granted})
}

func (s *Server) handleAccountsInfo(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	infos, err := s.broker.GetAccountsInfo(r.Context(), msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, infos)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	addrs, err := s.broker.GetAccounts(r.Context(), msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, addrs)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	key, err := s.broker.GetPublicKey(r.Context(), msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, map[string]string{"publicKey": key})
}

func (s *Server) handleHasPermissions(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	grants, err := s.broker.HasPermissions(r.Context(), msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, grants)
}

type signMessageParams struct {
	Data string `json:"data"` // hex
}

func (s *Server) handleSignMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	var p signMessageParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.writeError(w, r, domain.NewInvalidParamError("malformed params"))
		return
	}

	signed, err := s.broker.SignMessage(r.Context(), p.Data, msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, signed)
}

type executeTxParams struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (s *Server) handleExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	var p executeTxParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.writeError(w, r, domain.NewInvalidParamError("malformed params"))
		return
	}

	resp, err := s.broker.SignAndExecuteTransaction(r.Context(), p.Type, p.Data, p.Metadata, msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, resp)
}

type requestTxParams struct {
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleRequestTransaction(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.decode(w, r)
	if !ok {
		return
	}
	var p requestTxParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		s.writeError(w, r, domain.NewInvalidParamError("malformed params"))
		return
	}

	resp, err := s.broker.RequestTransaction(r.Context(), p.Data, msg.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeRaw(w, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*DappMessage, bool) {
	var msg DappMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeError(w, r, domain.NewInvalidParamError("malformed request body"))
		return nil, false
	}
	return &msg, true
}

// errorBody — единая форма ошибки для dApp. missingPerms заполняется
// только для NoPermissionError: dApp по нему строит повторный connect.
type errorBody struct {
	Error        string              `json:"error"`
	MissingPerms []domain.Capability `json:"missingPerms,omitempty"`
	TraceID      string              `json:"traceId"`
}

// writeError отображает таксономию ошибок брокера в HTTP-статусы.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := extractTraceID(r.Context())
	body := errorBody{Error: err.Error(), TraceID: traceID}
	status := http.StatusInternalServerError

	var noPerm *domain.NoPermissionError
	switch {
	case domain.IsInvalidParam(err):
		status = http.StatusBadRequest
	case errors.As(err, &noPerm):
		status = http.StatusForbidden
		body.MissingPerms = noPerm.Missing
	case domain.IsUserRejection(err):
		status = http.StatusForbidden
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	default:
		// Исполнение/инфраструктура: шлюз — посредник, отдаем 502
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("dapp request failed",
			zap.String("trace_id", traceID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		s.logger.Info("dapp request refused",
			zap.String("trace_id", traceID),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeRaw отдает непрозрачный ответ движка исполнения как есть.
func (s *Server) writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}
