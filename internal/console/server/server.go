package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/wallet-gate/internal/console/handler"
	"github.com/xela07ax/wallet-gate/internal/infra"
	"github.com/xela07ax/wallet-gate/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка токенов (RS256). Реализуется через embedding
	// BaseValidator в AuthService
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler     *handler.AuthHandler     // /auth/token
	approvalHandler *handler.ApprovalHandler // /v1/approvals (очередь решений)
	grantHandler    *handler.GrantHandler    // /v1/grants
	historyHandler  *handler.HistoryHandler  // /v1/history
	networkHandler  *handler.NetworkHandler  // /v1/networks
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	approvalH *handler.ApprovalHandler,
	grantH *handler.GrantHandler,
	historyH *handler.HistoryHandler,
	networkH *handler.NetworkHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		cfg:             cfg,
		authValidator:   validator,
		authHandler:     authH,
		approvalHandler: approvalH,
		grantHandler:    grantH,
		historyHandler:  historyH,
		networkHandler:  networkH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Очередь одобрений (Human-in-the-loop)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Get("/", s.approvalHandler.List) // Запросы, ждущие решения
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.approvalHandler.GetDetails)
				r.Post("/decide", s.approvalHandler.Decide) // Approve/Reject + Redis Publish
				r.Post("/closed", s.approvalHandler.Closed) // Страница закрыта без решения
			})
		})

		// Выданные права dApp-ов
		r.Route("/v1/grants", func(r chi.Router) {
			r.Get("/", s.grantHandler.List)
			r.Delete("/{id}", s.grantHandler.Revoke) // Отзыв доступа
		})

		// История транзакций
		r.Get("/v1/history", s.historyHandler.List)

		// Сети: просмотр и подмена ноды
		r.Route("/v1/networks/{id}", func(r chi.Router) {
			r.Get("/", s.networkHandler.Get)
			r.Put("/rpc-override", s.networkHandler.SetRPCOverride)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
