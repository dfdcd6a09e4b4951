package api

import (
	"net/http"
	"time"

	"noticeboard/internal/api/handler"
	"noticeboard/internal/api/middleware"
	"noticeboard/internal/app/service"
	"noticeboard/internal/common/security"
	"noticeboard/internal/platform/metrics"
	"noticeboard/internal/platform/storage"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Deps struct {
	AuthService   *service.AuthService
	NoticeService *service.NoticeService
	AdminService  *service.AdminService
	Tokens        *security.TokenIssuer
	Store         *storage.AttachmentStore
	Metrics       *metrics.Metrics
	Logger        *charmlog.Logger

	// LoginLimit wraps the login routes; nil leaves them unthrottled.
	LoginLimit     func(http.Handler) http.Handler
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(d.RequestTimeout))
	}
	r.Use(d.Metrics.Middleware)

	// Looks for "Authorization: Bearer T"; Identify then decides between
	// anonymous, authenticated and rejected.
	r.Use(jwtauth.Verifier(d.Tokens.JWTAuth()))
	r.Use(middleware.Identify)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/uploads", handler.NewUploadHandler(d.Store, d.Logger).RegisterRoutes)

	r.Route("/api", func(api chi.Router) {
		authHandler := handler.NewAuthHandler(d.AuthService)
		api.Route("/auth", func(auth chi.Router) {
			if d.LoginLimit != nil {
				auth.Use(d.LoginLimit)
			}
			authHandler.RegisterRoutes(auth)
		})

		noticeHandler := handler.NewNoticeHandler(d.NoticeService, d.Store.MaxSize())
		api.Route("/notices", noticeHandler.RegisterRoutes)

		adminHandler := handler.NewAdminHandler(d.AdminService)
		api.Group(adminHandler.RegisterRoutes)
	})

	return r
}
