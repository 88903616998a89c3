package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hollis/taskpilot/internal/api/handlers"
	"github.com/hollis/taskpilot/internal/api/middleware"
	"github.com/hollis/taskpilot/internal/auth"
	"github.com/hollis/taskpilot/internal/authz"
	"github.com/hollis/taskpilot/internal/invitations"
	"github.com/hollis/taskpilot/internal/joinrequests"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB                 *gorm.DB
	Redis              *redis.Client
	Logger             *slog.Logger
	JWTService         *auth.JWTService
	AuthService        *auth.Service
	AuthzService       *authz.Service
	InvitationService  *invitations.Service
	JoinRequestService *joinrequests.Service
	AllowedOrigins     []string // CORS allowed origins
	RateLimitReqs      int      // Rate limit requests per window
	RateLimitSecs      int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	meHandler := handlers.NewMeHandler(cfg.DB, cfg.AuthService)
	projectHandler := handlers.NewProjectHandler(cfg.DB, cfg.AuthzService)
	memberHandler := handlers.NewMemberHandler(cfg.DB, cfg.AuthzService)
	taskHandler := handlers.NewTaskHandler(cfg.DB, cfg.AuthzService)
	invitationHandler := handlers.NewInvitationHandler(cfg.InvitationService)
	joinRequestHandler := handlers.NewJoinRequestHandler(cfg.JoinRequestService)
	notificationHandler := handlers.NewNotificationHandler(cfg.DB)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Invitation tokens resolve without a session so an invitee can
		// preview before signing up
		r.Get("/invitations/{token}", invitationHandler.Resolve)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			// Authenticated traffic is metered per account, so clients
			// behind a shared address do not starve each other.
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByUser(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			r.Use(middleware.Principal(cfg.AuthzService))

			// Current user
			r.Get("/me", meHandler.Get)
			r.Put("/me/profile", meHandler.UpdateProfile)

			// Invitation resolution
			r.Post("/invitations/{token}/accept", invitationHandler.Accept)
			r.Post("/invitations/{token}/decline", invitationHandler.Decline)

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/read", notificationHandler.MarkAllRead)
				r.Post("/{id}/read", notificationHandler.MarkRead)
			})

			// Projects
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)

				// Join-code discovery goes before the {id} routes so
				// "code" never parses as a project id
				r.Get("/code/{code}", joinRequestHandler.Discover)
				r.Post("/code/{code}/requests", joinRequestHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)
					r.Get("/activity", projectHandler.Activity)

					r.Route("/members", func(r chi.Router) {
						r.Get("/", memberHandler.List)
						r.Put("/{userID}", memberHandler.UpdateRole)
						r.Delete("/{userID}", memberHandler.Remove)
					})

					r.Route("/tasks", func(r chi.Router) {
						r.Get("/", taskHandler.List)
						r.Post("/", taskHandler.Create)
						r.Get("/{taskID}", taskHandler.Get)
						r.Put("/{taskID}", taskHandler.Update)
						r.Delete("/{taskID}", taskHandler.Delete)
					})

					r.Route("/invitations", func(r chi.Router) {
						r.Get("/", invitationHandler.List)
						r.Post("/", invitationHandler.Create)
					})

					r.Route("/requests", func(r chi.Router) {
						r.Get("/", joinRequestHandler.List)
						r.Post("/{requestID}/accept", joinRequestHandler.Accept)
						r.Post("/{requestID}/decline", joinRequestHandler.Decline)
					})
				})
			})
		})
	})

	return &Router{r}
}
