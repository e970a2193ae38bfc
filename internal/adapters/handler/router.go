package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/services"
)

// RouterDeps collects everything the REST surface needs.
type RouterDeps struct {
	Auth        *services.AuthService
	AuthHandler *AuthHandler
	ChatHandler *ChatHandler
	Monitor     *services.Monitor
	ServeWS     http.HandlerFunc
	CORSOrigins []string
}

// NewRouter builds the full route tree.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeSuccess(w, http.StatusOK, "ok", deps.Monitor.Metrics(req.Context()))
	})

	r.Get("/ws", deps.ServeWS)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", deps.AuthHandler.Register)
		r.Post("/login", deps.AuthHandler.Login)
		r.Post("/logout", deps.AuthHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(deps.Auth))
			r.Get("/session", deps.AuthHandler.ValidateSession)
			r.Post("/validate-session", deps.AuthHandler.ValidateSession)
			r.Get("/profile", deps.AuthHandler.Profile)
			r.Put("/status", deps.AuthHandler.UpdateStatus)
			r.Get("/agents", deps.AuthHandler.AllAgents)
			r.Get("/agents/all", deps.AuthHandler.AllAgents)
			r.Get("/agents/online", deps.AuthHandler.OnlineAgents)
		})
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(Authenticate(deps.Auth))

		r.Post("/rooms", deps.ChatHandler.CreateRoom)
		r.Get("/rooms", deps.ChatHandler.MyRooms)
		r.Get("/unread", deps.ChatHandler.UnreadCounts)
		r.Get("/unread-count", deps.ChatHandler.UnreadCounts)

		r.With(RequireRole(domain.RoleAgent)).Get("/rooms/assigned", deps.ChatHandler.AgentRooms)
		r.With(RequireRole(domain.RoleAgent)).Get("/rooms/agent", deps.ChatHandler.AgentRooms)
		r.With(RequireRole(domain.RoleAgent)).Post("/assign-agent", deps.ChatHandler.AssignAgent)
		r.With(RequireRole(domain.RoleAgent)).Post("/transfer", deps.ChatHandler.TransferChat)

		r.Route("/rooms/{roomID}", func(r chi.Router) {
			r.Get("/", deps.ChatHandler.Room)
			r.Delete("/", deps.ChatHandler.CloseRoom)
			r.Post("/close", deps.ChatHandler.CloseRoom)
			r.Get("/unread", deps.ChatHandler.UnreadCount)
			r.Post("/messages", deps.ChatHandler.SendMessage)
			r.Get("/messages", deps.ChatHandler.Messages)
			r.Get("/messages/search", deps.ChatHandler.SearchMessages)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleAgent))
				r.Post("/assign", deps.ChatHandler.AssignAgent)
				r.Post("/transfer", deps.ChatHandler.TransferChat)
			})
		})

		r.Route("/messages/{messageID}", func(r chi.Router) {
			r.Put("/", deps.ChatHandler.EditMessage)
			r.Delete("/", deps.ChatHandler.DeleteMessage)
			r.Post("/delivered", deps.ChatHandler.MarkDelivered)
			r.Post("/read", deps.ChatHandler.MarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Post("/transfer-agent", deps.ChatHandler.TransferAgent)
			r.Post("/rooms/{roomID}/remove-agent", deps.ChatHandler.RemoveAgent)
			r.Post("/{roomID}/remove-agent", deps.ChatHandler.RemoveAgent)
			r.Get("/workload", deps.ChatHandler.Workload)
			r.Get("/agent-workload", deps.ChatHandler.Workload)
		})
	})

	return r
}
