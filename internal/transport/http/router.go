package http

import (
	"net/http"
	"time"

	httpmw "github.com/chatgrid/chat-service/internal/transport/http/middleware"
	"github.com/chatgrid/chat-service/internal/transport/ws"
	"github.com/chatgrid/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, tokens httpmw.TokenParser, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint вне логирующей мидлвари: ей нужен http.Hijacker.
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httputil.MiddlewareRequestID)
		pr.Use(httputil.MiddlewareLogging)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Post("/auth/register", h.Register)
		pr.Post("/auth/login", h.Login)

		// Всё остальное требует access_token
		pr.Group(func(ar chi.Router) {
			ar.Use(httpmw.AuthMiddleware(tokens))

			ar.Get("/auth/me", h.Me)

			ar.Route("/rooms", func(rm chi.Router) {
				rm.Post("/", h.CreateRoom)
				rm.Get("/", h.ListRooms)

				rm.Route("/{id}", func(rr chi.Router) {
					rr.Get("/", h.GetRoom)
					rr.Delete("/", h.DeleteRoom)
					rr.Get("/members", h.ListMembers)
					rr.Post("/join", h.JoinRoom)
					rr.Delete("/leave", h.LeaveRoom)
					rr.Get("/messages", h.GetMessages)
					rr.Post("/messages", h.PostMessage)
				})
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
