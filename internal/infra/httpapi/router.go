package httpapi

import (
	"net/http"
	"time"

	"placement_workflow/internal/domain/subject"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 30 * time.Second
	// ReadHeaderTimeout bounds how long the server waits for request headers.
	ReadHeaderTimeout = 10 * time.Second
)

// NewRouter mounts the public API. Every route but /healthz needs a token.
func NewRouter(
	auth *Authenticator,
	subjects *SubjectHandlers,
	notifications *NotificationHandlers,
	logger *logrus.Entry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, "ok", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Route("/subjects", func(r chi.Router) {
			r.Post("/", subjects.Register)
			r.With(RequireRole(reviewerRoles...)).Get("/", subjects.List)
			r.Get("/{id}", subjects.Get)
			r.Get("/{id}/history", subjects.History)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(reviewerRoles...))
				r.Put("/{id}/approve", subjects.Transition("id", "", subject.StatusApproved))
				r.Put("/{id}/reject", subjects.Transition("id", "", subject.StatusRejected))
			})
		})

		r.Route("/admin-requests", func(r chi.Router) {
			r.Use(RequireRole(RoleSuperadmin))
			r.Put("/{id}/approve", subjects.Transition("id", subject.KindAdmin, subject.StatusApproved))
			r.Put("/{id}/reject", subjects.Transition("id", subject.KindAdmin, subject.StatusRejected))
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(RequireRole(reviewerRoles...))
			r.Put("/{studentId}/approve", subjects.Transition("studentId", subject.KindStudent, subject.StatusApproved))
			r.Put("/{studentId}/reject", subjects.Transition("studentId", subject.KindStudent, subject.StatusRejected))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Get("/unread-count", notifications.UnreadCount)
			r.Put("/mark-read", notifications.MarkRead)
		})
	})

	return r
}
