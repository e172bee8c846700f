package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	faceHandler := handlers.NewFaceHandler(s.service)
	attendanceHandler := handlers.NewAttendanceHandler(s.recorder)

	s.router.Get("/", handlers.Root)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/face", func(r chi.Router) {
		r.Post("/verify", faceHandler.Verify)
		r.Post("/register", faceHandler.Register)
		r.Get("/users", faceHandler.Users)
	})

	s.router.Route("/api/attendance", func(r chi.Router) {
		r.Get("/", attendanceHandler.Recent)
		r.Get("/{userId}/count", attendanceHandler.Count)
	})
}
