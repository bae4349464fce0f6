package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates the /api router. The auth middleware covers every route,
// including the event stream.
func NewRouter(h *Handler, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Post("/import", h.ImportProject)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Delete("/", h.DeleteProject)
			r.Get("/export", h.ExportProject)
			r.Get("/verify", h.VerifyProject)

			r.Post("/notes", h.CreateNote)
			r.Route("/notes/{noteID}", func(r chi.Router) {
				r.Get("/", h.GetNote)
				r.Put("/", h.UpdateNote)
				r.Delete("/", h.DeleteNote)
				r.Put("/move", h.MoveNote)
				r.Get("/verify", h.VerifyNote)
				r.Get("/download", h.DownloadNote)
			})
		})
	})

	r.Get("/images", h.ListImages)
	r.Post("/images", h.UploadImage)
	r.Delete("/images/{imageID}", h.DeleteImage)

	r.Get("/search", h.Search)

	if h.events != nil {
		r.Get("/events", h.events.ServeHTTP)
	}
	return r
}
