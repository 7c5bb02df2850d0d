package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jstcode/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(ws *workspace.Workspace, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Project.
	r.Get("/project", h.GetProject)
	r.Delete("/project", h.ClearProject)
	r.Post("/project/import", h.ImportProject)
	r.Post("/project/import/zip", h.ImportZip)
	r.Post("/project/template/{id}", h.LoadTemplate)
	r.Get("/templates", h.ListTemplates)

	// Files and folders.
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.PutFile)
	r.Delete("/files/*", h.DeleteFile)
	r.Post("/folders", h.CreateFolder)
	r.Delete("/nodes/{id}", h.DeleteNode)
	r.Patch("/nodes/{id}", h.RenameNode)

	// Session.
	r.Post("/tabs/{id}", h.OpenTab)
	r.Delete("/tabs/{id}", h.CloseTab)
	r.Put("/active/{id}", h.SetActive)

	// Build.
	r.Get("/build", h.BuildStatus)
	r.Post("/build", h.Rebuild)
	r.Post("/build/retry", h.RetryBuild)
	r.Get("/dependencies", h.Dependencies)
	r.Get("/rewrite/*", h.RewriteDiff)

	// Preview.
	r.Get("/preview", h.PreviewDocument)
	r.Get("/preview/status", h.PreviewStatus)
	r.Get("/preview/widget", h.PreviewWidget)
	r.Post("/preview/messages", h.PreviewMessage)
	r.Get("/preview/logs", h.PreviewLogs)
	r.Delete("/preview/logs", h.ClearLogs)
	r.Post("/preview/dismiss", h.DismissBoundary)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
