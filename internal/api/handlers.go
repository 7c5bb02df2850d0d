package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jstcode/internal/templates"
	"github.com/starford/jstcode/internal/workspace"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	ws *workspace.Workspace
}

// NewHandler creates a new Handler.
func NewHandler(ws *workspace.Workspace) *Handler {
	return &Handler{ws: ws}
}

// filePath extracts the project path from the URL (everything after the
// route prefix). Supports encoded slashes (e.g. src%2FApp.tsx).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// GetProject handles GET /api/project.
//
//	@Summary		Get the project tree and session
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	ProjectResponse
//	@Security		BearerAuth
//	@Router			/project [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, projectResponse(h.ws.Project()))
}

// ClearProject handles DELETE /api/project.
//
//	@Summary		Empty the project and forget the saved copy
//	@Tags			project
//	@Success		204	"Project cleared"
//	@Security		BearerAuth
//	@Router			/project [delete]
func (h *Handler) ClearProject(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Clear(r.Context()); err != nil {
		writeError(w, err, "clear project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportProject handles POST /api/project/import.
//
//	@Summary		Replace the project with a path to content map
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			body	body		map[string]string	true	"Files by path"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/import [post]
func (h *Handler) ImportProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var files map[string]string
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	changed, err := h.ws.Import(files)
	if err != nil {
		writeError(w, err, "import project")
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Files: len(files), Changed: changed})
}

// ListTemplates handles GET /api/templates.
//
//	@Summary		List the starter templates
//	@Tags			project
//	@Produce		json
//	@Success		200	{array}	templates.Summary
//	@Security		BearerAuth
//	@Router			/templates [get]
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := templates.List()
	if err != nil {
		writeError(w, err, "list templates")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// LoadTemplate handles POST /api/project/template/{id}.
//
//	@Summary		Replace the project with a starter template
//	@Tags			project
//	@Produce		json
//	@Param			id	path		string	true	"Template id"
//	@Success		200	{object}	ProjectResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/template/{id} [post]
func (h *Handler) LoadTemplate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.LoadTemplate(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "load template")
		return
	}
	writeJSON(w, http.StatusOK, projectResponse(h.ws.Project()))
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Get a single file by path
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	FileNode
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n, err := h.ws.ReadFile(path)
	if err != nil {
		writeError(w, err, "get file")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PutFile handles PUT /api/files/*. Missing folders are created.
//
//	@Summary		Create or overwrite a file
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"File path"
//	@Param			body	body		WriteFileRequest	true	"File content"
//	@Success		200		{object}	FileNode
//	@Success		201		{object}	FileNode
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [put]
func (h *Handler) PutFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req WriteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	n, created, err := h.ws.WriteFile(path, req.Content)
	if err != nil {
		writeError(w, err, "write file")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, n)
}

// DeleteFile handles DELETE /api/files/*.
//
//	@Summary		Delete a file or folder by path
//	@Tags			files
//	@Param			path	path	string	true	"Path"
//	@Success		204		"Deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeletePath(filePath(r)); err != nil {
		writeError(w, err, "delete file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder and its missing parents
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder path"
//	@Success		201		{object}	FileNode
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n, err := h.ws.CreateFolder(req.Path)
	if err != nil {
		writeError(w, err, "create folder")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// DeleteNode handles DELETE /api/nodes/{id}. Folders are removed with
// everything below them.
//
//	@Summary		Delete a node by id
//	@Tags			files
//	@Param			id	path	string	true	"Node id"
//	@Success		204	"Deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteNode(chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "delete node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameNode handles PATCH /api/nodes/{id}.
//
//	@Summary		Rename a node
//	@Tags			files
//	@Accept			json
//	@Param			id		path	string			true	"Node id"
//	@Param			body	body	RenameRequest	true	"New name"
//	@Success		204		"Renamed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [patch]
func (h *Handler) RenameNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.ws.RenameNode(chi.URLParam(r, "id"), req.Name); err != nil {
		writeError(w, err, "rename node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenTab handles POST /api/tabs/{id}.
func (h *Handler) OpenTab(w http.ResponseWriter, r *http.Request) {
	h.session(w, h.ws.OpenTab(chi.URLParam(r, "id")), "open tab")
}

// CloseTab handles DELETE /api/tabs/{id}.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	h.session(w, h.ws.CloseTab(chi.URLParam(r, "id")), "close tab")
}

// SetActive handles PUT /api/active/{id}.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	h.session(w, h.ws.SetActive(chi.URLParam(r, "id")), "set active")
}

// session answers a session change with the new tab state.
func (h *Handler) session(w http.ResponseWriter, err error, op string) {
	if err != nil {
		writeError(w, err, op)
		return
	}
	st := h.ws.Project()
	tabs := st.OpenTabs()
	if tabs == nil {
		tabs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activeFileId": st.ActiveFileID(),
		"openTabs":     tabs,
	})
}

// Dependencies handles GET /api/dependencies.
//
//	@Summary		Infer the package manifest of the project
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/dependencies [get]
func (h *Handler) Dependencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Dependencies())
}

// RewriteDiff handles GET /api/rewrite/*.
//
//	@Summary		Show the compatibility rewrite of a file as a unified diff
//	@Tags			build
//	@Produce		plain
//	@Param			path	path	string	true	"File path"
//	@Param			markup	query	bool	false	"Apply the widget markup fixes"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rewrite/{path} [get]
func (h *Handler) RewriteDiff(w http.ResponseWriter, r *http.Request) {
	markup := r.URL.Query().Get("markup") == "true"
	diff, err := h.ws.RewriteDiff(filePath(r), markup)
	if err != nil {
		writeError(w, err, "rewrite diff")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(diff))
}
