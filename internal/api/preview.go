package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxMessageBytes = 1 << 20

// BuildStatus handles GET /api/build.
//
//	@Summary		Get the rebuild status
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	rebuild.Status
//	@Security		BearerAuth
//	@Router			/build [get]
func (h *Handler) BuildStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.BuildStatus())
}

// Rebuild handles POST /api/build.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	h.ws.Rebuild()
	writeJSON(w, http.StatusAccepted, h.ws.BuildStatus())
}

// RetryBuild handles POST /api/build/retry.
//
//	@Summary		Rebuild immediately after a failure
//	@Tags			build
//	@Produce		json
//	@Success		202	{object}	rebuild.Status
//	@Failure		429	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/build/retry [post]
func (h *Handler) RetryBuild(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Retry(); err != nil {
		writeError(w, err, "retry build")
		return
	}
	writeJSON(w, http.StatusAccepted, h.ws.BuildStatus())
}

// PreviewDocument handles GET /api/preview. The document carries a strong
// ETag; a matching If-None-Match is answered with 304.
//
//	@Summary		Get the current preview document
//	@Tags			preview
//	@Produce		html
//	@Success		200	{string}	string
//	@Success		304	"Not modified"
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	doc, etag := h.ws.Preview().Document()
	quoted := `"` + etag + `"`
	w.Header().Set("ETag", quoted)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Trim(match, `"`) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// PreviewStatus handles GET /api/preview/status.
func (h *Handler) PreviewStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Preview().Status())
}

// PreviewWidget handles GET /api/preview/widget.
//
//	@Summary		Get the rewritten sources for the in-browser widget
//	@Tags			preview
//	@Produce		json
//	@Success		200	{object}	preview.WidgetPayload
//	@Security		BearerAuth
//	@Router			/preview/widget [get]
func (h *Handler) PreviewWidget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Widget())
}

// PreviewMessage handles POST /api/preview/messages. Messages outside the
// console and error protocol are dropped with 204.
//
//	@Summary		Post a message from the preview document
//	@Tags			preview
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	preview.Record
//	@Success		204	"Dropped"
//	@Security		BearerAuth
//	@Router			/preview/messages [post]
func (h *Handler) PreviewMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	rec, ok := h.ws.Preview().HandleMessage(raw)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// PreviewLogs handles GET /api/preview/logs.
//
//	@Summary		List preview log records in arrival order
//	@Tags			preview
//	@Produce		json
//	@Param			since	query		int	false	"Return records after this id"
//	@Success		200		{object}	LogsResponse
//	@Security		BearerAuth
//	@Router			/preview/logs [get]
func (h *Handler) PreviewLogs(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	records := h.ws.Preview().Logs().Since(since)
	next := since
	if len(records) > 0 {
		next = records[len(records)-1].ID
	}
	writeJSON(w, http.StatusOK, LogsResponse{Records: records, Next: next})
}

// ClearLogs handles DELETE /api/preview/logs.
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	h.ws.Preview().Logs().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// DismissBoundary handles POST /api/preview/dismiss.
func (h *Handler) DismissBoundary(w http.ResponseWriter, r *http.Request) {
	h.ws.Preview().Dismiss()
	writeJSON(w, http.StatusOK, h.ws.Preview().Status())
}
