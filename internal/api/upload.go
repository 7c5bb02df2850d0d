package api

import (
	"net/http"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ImportZip handles POST /api/project/import/zip (multipart/form-data,
// field "file"). The archive replaces the project.
//
//	@Summary		Replace the project with the code files of a zip archive
//	@Tags			project
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Zip archive"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/import/zip [post]
func (h *Handler) ImportZip(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	n, err := h.ws.ImportZip(file, header.Size)
	if err != nil {
		writeError(w, err, "import zip")
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Files: n, Changed: true})
}
