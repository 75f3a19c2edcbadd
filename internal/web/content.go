package web

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"contentcal/internal/codec"
	"contentcal/internal/exporter"
	"contentcal/internal/fetch"
	"contentcal/internal/importer"
	appLog "contentcal/internal/log"
)

// multipartSlack is allowed on top of the file ceiling for multipart
// boundaries and headers.
const multipartSlack = 64 << 10

// POST /api/import, multipart form with one "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	limit := s.deps.Importer.MaxFileBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, importer.ErrFileTooLarge.Error())
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, importer.ErrEmptySelection.Error())
		default:
			writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		}
		return
	}
	defer file.Close()

	res, err := s.deps.Importer.ImportFile(r.Context(), hdr.Filename, hdr.Size, file, nil)
	s.writeImport(w, res, err)
}

type importURLRequest struct {
	URL string `json:"url"`
}

// POST /api/import/url {"url": "..."}
func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	if s.deps.Fetcher == nil {
		writeError(w, http.StatusNotFound, "import by URL is not enabled")
		return
	}
	var req importURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fetched, err := s.deps.Fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, fetch.ErrEmptyURL), errors.Is(err, fetch.ErrInvalidURL), errors.Is(err, codec.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			appLog.Error("import url fetch failed", err)
			writeError(w, http.StatusBadGateway, "could not download the file: "+err.Error())
		}
		return
	}
	if int64(len(fetched.Body)) > s.deps.Importer.MaxFileBytes() {
		writeError(w, http.StatusRequestEntityTooLarge, importer.ErrFileTooLarge.Error())
		return
	}

	res, err := s.deps.Importer.Import(r.Context(), fetched.Format, fetched.Body, nil)
	s.writeImport(w, res, err)
}

// writeImport maps importer outcomes to responses. A cancelled batch still
// reports what it created.
func (s *Server) writeImport(w http.ResponseWriter, res *importer.Result, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case res != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		writeJSON(w, http.StatusServiceUnavailable, res)
	case errors.Is(err, importer.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// GET /api/export?format=csv|ics|json|xlsx
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := codec.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.deps.Content.ListContentItems(r.Context())
	if err != nil {
		appLog.Error("export list failed", err, "format", f)
		writeError(w, http.StatusBadGateway, "could not load content items: "+err.Error())
		return
	}

	art, err := s.deps.Exporter.Export(items, f)
	switch {
	case errors.Is(err, exporter.ErrNothingToExport):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, codec.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Body)
}

type backupResponse struct {
	Path    string `json:"path"`
	Skipped bool   `json:"skipped"`
}

// POST /api/backup runs the backup job immediately.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Backup == nil {
		writeError(w, http.StatusNotFound, "backups are not enabled")
		return
	}
	path, err := s.deps.Backup.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, backupResponse{Path: path, Skipped: path == ""})
}
