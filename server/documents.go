package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/poiesic/ragline/ingestion"
)

func ownerOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

// requireOwner writes a 400 and returns false when the owner header is missing.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := ownerOf(r)
	if owner == "" {
		writeJSONError(w, "missing "+OwnerHeader+" header", http.StatusBadRequest)
		return "", false
	}
	return owner, true
}

// readUploads reads every part of the "files" field. A part that cannot be
// read becomes an upload carrying the read error.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]ingestion.Upload, bool) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeJSONError(w, "failed to parse multipart form", http.StatusBadRequest)
		return nil, false
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSONError(w, "no files in form field \"files\"", http.StatusBadRequest)
		return nil, false
	}

	uploads := make([]ingestion.Upload, len(headers))
	for i, h := range headers {
		content, err := readPart(h)
		uploads[i] = ingestion.Upload{Filename: h.Filename, Content: content, ReadErr: err}
	}
	return uploads, true
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	docs, err := s.pipeline.Documents(r.Context(), owner)
	if err != nil {
		s.logger.Error("list documents failed", "owner", owner, "err", err)
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTOs(docs))
}

func (s *Server) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	uploads, ok := s.readUploads(w, r)
	if !ok {
		return
	}

	summary, err := s.pipeline.IngestFiles(r.Context(), owner, uploads)
	if err != nil {
		s.logger.Error("upload failed", "owner", owner, "err", err)
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) streamDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	uploads, ok := s.readUploads(w, r)
	if !ok {
		return
	}

	events, err := s.streamer.Start(r.Context(), owner, uploads)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	sse, err := newEventWriter(w)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for event := range events {
		if err := sse.SendJSON("", event); err != nil {
			// The run stops on its own once the request context is canceled.
			s.logger.Info("upload stream reader left", "owner", owner, "err", err)
			for range events {
			}
			return
		}
	}
}

func (s *Server) purgeDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	removed, err := s.pipeline.Purge(r.Context(), owner)
	if err != nil {
		s.logger.Error("purge failed", "owner", owner, "err", err)
		writeJSONError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
