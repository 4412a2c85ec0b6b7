package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/catalog"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/engine"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

type ingestRequest struct {
	Documents    []models.DocumentInput `json:"documents"`
	ChunkSize    int                    `json:"chunk_size,omitempty"`
	ChunkOverlap int                    `json:"chunk_overlap,omitempty"`
}

func (s *Server) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var override *chunker.SplitConfig
	if req.ChunkSize > 0 || req.ChunkOverlap > 0 {
		sc := ingest.SplitConfigFrom(&s.config.Query)
		if req.ChunkSize > 0 {
			sc.MaxChunkSize = req.ChunkSize
		}
		if req.ChunkOverlap > 0 {
			sc.Overlap = req.ChunkOverlap
		}
		override = &sc
	}
	s.logger.Debug("ingest request", zap.Int("documents", len(req.Documents)))
	result, err := s.ingestor.IngestDocuments(r.Context(), req.Documents, override)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, s.ingestStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided (multipart field \"files\")")
		return
	}
	uploadDir := s.config.Storage.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := &models.IngestResult{Documents: []string{}}
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !s.extractor.Supported(ext) {
			s.respondError(w, http.StatusBadRequest, "unsupported file type: "+fh.Filename)
			return
		}
		dst := filepath.Join(uploadDir, filepath.Base(fh.Filename))
		if err := saveUpload(fh, dst); err != nil {
			s.logger.Error("saving upload failed", zap.String("file", fh.Filename), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		result, err := s.ingestor.IngestFile(r.Context(), dst)
		if err != nil {
			// The saved copy only stays if the file made it into the index.
			_ = os.Remove(dst)
			s.logger.Error("upload ingestion failed", zap.String("file", fh.Filename), zap.Error(err))
			s.respondError(w, s.ingestStatus(err), err.Error())
			return
		}
		total.IndexedChunks += result.IndexedChunks
		total.Documents = append(total.Documents, result.Documents...)
	}
	s.respondJSON(w, http.StatusCreated, total)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListDocuments(r.Context())
	if err != nil {
		s.logger.Error("listing documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question))
	answer, err := s.engine.Answer(r.Context(), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEmptyQuestion):
			s.respondError(w, http.StatusBadRequest, "question must not be empty")
		case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, embedding.ErrDimensionChanged):
			s.logger.Error("query embedding failed", zap.Error(err))
			s.respondError(w, http.StatusBadGateway, err.Error())
		default:
			s.logger.Error("query failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("reset request")
	if err := s.manager.Reset(); err != nil {
		s.logger.Error("store reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.catalog.Clear(r.Context()); err != nil {
		s.logger.Error("catalog reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dir := s.config.Storage.UploadDir; dir != "" {
		if err := clearDir(dir); err != nil {
			s.logger.Warn("clearing upload dir failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.catalog.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.catalog.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	store, err := s.manager.Store()
	if err != nil {
		s.logger.Error("status: store unavailable", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"documents":  docCount,
		"chunks":     chunkCount,
		"store_size": store.Size(),
		"config": map[string]interface{}{
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"generation_model":     s.config.Generation.Model,
			"top_k":                s.config.Query.TopK,
			"chunk_size":           s.config.Query.ChunkSize,
			"chunk_overlap":        s.config.Query.ChunkOverlap,
			"store_path":           s.config.Storage.StorePath,
			"catalog_path":         s.config.Storage.CatalogPath,
		},
	}
	diskBytes, err := catalog.DiskUsageBytes(
		s.config.Storage.StorePath,
		s.config.Storage.CatalogPath,
		s.config.Storage.UploadDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"store_loaded":     s.manager.Loaded(),
		"embedding_model":  s.config.Embedding.Model,
		"generation_model": s.config.Generation.Model,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "kotae",
		"endpoints": map[string]string{
			"ingest": "POST /api/v1/documents",
			"upload": "POST /api/v1/documents/upload",
			"list":   "GET /api/v1/documents",
			"query":  "POST /api/v1/query",
			"reset":  "DELETE /api/v1/reset",
			"status": "GET /api/v1/status",
			"health": "GET /health",
		},
	})
}

// ingestStatus maps ingestion errors onto HTTP status codes.
func (s *Server) ingestStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrNoDocuments),
		errors.Is(err, chunker.ErrInvalidSplitConfig),
		errors.Is(err, extract.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, embedding.ErrDimensionChanged):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
