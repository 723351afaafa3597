package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
	"github.com/dkovalenko/document-pipeline/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	ingest  ports.DocumentIngestor
	runner  ports.PipelineRunner
	search  ports.SearchService
	docs    ports.DocumentRepository
	chunks  ports.ChunkRepository
	vectors ports.VectorIndex
	storage ports.ObjectStorage
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingest ports.DocumentIngestor,
	runner ports.PipelineRunner,
	search ports.SearchService,
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	vectors ports.VectorIndex,
	storage ports.ObjectStorage,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingest:  ingest,
		runner:  runner,
		search:  search,
		docs:    docs,
		chunks:  chunks,
		vectors: vectors,
		storage: storage,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/pipeline/health", rt.pipelineHealth)
	mux.HandleFunc("/v1/documents", rt.documentsCollection)
	mux.HandleFunc("/v1/documents/", rt.documentRoutes)
	mux.HandleFunc("/v1/search", rt.searchChunks)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pipelineHealth exposes the full gate report; 503 signals that a pipeline
// run would be refused right now.
func (rt *Router) pipelineHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report := rt.runner.CheckHealth(r.Context())
	status := http.StatusOK
	if !report.CanProcess {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (rt *Router) documentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listDocuments(w, r)
	case http.MethodPost:
		rt.uploadDocument(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.docs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if strings.TrimSpace(title) == "" {
		title = fileHeader.Filename
	}

	doc, err := rt.ingest.Upload(r.Context(), ports.DocumentUpload{
		Filename:   fileHeader.Filename,
		Title:      title,
		Department: r.FormValue("department"),
		Division:   r.FormValue("division"),
		Body:       file,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	parts := strings.SplitN(rest, "/", 2)

	documentID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id must be an integer"})
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		rt.documentByID(w, r, documentID)
	case "chunks":
		rt.documentChunks(w, r, documentID)
	case "process":
		rt.runStage(w, r, documentID, rt.runner.RunPipeline)
	case "chunk":
		rt.runStage(w, r, documentID, rt.runner.RunChunking)
	case "embed":
		rt.runStage(w, r, documentID, func(ctx context.Context, id int64, _ string) error {
			return rt.runner.RunEmbedding(ctx, id)
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown document operation"})
	}
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request, documentID int64) {
	switch r.Method {
	case http.MethodGet:
		doc, err := rt.docs.GetByID(r.Context(), documentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		rt.deleteDocument(w, r, documentID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// deleteDocument removes the vector points first, then the rows; a dangling
// vector is worse than a dangling row because search would keep serving it.
func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, documentID int64) {
	if _, err := rt.docs.GetByID(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.vectors.DeleteByDocument(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.chunks.DeleteByDocument(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.docs.Delete(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) documentChunks(w http.ResponseWriter, r *http.Request, documentID int64) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if _, err := rt.docs.GetByID(r.Context(), documentID); err != nil {
		writeError(w, err)
		return
	}
	chunks, err := rt.chunks.ListByDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if chunks == nil {
		chunks = []*domain.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (rt *Router) runStage(
	w http.ResponseWriter,
	r *http.Request,
	documentID int64,
	run func(ctx context.Context, id int64, filePath string) error,
) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := run(r.Context(), documentID, rt.storage.Path(doc.Location)); err != nil {
		writeError(w, err)
		return
	}

	updated, err := rt.docs.GetByID(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) searchChunks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query      string `json:"query"`
		Limit      int    `json:"limit"`
		Division   string `json:"division"`
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	hits, err := rt.search.Search(r.Context(), req.Query, req.Limit, domain.SearchFilter{
		Division:   req.Division,
		Department: req.Department,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if hits == nil {
		hits = []domain.RetrievedChunk{}
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, len(hits), time.Since(start))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	payload := map[string]any{"error": err.Error()}

	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) {
		payload["health"] = unavailable.Report
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
