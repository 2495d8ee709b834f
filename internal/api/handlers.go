package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/audy/taxonomy/core/errors"
	"github.com/audy/taxonomy/core/rank"
	"github.com/audy/taxonomy/core/store"
	"github.com/audy/taxonomy/internal/formats"
)

// Version is the API version reported by the root and health
// endpoints.
const Version = "0.1.0"

// hashSource computes provenance hashes for an import source. Swapped
// out in tests.
var hashSource = store.HashFile

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NodeCount    int    `json:"node_count"`
	SourceSHA256 string `json:"source_sha256,omitempty"`
	SourceBLAKE3 string `json:"source_blake3,omitempty"`
	ImportedAt   string `json:"imported_at"`
}

// RankInfo describes one taxonomic rank.
type RankInfo struct {
	Name     string `json:"name"`
	NCBIName string `json:"ncbi_name"`
}

// ImportRequest is the request body for a dataset import. Path points
// at a source readable by the server.
type ImportRequest struct {
	Name              string `json:"name"`
	Path              string `json:"path"`
	Format            string `json:"format,omitempty"`
	AllowUnknownRanks bool   `json:"allow_unknown_ranks,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Datasets int    `json:"datasets"`
}

var startTime = time.Now()

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Taxonomy API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /v1/ranks",
			"GET /v1/ranks/parse?name=:name",
			"GET /v1/formats",
			"GET /v1/datasets",
			"POST /v1/datasets",
			"GET /v1/datasets/:name",
			"DELETE /v1/datasets/:name",
			"GET /v1/datasets/:name/taxa/:id",
			"GET /v1/datasets/:name/taxa/:id/lineage",
			"GET /v1/datasets/:name/taxa/:id/children",
			"GET /v1/datasets/:name/search?name=:query",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	datasets, err := s.store.Datasets()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to read datasets")
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:   "healthy",
		Version:  Version,
		Uptime:   time.Since(startTime).String(),
		Datasets: len(datasets),
	})
}

func (s *Server) handleRanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	ranks := make([]RankInfo, 0, len(rank.All()))
	for _, rk := range rank.All() {
		ranks = append(ranks, RankInfo{Name: rk.String(), NCBIName: rk.NCBIName()})
	}
	respondList(w, ranks, len(ranks))
}

func (s *Server) handleRankParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER", "Query parameter 'name' is required")
		return
	}

	rk, err := rank.Parse(name)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "UNRECOGNIZED_RANK", err.Error())
		return
	}
	respond(w, http.StatusOK, RankInfo{Name: rk.String(), NCBIName: rk.NCBIName()})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	names := formats.Names()
	respondList(w, names, len(names))
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listDatasets(w, r)
	case http.MethodPost:
		s.importDataset(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.store.Datasets()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to read datasets")
		return
	}

	infos := make([]DatasetInfo, 0, len(datasets))
	for _, ds := range datasets {
		infos = append(infos, datasetInfo(ds))
	}
	respondList(w, infos, len(infos))
}

func (s *Server) importDataset(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}
	if req.Name == "" || req.Path == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Fields 'name' and 'path' are required")
		return
	}

	s.hub.BroadcastProgress("import", "detecting", "Detecting source format", 10)

	var handler formats.Handler
	if req.Format != "" {
		h, err := formats.Get(req.Format)
		if err != nil {
			respondError(w, http.StatusBadRequest, "UNKNOWN_FORMAT", "Unknown format: "+req.Format)
			return
		}
		handler = h
	} else {
		h, _, err := formats.Detect(req.Path)
		if err != nil {
			s.hub.BroadcastError("import", "Could not detect source format")
			respondError(w, http.StatusBadRequest, "UNDETECTED_FORMAT", "Could not detect source format")
			return
		}
		handler = h
	}

	s.hub.BroadcastProgress("import", "reading", "Reading "+handler.Name()+" source", 30)
	tax, err := handler.Read(req.Path, formats.ReadOptions{AllowUnknownRanks: req.AllowUnknownRanks})
	if err != nil {
		s.log.Error("import read failed", zap.String("path", req.Path), zap.Error(err))
		s.hub.BroadcastError("import", "Failed to read source")
		respondError(w, importStatus(err), "READ_FAILED", err.Error())
		return
	}

	// Single-file sources get hashed for provenance; directory sources
	// have no single artifact to hash. A hashing failure is not fatal,
	// the dataset is just stored without source hashes.
	var hashes *store.HashResult
	if info, err := os.Stat(req.Path); err == nil && !info.IsDir() {
		hashes, err = hashSource(req.Path)
		if err != nil {
			s.log.Warn("failed to hash import source",
				zap.String("path", req.Path), zap.Error(err))
			hashes = nil
		}
	}

	s.hub.BroadcastProgress("import", "saving", "Saving dataset", 70)
	ds, err := s.store.Save(req.Name, tax, hashes)
	if err != nil {
		s.hub.BroadcastError("import", "Failed to save dataset")
		respondError(w, importStatus(err), "SAVE_FAILED", err.Error())
		return
	}

	s.log.Info("dataset imported",
		zap.String("name", ds.Name),
		zap.String("format", handler.Name()),
		zap.Int("nodes", ds.NodeCount))
	s.hub.BroadcastComplete("import", "Dataset imported", map[string]interface{}{
		"name":  ds.Name,
		"nodes": ds.NodeCount,
	})
	respond(w, http.StatusCreated, datasetInfo(ds))
}

// handleDatasetByName dispatches /v1/datasets/:name and its taxa and
// search sub-resources.
func (s *Server) handleDatasetByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Dataset name required")
		return
	}
	name := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.getDataset(w, name)
		case http.MethodDelete:
			s.deleteDataset(w, name)
		default:
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
		}
	case r.Method != http.MethodGet:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
	case len(parts) == 2 && parts[1] == "search":
		s.searchDataset(w, r, name)
	case len(parts) >= 3 && parts[1] == "taxa":
		s.handleTaxon(w, name, parts[2:])
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	}
}

func (s *Server) getDataset(w http.ResponseWriter, name string) {
	ds, err := s.store.Dataset(name)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respond(w, http.StatusOK, datasetInfo(ds))
}

func (s *Server) deleteDataset(w http.ResponseWriter, name string) {
	if err := s.store.Delete(name); err != nil {
		respondStoreError(w, err)
		return
	}
	s.log.Info("dataset deleted", zap.String("name", name))
	respond(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) searchDataset(w http.ResponseWriter, r *http.Request, name string) {
	query := r.URL.Query().Get("name")
	if query == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER", "Query parameter 'name' is required")
		return
	}

	tax, err := s.store.Load(name)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	matches := tax.FindByName(query)
	respondList(w, matches, len(matches))
}

func (s *Server) handleTaxon(w http.ResponseWriter, name string, parts []string) {
	taxID := parts[0]
	tax, err := s.store.Load(name)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	switch {
	case len(parts) == 1:
		node, err := tax.Node(taxID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respond(w, http.StatusOK, node)
	case len(parts) == 2 && parts[1] == "lineage":
		lineage, err := tax.Lineage(taxID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondList(w, lineage, len(lineage))
	case len(parts) == 2 && parts[1] == "children":
		children, err := tax.Children(taxID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondList(w, children, len(children))
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	}
}

func datasetInfo(ds *store.Dataset) DatasetInfo {
	return DatasetInfo{
		ID:           ds.ID.String(),
		Name:         ds.Name,
		NodeCount:    ds.NodeCount,
		SourceSHA256: ds.SourceSHA256,
		SourceBLAKE3: ds.SourceBLAKE3,
		ImportedAt:   ds.ImportedAt.UTC().Format(time.RFC3339),
	}
}

// importStatus maps store and format errors to HTTP statuses.
func importStatus(err error) int {
	switch {
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
