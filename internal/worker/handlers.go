package worker

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/notemap/internal/config"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes a JSON error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth reports service liveness and uptime.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// ClusterRunRequest triggers a clustering run over a vault.
type ClusterRunRequest struct {
	Vault string `json:"vault"`
}

// handleClusterRun scans, embeds, and clusters the requested vault.
func (s *Service) handleClusterRun(w http.ResponseWriter, r *http.Request) {
	var req ClusterRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vaultPath := req.Vault
	if vaultPath == "" {
		vaultPath = config.GetVaultPath()
	}
	if vaultPath == "" {
		writeError(w, http.StatusBadRequest, "no vault path configured or supplied")
		return
	}

	result, err := s.RunClustering(r.Context(), vaultPath)
	if err != nil {
		log.Error().Err(err).Str("vault", vaultPath).Msg("Clustering run failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetClusters returns the persisted clusters for a vault.
func (s *Service) handleGetClusters(w http.ResponseWriter, r *http.Request) {
	vaultPath := r.URL.Query().Get("vault")
	if vaultPath == "" {
		vaultPath = config.GetVaultPath()
	}
	if vaultPath == "" {
		writeError(w, http.StatusBadRequest, "no vault path configured or supplied")
		return
	}

	st, err := s.store.LoadState(r.Context(), vaultPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no clustering state for vault")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clusters":                st.Clusters,
		"last_full_clustering_at": st.LastFullClusteringAt,
		"incremental_runs":        st.IncrementalRuns,
	})
}

// handleDeleteState clears the persisted state for a vault, forcing the
// next run to be a full one.
func (s *Service) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	vaultPath := r.URL.Query().Get("vault")
	if vaultPath == "" {
		writeError(w, http.StatusBadRequest, "vault query parameter is required")
		return
	}

	if err := s.store.DeleteState(r.Context(), vaultPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
