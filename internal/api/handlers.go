package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/bnema/chartform/internal/gitsync"
	"github.com/bnema/chartform/internal/history"
	"github.com/bnema/chartform/internal/merge"
	"github.com/bnema/chartform/internal/schema"
	"github.com/bnema/chartform/internal/values"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// refreshFromMirror pulls the remote and refreshes the live values document
// before a read. Failures are logged and ignored: a stale read beats no read.
func (s *Server) refreshFromMirror() {
	if s.mirror == nil || !s.mirror.Enabled() {
		return
	}
	if res := s.mirror.Pull(); !res.Success {
		s.log.Warn().Str("message", res.Message).Msg("mirror refresh failed")
		return
	}
	if err := s.mirror.ExportValuesFile(s.store.Path()); err != nil {
		s.log.Warn().Err(err).Msg("mirror export failed")
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	s.refreshFromMirror()

	tree, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("schema fetch failed")
		writeError(w, http.StatusInternalServerError, "values_unreadable", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, schema.Synthesize(tree, s.descriptors.Current()))
}

func (s *Server) handleValues(w http.ResponseWriter, _ *http.Request) {
	s.refreshFromMirror()

	tree, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("values fetch failed")
		writeError(w, http.StatusInternalServerError, "values_unreadable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

type syncReport struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

type updateResponse struct {
	Message string       `json:"message"`
	Skipped []merge.Skip `json:"skipped,omitempty"`
	Sync    *syncReport  `json:"sync,omitempty"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		writeError(w, http.StatusBadRequest, "invalid_update", "request body must be a JSON object")
		return
	}
	update := values.NormalizeJSON(raw).(map[string]any)

	// One descriptor snapshot for the whole request.
	desc := s.descriptors.Current()

	var skips []merge.Skip
	_, err := s.store.Update(func(tree values.Tree) (values.Tree, error) {
		var merged values.Tree
		merged, skips = merge.Apply(tree, update, desc)
		return merged, nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("update failed")
		writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}

	for _, sk := range skips {
		s.log.Info().Str("path", sk.Path).Str("reason", sk.Reason).Msg("protected field skipped")
	}

	// Mirroring is diagnostic: the in-memory merge and local write already
	// succeeded, so a publish failure never turns the response into an error.
	report := s.publish()

	s.recordHistory(r, update, skips, report)

	writeJSON(w, http.StatusOK, updateResponse{
		Message: "updated successfully",
		Skipped: skips,
		Sync:    report,
	})
}

func (s *Server) publish() *syncReport {
	if s.mirror == nil || !s.mirror.Enabled() {
		return nil
	}

	report := &syncReport{Attempted: true}
	if err := s.mirror.SyncValuesFile(s.store.Path()); err != nil {
		report.Message = err.Error()
		return report
	}

	res := s.mirror.CommitAndPush("")
	report.Success = res.Success
	report.Message = res.Message
	report.Commit = res.Commit
	return report
}

func (s *Server) recordHistory(r *http.Request, update values.Tree, skips []merge.Skip, report *syncReport) {
	if s.recorder == nil {
		return
	}

	skipped := make([]string, 0, len(skips))
	for _, sk := range skips {
		skipped = append(skipped, sk.Path)
	}

	changed := make([]string, 0)
	for _, path := range merge.TouchedPaths(update) {
		if !skippedPath(path, skipped) {
			changed = append(changed, path)
		}
	}

	entry := history.Entry{ChangedPaths: changed, SkippedPaths: skipped}
	if report != nil {
		entry.CommitSHA = report.Commit
	}
	if err := s.recorder.Record(r.Context(), entry); err != nil {
		s.log.Warn().Err(err).Msg("history record failed")
	}
}

// skippedPath reports whether path equals a skipped path or lies under one:
// a skipped subtree means none of its leaves were applied.
func skippedPath(path string, skipped []string) bool {
	for _, sk := range skipped {
		if path == sk || strings.HasPrefix(path, sk+".") {
			return true
		}
	}
	return false
}

func (s *Server) handleDescriptorReload(w http.ResponseWriter, _ *http.Request) {
	counts := s.descriptors.Reload()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "descriptor reloaded",
		"counts":  counts,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "update history is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.recorder.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_unreadable", err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGitStatus(w http.ResponseWriter, _ *http.Request) {
	if s.mirror == nil {
		writeJSON(w, http.StatusOK, gitsync.Status{Message: "git mirror is disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.mirror.Status())
}

func (s *Server) handleGitPull(w http.ResponseWriter, _ *http.Request) {
	if s.mirror == nil || !s.mirror.Enabled() {
		writeError(w, http.StatusConflict, "git_disabled", "git mirror is not enabled")
		return
	}

	res := s.mirror.Pull()
	if res.Success {
		if err := s.mirror.ExportValuesFile(s.store.Path()); err != nil {
			s.log.Warn().Err(err).Msg("mirror export failed")
		}
	}
	writeJSON(w, http.StatusOK, res)
}
