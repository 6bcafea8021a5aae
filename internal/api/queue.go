package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/syncer"
)

// RecordView is a mutation record as the API renders it. Payloads that
// are JSON are inlined; anything else is omitted.
type RecordView struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	State      string          `json:"state"`
	Seq        int64           `json:"seq"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// QueueView is the GET /queue response.
type QueueView struct {
	Status  syncer.Status `json:"status"`
	Pending []RecordView  `json:"pending"`
	Failed  []RecordView  `json:"failed"`
}

type enqueueRequest struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body"`
}

type countResponse struct {
	Count int `json:"count"`
}

func recordViews(recs []ir.MutationRecord) []RecordView {
	out := make([]RecordView, len(recs))
	for i, rec := range recs {
		out[i] = RecordView{
			ID:         rec.ID,
			Type:       rec.Type,
			State:      string(rec.State),
			Seq:        rec.Seq,
			RetryCount: rec.RetryCount,
			LastError:  rec.LastError,
			CreatedAt:  rec.CreatedAt,
		}
		if json.Valid(rec.Payload) {
			out[i].Payload = json.RawMessage(rec.Payload)
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": s.sync.Status().Connected})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := s.sync.Queue()
	writeJSON(w, http.StatusOK, QueueView{
		Status:  s.sync.Status(),
		Pending: recordViews(q.Pending()),
		Failed:  recordViews(q.Failed()),
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		writeError(w, http.StatusNotImplemented, "no remote configured")
		return
	}
	var req enqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	body, err := ir.ObjectFromAny(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m := s.remote.NewRequest(req.Method, req.Path, body)
	if err := m.Request.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.sync.Queue().Enqueue(r.Context(), m)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": m.ID()})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.SyncNow(r.Context()))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sync.Queue().Retry(r.Context(), id) {
		writeError(w, http.StatusNotFound, "mutation not in failed set: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, countResponse{Count: s.sync.Queue().RetryAll(r.Context())})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Resolution string `json:"resolution"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := syncer.ParseResolution(req.Resolution)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.sync.Resolve(r.Context(), id, res); {
	case errors.Is(err, syncer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, syncer.ErrNotConflicted):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "resolution": string(res)})
	}
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sync.Queue().Discard(r.Context(), id) {
		writeError(w, http.StatusNotFound, "mutation not in failed set: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	s.sync.Queue().ClearFailed(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.sync.Queue().ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
