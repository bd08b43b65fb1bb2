package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cantido/hematite/internal/api"
	"github.com/cantido/hematite/internal/auth"
	"github.com/cantido/hematite/internal/codec"
	"github.com/cantido/hematite/internal/metrics"
	"github.com/cantido/hematite/internal/streamlog"
)

const (
	defaultPageOffset = 0
	defaultPageLimit  = 50
	maxPageLimit      = 1000
)

type server struct {
	facade  *api.Facade
	log     *zap.Logger
	metrics *metrics.Metrics
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.facade.CheckHealth()
	w.Header().Set("Cache-Control", "max-age=60")
	writeJSON(w, http.StatusOK, document{
		Data: resource{Type: "health", Attributes: healthAttributes{Status: health.Status}},
	})
}

func (s *server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	key := api.ParseSortKey(r.URL.Query().Get("sort"))

	streams, err := s.facade.Streams(userID, key)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	resources := make([]resource, len(streams))
	for i, st := range streams {
		resources[i] = streamResource(st)
	}
	writeJSON(w, http.StatusOK, document{Data: resources})
}

func (s *server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	streamID := chi.URLParam(r, "id")

	info, err := s.facade.GetStream(userID, streamID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, document{Data: streamResource(info)})
}

func (s *server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	streamID := chi.URLParam(r, "id")

	existed, err := s.facade.DeleteStream(userID, streamID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if !existed {
		writeError(w, r, s.log, api.ErrStreamNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	streamID := chi.URLParam(r, "id")

	offset, limit, err := parsePage(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, document{Errors: []errorObject{{
			Status: "400", Title: "invalid pagination parameters", Detail: err.Error(),
		}}})
		return
	}

	events, err := s.facade.GetEvents(userID, streamID, offset, limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	resources := make([]resource, len(events))
	for i, ev := range events {
		resources[i] = resource{
			Type:       "event",
			ID:         strconv.FormatUint(offset+uint64(i)+1, 10),
			Attributes: eventAttributes{Revision: offset + uint64(i) + 1, Event: ev},
		}
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, document{Data: resources})
}

func (s *server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	streamID := chi.URLParam(r, "id")

	revision, err := strconv.ParseUint(chi.URLParam(r, "revision"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, document{Errors: []errorObject{{
			Status: "400", Title: "invalid revision",
		}}})
		return
	}

	ev, err := s.facade.GetEvent(userID, streamID, revision)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if ev == nil {
		writeError(w, r, s.log, api.ErrStreamNotFound)
		return
	}

	w.Header().Set("Cache-Control", "max-age=31536000, immutable")
	writeJSON(w, http.StatusOK, document{
		Data: resource{
			Type:       "event",
			ID:         strconv.FormatUint(revision, 10),
			Attributes: eventAttributes{Revision: revision, Event: ev},
		},
	})
}

func (s *server) handleAppendEvents(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	streamID := chi.URLParam(r, "id")

	expected, err := parseExpectedRevision(r.URL.Query().Get("expected_revision"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, document{Errors: []errorObject{{
			Status: "400", Title: "invalid expected_revision", Detail: err.Error(),
		}}})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	events, err := parseEventBody(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, document{Errors: []errorObject{{
			Status: "400", Title: "invalid event body", Detail: err.Error(),
		}}})
		return
	}

	appendStart := time.Now()
	newRevision, err := s.facade.AppendEvents(userID, streamID, events, expected)
	s.metrics.AppendDuration.Observe(time.Since(appendStart).Seconds())
	if err != nil {
		s.metrics.AppendsTotal.WithLabelValues("error").Inc()
		writeError(w, r, s.log, err)
		return
	}
	s.metrics.AppendsTotal.WithLabelValues("ok").Inc()
	s.metrics.EventsAppended.Add(float64(len(events)))

	w.Header().Set("Content-Location", fmt.Sprintf("/streams/%s/events/%d", streamID, newRevision))
	writeJSON(w, http.StatusCreated, document{
		Data: resource{
			Type:       "stream",
			ID:         streamID,
			Attributes: streamAttributes{Revision: newRevision, State: streamlog.Running.String()},
		},
	})
}

func streamResource(info api.StreamInfo) resource {
	return resource{
		Type: "stream",
		ID:   info.ID,
		Attributes: streamAttributes{
			Revision:     info.Revision,
			State:        info.State.String(),
			LastModified: info.LastModified,
		},
	}
}

func parsePage(r *http.Request) (offset uint64, limit int, err error) {
	offset = defaultPageOffset
	limit = defaultPageLimit

	if raw := r.URL.Query().Get("page[offset]"); raw != "" {
		offset, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("page[offset]: %w", err)
		}
	}
	if raw := r.URL.Query().Get("page[limit]"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 0 {
			return 0, 0, fmt.Errorf("page[limit]: invalid value %q", raw)
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}

func parseExpectedRevision(raw string) (streamlog.ExpectedRevision, error) {
	switch raw {
	case "", "any":
		return streamlog.Any(), nil
	case "no-stream":
		return streamlog.NoStream(), nil
	case "stream-exists":
		return streamlog.StreamExists(), nil
	default:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return streamlog.ExpectedRevision{}, fmt.Errorf("unrecognized expected_revision %q", raw)
		}
		return streamlog.Exact(n), nil
	}
}

// parseEventBody decodes either a single event object or a JSON array of
// events, per the HTTP contract.
func parseEventBody(body []byte) ([]codec.Event, error) {
	var batch []codec.Event
	if err := json.Unmarshal(body, &batch); err == nil {
		if len(batch) == 0 {
			return nil, fmt.Errorf("event array must not be empty")
		}
		return batch, nil
	}

	var single codec.Event
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("body is neither a JSON object nor an array of objects")
	}
	return []codec.Event{single}, nil
}
