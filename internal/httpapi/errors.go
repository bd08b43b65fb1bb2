package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cantido/hematite/internal/api"
	"github.com/cantido/hematite/internal/auth"
	"github.com/cantido/hematite/internal/codec"
	"github.com/cantido/hematite/internal/registry"
	"github.com/cantido/hematite/internal/streamlog"
	"go.uber.org/zap"
)

// statusFor maps a core error to the HTTP status code the facade
// contract requires.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrStreamNotFound), errors.Is(err, api.ErrStreamNotFound):
		return http.StatusNotFound
	case errors.Is(err, streamlog.ErrRevisionMismatch), errors.Is(err, streamlog.ErrSourceIDConflict):
		return http.StatusConflict
	case errors.Is(err, streamlog.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, codec.ErrDecodeFailed):
		return http.StatusInternalServerError
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err with its correlation id and writes a generic
// error document, per the policy that internal detail never reaches
// the client directly.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := statusFor(err)
	requestID := requestIDFrom(r.Context())

	log.Error("request failed",
		zap.String("request_id", requestID),
		zap.Int("status", status),
		zap.Error(err),
	)

	doc := document{
		Errors: []errorObject{{
			Status: strconv.Itoa(status),
			Title:  http.StatusText(status),
			Detail: "request " + requestID + " failed",
		}},
	}
	writeJSON(w, status, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
