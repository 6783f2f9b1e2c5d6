package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest      = "bad_request"
	ErrTypeNotFound        = "not_found"
	ErrTypeConflict        = "conflict"
	ErrTypeFeatureDisabled = "feature_disabled"
	ErrTypeRequestTooLarge = "request_too_large"
)

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error"`
}

// StatusCode returns the HTTP status code matching an error type.
func StatusCode(err error) int {
	switch errors.Type(err) {
	case ErrTypeBadRequest,
		quadtree.ErrTypeInvalidBox,
		tile.ErrTypeInvalidTile:
		return http.StatusBadRequest

	case ErrTypeNotFound:
		return http.StatusNotFound

	case ErrTypeConflict,
		quadtree.ErrTypeAlreadyLinked:
		return http.StatusConflict

	case ErrTypeFeatureDisabled:
		return http.StatusForbidden

	case ErrTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge

	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status code matching its type. Server
// errors are logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		logs.WithTag("method", r.Method).
			WithTag("path", r.URL.Path).
			Warn(err)
	}

	WriteJSON(w, code, ErrorResponse{
		Type:  errors.Type(err),
		Error: err.Error(),
	})
}

// WriteJSON writes v encoded as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
