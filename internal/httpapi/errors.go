package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vllmd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestError is a malformed request, answered with an ErrorResponse
// rather than an operation result.
type requestError struct {
	status int
	msg    string
}

func (e requestError) Error() string { return e.msg }

// decodeJSONBody decodes an optional JSON body into dst. An empty body
// leaves dst untouched; a non-empty one must be declared as JSON.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return requestError{status: http.StatusUnsupportedMediaType, msg: "Content-Type must be application/json"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		// Oversized bodies also land here; report them as 400 to avoid leaking size details.
		return requestError{status: http.StatusBadRequest, msg: "invalid JSON body"}
	}
	return nil
}

func writeRequestError(w http.ResponseWriter, err error) {
	var re requestError
	if errors.As(err, &re) {
		writeJSONError(w, re.status, re.msg)
		return
	}
	writeJSONError(w, http.StatusBadRequest, err.Error())
}

// writeOpError reports a failed operation the way dashboard clients expect:
// HTTP 200 with status "error".
func writeOpError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusOK, types.OpResult{Status: types.ResultError, Message: err.Error()})
}
