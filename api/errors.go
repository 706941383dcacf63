package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/omron-net/omron-node/log"
)

// Error is used by handler functions to wrap the errors sent to clients,
// adding the machine-readable Code and the HTTP status to reply with.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// ErrorMsg is the wire format of an API error.
type ErrorMsg struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (e Error) Error() string {
	return e.Err.Error()
}

// Withf returns a copy of Error with the Sprintf formatted string appended
// at the end of e.Err.
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of Error with err appended at the end of e.Err.
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// Write serializes the error as JSON and sends it with the error's HTTP
// status. A 204 sends no body at all.
func (e Error) Write(w http.ResponseWriter) {
	if e.HTTPstatus == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	msg, err := json.Marshal(ErrorMsg{Error: e.Err.Error(), Code: e.Code})
	if err != nil {
		log.Warnw("could not marshal error message", "error", err.Error())
		http.Error(w, e.Err.Error(), e.HTTPstatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(msg); err != nil {
		log.Warnw("failed to write http response", "error", err.Error())
	}
}
