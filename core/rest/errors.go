package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/docstack-tech/docstack/core/logger"
	"github.com/docstack-tech/docstack/core/storage"
)

type coder interface {
	Code() int
}

type statusCoder interface {
	StatusCode() int
}

// normalizeError maps any error to a transport error. Storage errors pass
// through untouched, so their code and validation details survive all the
// way to the response. Other errors are probed for a numeric code and fall
// back to 500.
func normalizeError(err error) *storage.Error {
	if e, ok := err.(*storage.Error); ok {
		return e
	}
	code := http.StatusInternalServerError
	if c, ok := err.(coder); ok {
		code = c.Code()
	} else if c, ok := err.(statusCoder); ok {
		code = c.StatusCode()
	}
	return storage.NewError(code, err.Error())
}

type errorResponse struct {
	Code    int      `json:"code"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// writeError renders err as a JSON error response. Validation details in
// the Errors slice are preserved verbatim.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := normalizeError(err)
	if e.Code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Errorln(e.Message)
	}
	writeJSON(w, e.Code, errorResponse{
		Code:    e.Code,
		Error:   http.StatusText(e.Code),
		Message: e.Message,
		Errors:  e.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	body, err := json.MarshalWithOption(value, json.DisableHTMLEscape())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
