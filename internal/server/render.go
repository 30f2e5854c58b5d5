package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/waiter"
	"github.com/studiowebux/webpagetest/internal/wpt"
)

const (
	contentTypeJSON       = "application/json;charset=utf-8"
	contentTypeJavaScript = "application/javascript;charset=utf-8"
)

// errorBody is rendered as {"error": {"code": ..., "message": ...}}
type errorBody struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	TestID  string `json:"testId,omitempty"`
}

// writeJSON renders data as indented JSON, wrapped as callback(json); when
// a JSONP callback is given. It returns the status written.
func writeJSON(w http.ResponseWriter, status int, data any, callback string) int {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.MarshalIndent(map[string]any{
			"error": errorBody{Code: status, Message: err.Error()},
		}, "", "  ")
	}

	contentType := contentTypeJSON
	if callback != "" {
		contentType = contentTypeJavaScript
		body = []byte(callback + "(" + string(body) + ");")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body)
	return status
}

// ErrorPayload maps err to an HTTP status and the {"error": {...}} body.
// Remote API errors keep their status, timeouts answer 504, everything else 500.
func ErrorPayload(err error) (int, map[string]any) {
	var (
		apiErr     *executor.APIError
		timeoutErr *waiter.TimeoutError
	)

	status := http.StatusInternalServerError
	body := errorBody{Code: status, Message: err.Error()}
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		body = errorBody{Code: apiErr.StatusCode, Message: apiErr.Message}
	case errors.As(err, &timeoutErr):
		status = http.StatusGatewayTimeout
		body = errorBody{Code: timeoutErr.Code(), Message: timeoutErr.Error(), TestID: timeoutErr.TestID}
	case errors.Is(err, mapping.ErrUnknownCommand):
		status = http.StatusNotFound
		body.Code = status
	}

	return status, map[string]any{"error": body}
}

func writeError(w http.ResponseWriter, err error, callback string) int {
	status, body := ErrorPayload(err)
	return writeJSON(w, status, body, callback)
}

// writeResponse renders raw image bytes, raw HTML, {type, data} for images
// requested as data URI, or the JSON payload
func writeResponse(w http.ResponseWriter, res *wpt.Response, callback string) int {
	if raw, ok := res.Data.([]byte); ok && res.Binary {
		w.Header().Set("Content-Type", res.Type)
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
		return http.StatusOK
	}

	if s, ok := res.Data.(string); ok && res.Type != "" {
		if strings.HasPrefix(res.Type, "image/") {
			return writeJSON(w, http.StatusOK, map[string]any{"type": res.Type, "data": s}, callback)
		}
		if callback == "" {
			w.Header().Set("Content-Type", res.Type+";charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(s))
			return http.StatusOK
		}
	}

	return writeJSON(w, http.StatusOK, res.Data, callback)
}

type helpCommand struct {
	Info    string            `json:"info"`
	Param   string            `json:"param,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// help enumerates the commands served and the options each accepts
func help() map[string]any {
	commands := make(map[string]helpCommand, len(mapping.Commands))
	for _, cmd := range mapping.Commands {
		if cmd.Method == mapping.MethodListen {
			continue
		}
		hc := helpCommand{Info: cmd.Info, Param: cmd.Param, Options: map[string]string{}}
		for _, ns := range cmd.AllNamespaces() {
			for _, opt := range ns.Options {
				if _, taken := hc.Options[opt.Flag]; !taken {
					hc.Options[opt.Flag] = opt.Info
				}
			}
		}
		commands[cmd.Name] = hc
	}
	return map[string]any{"help": commands}
}
