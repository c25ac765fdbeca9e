package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/api"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed"),
	}
}

// pathAfter returns the path remainder following the prefix, with
// surrounding slashes trimmed. An empty remainder means the path named
// the collection, not an item.
func pathAfter(path, prefix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("path %s does not match prefix %s", path, prefix),
		}
	}
	return strings.Trim(strings.TrimPrefix(path, prefix), "/"), nil
}
