// Package handlers implements the HTTP handlers of the API server.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zetta-ds/carsigef/internal/domain/similarity"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps an application error onto its HTTP status. Internal
// detail beyond the AppError fields is never leaked.
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    string(apperrors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}
	writeJSON(w, appErr.Code.HTTPStatus(), ErrorResponse{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// parseSelection reads the five filter dimensions from query parameters.
// Each dimension accepts repeated parameters and comma-separated values;
// "uf" is accepted as an alias of "estado".
func parseSelection(r *http.Request) similarity.Selection {
	q := r.URL.Query()
	return similarity.Selection{
		Regions:        multiValue(q, "regiao"),
		States:         append(multiValue(q, "estado"), multiValue(q, "uf")...),
		Municipalities: multiValue(q, "municipio"),
		SizeClasses:    multiValue(q, "tamanho"),
		Statuses:       multiValue(q, "status"),
	}
}

func multiValue(q map[string][]string, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
