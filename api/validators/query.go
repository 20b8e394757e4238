package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryError(key, message string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer in [lo, hi], returning def when absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, key+" must be numeric", nil)
	}
	if value < lo || value > hi {
		return 0, queryError(key, key+" out of range", map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

// ParseQueryBool reads an optional boolean. Absent values yield nil so callers
// can tell "not filtered" from false.
func ParseQueryBool(r *http.Request, key string) (*bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, queryError(key, key+" must be a boolean", nil)
	}
	return &value, nil
}
