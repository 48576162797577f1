package bootstrap

import (
	"net/http"

	"github.com/meridianhq/eventcore/pkg/errors"
)

// statusByKind maps the error taxonomy's Kind to an HTTP-style status.
// There is no public HTTP command API in this repo's scope -- spec.md §1
// places controllers out of scope -- but the mapping is still part of
// the error taxonomy's contract (spec.md §7). Only tests call
// StatusForKind; the health surface sets its status codes directly.
var statusByKind = map[errors.Kind]int{
	errors.KindValidation:     http.StatusBadRequest,
	errors.KindNotFound:       http.StatusNotFound,
	errors.KindConflict:       http.StatusConflict,
	errors.KindOptimisticLock: http.StatusConflict,
	errors.KindUnauthorized:   http.StatusUnauthorized,
	errors.KindForbidden:      http.StatusForbidden,
	errors.KindBusinessRule:   http.StatusUnprocessableEntity,
	errors.KindConcurrency:    http.StatusConflict,
	errors.KindInfrastructure: http.StatusBadGateway,
	errors.KindInternal:       http.StatusInternalServerError,
}

// StatusForKind returns the HTTP-style status for kind, defaulting to 500
// for any kind not in the table (there should be none).
func StatusForKind(kind errors.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}

	return http.StatusInternalServerError
}
