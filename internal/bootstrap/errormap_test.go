package bootstrap

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianhq/eventcore/pkg/errors"
)

func TestStatusForKind_CoversEveryTaxonomyKind(t *testing.T) {
	kinds := []errors.Kind{
		errors.KindValidation,
		errors.KindNotFound,
		errors.KindConflict,
		errors.KindOptimisticLock,
		errors.KindUnauthorized,
		errors.KindForbidden,
		errors.KindBusinessRule,
		errors.KindConcurrency,
		errors.KindInfrastructure,
		errors.KindInternal,
	}

	for _, k := range kinds {
		assert.NotEqual(t, 0, StatusForKind(k), "kind %s must map to a status", k)
	}
}

func TestStatusForKind_OptimisticLockAndConcurrencyAreConflict(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusForKind(errors.KindOptimisticLock))
	assert.Equal(t, http.StatusConflict, StatusForKind(errors.KindConcurrency))
}

func TestStatusForKind_UnknownKindDefaultsToInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(errors.Kind("bogus")))
}
