package guard_test

import (
	"errors"
	"testing"

	"routeopt/internal/pkg/guard"

	"github.com/stretchr/testify/assert"
)

var errQueryIsNotConstructed = errors.New("query is not constructed")

type query struct {
	guard guard.ConstructorGuard
}

func newQuery() query {
	return query{guard: guard.NewConstructorGuard()}
}

func (q query) Validate() error {
	return q.guard.Validate(errQueryIsNotConstructed)
}

func TestConstructorGuard_AcceptsConstructedValues(t *testing.T) {
	assert.NoError(t, newQuery().Validate())
}

func TestConstructorGuard_RejectsStructLiterals(t *testing.T) {
	err := query{}.Validate()

	assert.ErrorIs(t, err, errQueryIsNotConstructed)
}

func TestConstructorGuard_FallsBackToDefaultError(t *testing.T) {
	var g guard.ConstructorGuard

	assert.ErrorIs(t, g.Validate(nil), guard.ErrDefaultConstructorGuard)
	assert.NoError(t, guard.NewConstructorGuard().Validate(nil))
}
