package herr

import (
	"errors"
	"testing"

	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/stretchr/testify/assert"
)

func TestStorageFaultWrapsAndUnwraps(t *testing.T) {
	base := errors.New("disk full")
	err := Storage("write_async", base)

	assert.True(t, IsKind(err, StorageError))
	assert.False(t, IsKind(err, ConfigurationError))
	assert.ErrorIs(t, err, base)
}

func TestStorageOfNilErrReturnsNil(t *testing.T) {
	assert.Nil(t, Storage("noop", nil))
}

func TestValidationOutcomeConstructors(t *testing.T) {
	assert.True(t, Accepted().Ok())
	assert.False(t, Rejected("bad entry hash").Ok())

	dep := holo.LinkableFromAction(holo.NewActionHash([]byte("x")))
	outcome := AwaitingOpDep(dep)
	assert.Equal(t, OutcomeAwaitingOpDep, outcome.Kind)
	assert.Equal(t, dep, outcome.Dep)
}
