package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	transient := fmt.Errorf("publish: %w", Transient(cause))
	assert.True(t, IsTransientError(transient))
	assert.False(t, IsContentError(transient))
	assert.ErrorIs(t, transient, cause)

	content := Content(cause)
	assert.True(t, IsContentError(content))
	assert.False(t, IsTransientError(content))

	assert.Nil(t, Transient(nil))
	assert.Nil(t, Content(nil))

	assert.False(t, IsTransientError(Transient(context.Canceled)))

	persist := &Error{Code: ErrCodePersistence, Message: "save ledger", Err: cause}
	assert.True(t, IsPersistenceError(persist))
	assert.True(t, IsFatal(persist))
	assert.False(t, IsFatal(content))
}

func TestError_Message(t *testing.T) {
	err := &Error{Code: ErrCodePersistence, Message: "save ledger", Err: errors.New("disk full")}
	assert.Equal(t, "PERSISTENCE: save ledger: disk full", err.Error())

	err = &Error{Code: ErrCodeInvariant, SourceID: "at://x", Err: errors.New("dup")}
	assert.Equal(t, "INVARIANT: dup (source=at://x)", err.Error())
}
