package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendError_IsMatchesByKind(t *testing.T) {
	err := NewSendError(ConnectionClosed, nil)
	assert.True(t, errors.Is(err, ErrConnectionClosed))

	other := NewSendError(IoFailure, errors.New("broken pipe"))
	assert.False(t, errors.Is(other, ErrConnectionClosed))
}

func TestSendError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("write tcp: broken pipe")
	err := NewSendError(IoFailure, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "io failure")
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestListenError_Unwrap(t *testing.T) {
	cause := errors.New("address already in use")
	err := NewListenError("bind failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bind failed")
}

func TestServerError_Unwrap(t *testing.T) {
	cause := errors.New("too many open files")
	err := NewServerError("accept failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "accept failed")
}
