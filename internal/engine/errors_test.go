package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	cause := errors.New("log integrity: 1 violation(s)")

	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			name: "code and message",
			err:  &RuntimeError{Code: ErrCodeInvalidAppend, Message: "bad"},
			want: "INVALID_APPEND: bad",
		},
		{
			name: "with session",
			err:  &RuntimeError{Code: ErrCodeInvalidAppend, Message: "bad", SessionID: "s1"},
			want: "INVALID_APPEND: bad (session=s1)",
		},
		{
			name: "with cause",
			err:  NewCorruptLogError("s1", cause),
			want: "CORRUPT_LOG: raw log failed integrity check (session=s1): log integrity: 1 violation(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsCorruptLogError(t *testing.T) {
	cause := errors.New("boom")
	err := NewCorruptLogError("s1", cause)

	assert.True(t, IsCorruptLogError(err))
	assert.True(t, IsCorruptLogError(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, cause)

	assert.False(t, IsCorruptLogError(&RuntimeError{Code: ErrCodeInvalidAppend}))
	assert.False(t, IsCorruptLogError(cause))
	assert.False(t, IsCorruptLogError(nil))
}
