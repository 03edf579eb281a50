package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFailureKind(t *testing.T) {
	cases := map[string]error{
		"":              nil,
		"missing_input": fmt.Errorf("blur: %w: %s", ErrMissingInput, KeyImagePath),
		"decode":        fmt.Errorf("%w: bad header", ErrDecode),
		"encode":        fmt.Errorf("%w: short write", ErrEncode),
		"io":            fmt.Errorf("%w: permission denied", ErrIO),
		"unknown":       errors.New("boom"),
	}

	for want, err := range cases {
		require.Equal(t, want, FailureKind(err))
	}
}

func TestStateIsFinished(t *testing.T) {
	require.False(t, StateEnqueued.IsFinished())
	require.False(t, StateRunning.IsFinished())
	require.True(t, StateSucceeded.IsFinished())
	require.True(t, StateFailed.IsFinished())
}
