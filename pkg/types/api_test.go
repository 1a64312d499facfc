package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIs_MatchesByKind(t *testing.T) {
	err := Invalidf("bad pool id %d", 7)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.NotErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, "bad pool id 7", err.Error())

	wrapped := fmt.Errorf("addPool: %w", Capacityf("too many pools"))
	require.ErrorIs(t, wrapped, ErrCapacityExceeded)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, ErrKindCapacityExceeded, kind)
}

func TestAborted_WrapsCause(t *testing.T) {
	err := Aborted(context.Canceled)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "slab release aborted: context canceled", err.Error())
}

func TestInvalidWrap_KeepsSentinel(t *testing.T) {
	sentinel := errors.New("alloc: chunk not owned")
	err := InvalidWrap(sentinel, "free %s", Handle(64))
	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestKindOf_PlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	require.False(t, ok)
}

func TestHandle_Nil(t *testing.T) {
	require.True(t, NilHandle.IsNil())
	require.False(t, Handle(0).IsNil())
	require.Equal(t, "handle(nil)", NilHandle.String())
	require.Equal(t, "handle(0x40)", Handle(64).String())
}
