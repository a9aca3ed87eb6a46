package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/logger"
)

func TestDispatch_RoutesToRegisteredHandler(t *testing.T) {
	table := NewTable(logger.NewTestLogger(t))

	var got []byte
	table.Register(EventPush, func(ctx context.Context, payload []byte) (interface{}, error) {
		got = payload
		return "handled", nil
	})

	reply, err := table.Dispatch(context.Background(), EventPush, []byte(`{"id":"n1"}`))
	require.NoError(t, err)
	assert.Equal(t, "handled", reply)
	assert.JSONEq(t, `{"id":"n1"}`, string(got))
}

func TestDispatch_UnknownKindFails(t *testing.T) {
	table := NewTable(logger.NewTestLogger(t))
	_, err := table.Dispatch(context.Background(), EventSync, nil)
	assert.Error(t, err)
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	table := NewTable(logger.NewTestLogger(t))
	boom := errors.New("boom")
	table.Register(EventFetch, func(ctx context.Context, payload []byte) (interface{}, error) {
		return nil, boom
	})

	_, err := table.Dispatch(context.Background(), EventFetch, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegister_ReplacesBinding(t *testing.T) {
	table := NewTable(logger.NewTestLogger(t))
	table.Register(EventOnline, func(ctx context.Context, payload []byte) (interface{}, error) {
		return "first", nil
	})
	table.Register(EventOnline, func(ctx context.Context, payload []byte) (interface{}, error) {
		return "second", nil
	})

	reply, err := table.Dispatch(context.Background(), EventOnline, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", reply)
	assert.Len(t, table.Kinds(), 1)
}
