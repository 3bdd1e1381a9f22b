package cerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agileboard/pkg/storage"
)

func TestFromConnectError_RoundTrip(t *testing.T) {
	orig := NewError(InvalidArgument, "invalid task", nil).AddViolation("status", "unknown status \"LATER\"")
	converted := FromConnectError(orig.ConnectError())

	require.NotNil(t, converted)
	assert.Equal(t, InvalidArgument, converted.Code)
	assert.Equal(t, "invalid task", converted.Msg)
	assert.Equal(t, []string{"unknown status \"LATER\""}, converted.Violations())
}

func TestFromConnectError_TransportFailure(t *testing.T) {
	assert.Equal(t, Unavailable, FromConnectError(errors.New("dial tcp: refused")).Code)
	assert.Equal(t, DeadlineExceeded, FromConnectError(fmt.Errorf("call: %w", context.DeadlineExceeded)).Code)
	assert.Nil(t, FromConnectError(nil))
}

func TestExtractConnectError(t *testing.T) {
	ctx := context.Background()

	err := ExtractConnectError(ctx, NewError(NotFound, "task not found", nil))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	err = ExtractConnectError(ctx, errors.New("boom"))
	assert.Equal(t, connect.CodeUnknown, connect.CodeOf(err))

	err = ExtractConnectError(ctx, context.Canceled)
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(err))

	assert.NoError(t, ExtractConnectError(ctx, nil))
}

func TestWrapStorageReadError(t *testing.T) {
	err := WrapStorageReadError("task", fmt.Errorf("tasks/x.yaml: %w", storage.ErrNotFound))
	assert.True(t, IsCode(err, NotFound))

	err = WrapStorageReadError("task", errors.New("disk on fire"))
	assert.True(t, IsCode(err, Internal))
}

func TestCode_Mapping(t *testing.T) {
	for c := Canceled; c <= Unauthenticated; c++ {
		assert.Equal(t, c, NewCodeFromConnectError(connect.NewError(c.ConnectCode(), errors.New("x"))), c.String())
	}
	assert.Equal(t, 401, Unauthenticated.HTTPCode())
	assert.True(t, Unavailable.Retryable())
	assert.False(t, InvalidArgument.Retryable())
}
