package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLease(t *testing.T) {
	l := NewLocalLease()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Independent rooms do not contend.
	ok, err = l.Acquire(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "r1"))
	ok, err = l.Acquire(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
}
