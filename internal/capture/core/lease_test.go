package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLease_Exclusive(t *testing.T) {
	var l Lease

	release, err := l.Acquire("record")
	require.NoError(t, err)
	assert.True(t, l.Held())

	_, err = l.Acquire("sample")
	require.Error(t, err)

	var rerr *ResourceError
	assert.ErrorAs(t, err, &rerr)

	release()
	assert.False(t, l.Held())

	// Free again after release
	release2, err := l.Acquire("sample")
	require.NoError(t, err)
	release2()
}

func TestLease_ReleaseIdempotent(t *testing.T) {
	var l Lease

	release, err := l.Acquire("record")
	require.NoError(t, err)

	release()
	release() // second call is a no-op

	// A later holder must not be evicted by a stale release
	release2, err := l.Acquire("sample")
	require.NoError(t, err)
	release()
	assert.True(t, l.Held())
	release2()
	assert.False(t, l.Held())
}
