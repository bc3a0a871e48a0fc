package assets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludes(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "pizarra")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "pizarra")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other keys are independent.
	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock() // idempotent

	again, err := l.Lock(context.Background(), "pizarra")
	require.NoError(t, err)
	again()
}
