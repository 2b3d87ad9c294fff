package fqcodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReentryCount(t *testing.T) {
	const interval = 100
	c := codel{count: 10, lastCount: 4, dropNext: 1000}

	// next drop still ahead of now
	require.Equal(t, uint32(6), c.reentryCount(990, interval))
	// shortly after the last scheduled drop
	require.Equal(t, uint32(6), c.reentryCount(1500, interval))
	// long after
	require.Equal(t, uint32(1), c.reentryCount(1000+16*interval, interval))

	c.lastCount = 9
	require.Equal(t, uint32(1), c.reentryCount(990, interval))
}
