package optional_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/std/types/optional"
)

func TestOptional(t *testing.T) {
	option := optional.Some[uint32](42)
	require.True(t, option.IsSet())
	val, ok := option.Get()
	require.Equal(t, uint32(42), val)
	require.True(t, ok)
	require.Equal(t, "42", option.String())

	option.Unset()
	require.False(t, option.IsSet())
	require.Equal(t, uint32(0), option.GetOr(0))
	require.Equal(t, "none", option.String())
	require.Panics(t, func() { option.Unwrap() })

	wide := optional.CastInt[uint32, uint64](optional.Some[uint32](7))
	require.Equal(t, uint64(7), wide.Unwrap())
	require.False(t, optional.CastInt[uint32, uint64](optional.None[uint32]()).IsSet())
}
