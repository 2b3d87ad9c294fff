// Package testutils holds small helpers shared by package tests.
package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testT *testing.T

// SetT binds the helpers below to the running test.
func SetT(t *testing.T) {
	testT = t
}

// NoErr unwraps v and fails the test on err.
func NoErr[T any](v T, err error) T {
	require.NoError(testT, err)
	return v
}

// Err asserts err is non-nil and returns it.
func Err[T any](_ T, err error) error {
	require.Error(testT, err)
	return err
}
