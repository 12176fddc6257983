package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_run(t *testing.T) {
	t.Run("default length", func(t *testing.T) {
		out := &bytes.Buffer{}

		err := run(nil, out)

		require.NoError(t, err)
		key, err := hex.DecodeString(strings.TrimSpace(out.String()))
		require.NoError(t, err, "key should be hex encoded")
		require.Len(t, key, 32)
	})

	t.Run("custom length", func(t *testing.T) {
		out := &bytes.Buffer{}

		err := run([]string{"-n", "64"}, out)

		require.NoError(t, err)
		require.Len(t, strings.TrimSpace(out.String()), 128)
	})

	t.Run("keys differ", func(t *testing.T) {
		first, second := &bytes.Buffer{}, &bytes.Buffer{}

		require.NoError(t, run(nil, first))
		require.NoError(t, run(nil, second))

		require.NotEqual(t, first.String(), second.String())
	})

	t.Run("too short", func(t *testing.T) {
		err := run([]string{"--length", "8"}, &bytes.Buffer{})

		require.Error(t, err)
	})
}
