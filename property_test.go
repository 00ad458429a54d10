package kvstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripArbitraryByteStrings(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	defer env.Close()

	w, err := WrapWriter(env)
	require.NoError(t, err)
	defer w.Commit()

	cases := [][]byte{
		{},
		[]byte("a"),
		[]byte("hello, world"),
		bytesOfLength(1 << 20),
		[]byte{0x00, 0x00, 0x00},
		[]byte("\x00binary\x00with\x00nulls\x00"),
	}
	for i, v := range cases {
		key := []byte(fmt.Sprintf("key-%d", i))
		require.NoError(t, w.WriteString(key, v))
		got, err := w.ReadString(key)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func bytesOfLength(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestOnlyWriterGoroutineCanMutate(t *testing.T) {
	dir := tempDir(t)
	env, err := Open("1", dir, "vanilla")
	require.NoError(t, err)
	defer env.Close()

	w, err := WrapWriter(env)
	require.NoError(t, err)
	defer w.Commit()

	for _, op := range []struct {
		name string
		run  func() error
	}{
		{"Write", func() error { return w.Write([]byte("k"), []byte("v")) }},
		{"WriteString", func() error { return w.WriteString([]byte("k"), []byte("v")) }},
	} {
		op := op
		t.Run(op.name, func(t *testing.T) {
			errCh := make(chan error, 1)
			go func() { errCh <- op.run() }()
			assert.ErrorIs(t, <-errCh, ErrWrongThread)
		})
	}
}
