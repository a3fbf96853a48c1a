package pipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeWritesAreReadableOnPeer(t *testing.T) {
	a, b := New()
	require.NoError(t, a.WriteBuffer([]byte("hi")))
	require.NoError(t, a.WriteByte(0x04))

	require.True(t, b.HasByte())
	got, err := b.ReadUntilTerminator(16)
	require.NoError(t, err)
	require.Equal(t, "hi", string(got))
}

func TestPipeReadByteTimesOutWhenEmpty(t *testing.T) {
	a, _ := New()
	_, err := a.SetAnswerTimeout(10 * time.Millisecond)
	require.NoError(t, err)
	_, err = a.ReadByte()
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPipePurgeDrainsBufferedBytes(t *testing.T) {
	a, b := New()
	require.NoError(t, a.WriteBuffer([]byte{1, 2, 3}))
	require.True(t, b.HasByte())
	require.NoError(t, b.Purge())
	require.False(t, b.HasByte())
}
