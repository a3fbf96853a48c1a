package hexprot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labhex/hexprot/pkg/transport/pipe"
)

func newFramePair(t *testing.T) (client, server *Frame) {
	a, b := pipe.New()
	return NewFrame(a), NewFrame(b)
}

func TestUnsignedRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 31, 0xffffffff, 0x12345678}
	for _, v := range cases {
		w, r := newFramePair(t)
		require.NoError(t, PutUnsigned(w, v))
		got, err := GetUnsigned[uint32](r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestUnsignedEncodingIsLowercaseHex(t *testing.T) {
	a, b := pipe.New()
	w := NewFrame(a)
	require.NoError(t, PutUnsigned(w, uint32(0xABCDEF)))
	raw, err := b.ReadUntilTerminator(HexBuf)
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(raw))
}

func TestSignedRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 31, -31, math.MinInt32, math.MaxInt32}
	for _, v := range cases {
		w, r := newFramePair(t)
		require.NoError(t, PutSigned(w, v))
		got, err := GetSigned[int32](r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestSignedMinInt32EncodesWithDashPrefix(t *testing.T) {
	a, b := pipe.New()
	w := NewFrame(a)
	require.NoError(t, PutSigned(w, int32(math.MinInt32)))
	raw, err := b.ReadUntilTerminator(HexBuf)
	require.NoError(t, err)
	require.Equal(t, "-80000000", string(raw))
}

func TestFloat32RoundTrip(t *testing.T) {
	cases := []float32{0, 1, -1, 3.14159, -3.14159, math.MaxFloat32}
	for _, v := range cases {
		w, r := newFramePair(t)
		require.NoError(t, PutFloat32(w, v))
		got, err := GetFloat32(r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestFloat32BitsOfOne(t *testing.T) {
	a, b := pipe.New()
	w := NewFrame(a)
	require.NoError(t, PutFloat32(w, 1.0))
	raw, err := b.ReadUntilTerminator(HexBuf)
	require.NoError(t, err)
	require.Equal(t, "3f800000", string(raw))
}

func TestFloat64NarrowsThroughFloat32(t *testing.T) {
	w, r := newFramePair(t)
	require.NoError(t, PutFloat64(w, 1.5))
	got, err := GetFloat64(r)
	require.NoError(t, err)
	require.Equal(t, 1.5, got)
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "with spaces", "0123456789abcdef"}
	for _, s := range cases {
		w, r := newFramePair(t)
		require.NoError(t, PutString(w, s))
		got, err := GetString(r)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestEmptyStringRoundTripsAsSingleTerminator(t *testing.T) {
	a, b := pipe.New()
	w := NewFrame(a)
	require.NoError(t, PutString(w, ""))
	raw, err := b.ReadUntilTerminator(HexBuf)
	require.NoError(t, err)
	require.Empty(t, raw)
}

func TestGetUnsignedOverflowIsDecodeOverflow(t *testing.T) {
	a, b := pipe.New()
	w := NewFrame(a)
	require.NoError(t, w.putTerminated("ffffffff1"))
	r := NewFrame(b)
	_, err := GetUnsigned[uint32](r)
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, KindDecodeOverflow, pe.Kind)
}
