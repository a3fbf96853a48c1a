package hexprot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labhex/hexprot/pkg/transport/pipe"
)

// readAll drains every byte currently queued on p without blocking,
// used to assert exact wire bytes for the literal scenarios below.
func readAll(t *testing.T, p *pipe.Pipe, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	for i := range buf {
		b, err := p.ReadByte()
		require.NoError(t, err)
		buf[i] = b
	}
	return buf
}

// TestScenarioASetU16Value mirrors: command SET=0x4d, value 31.
// Host -> Slave: 4d then 1f\x04. Slave -> Host: 4d\x04.
func TestScenarioASetU16Value(t *testing.T) {
	host, slave := pipe.New()
	hostFrame, slaveFrame := NewFrame(host), NewFrame(slave)

	const set Command = 0x4d
	require.NoError(t, hostFrame.PutCommand(set))
	require.NoError(t, PutUnsigned(hostFrame, uint32(31)))
	require.Equal(t, []byte{0x4d, '1', 'f', 0x04}, readAll(t, slave, 4))

	require.NoError(t, slaveFrame.Reply(set))
	require.Equal(t, []byte{'4', 'd', 0x04}, readAll(t, host, 3))
}

// TestScenarioBGetU16Value mirrors: command GET=0x4f, current value 31.
// Host -> Slave: 4f. Slave -> Host: 4f\x04 then 1f\x04.
func TestScenarioBGetU16Value(t *testing.T) {
	host, slave := pipe.New()

	const get Command = 0x4f
	hostFrame := NewFrame(host)
	require.NoError(t, hostFrame.PutCommand(get))
	require.Equal(t, []byte{0x4f}, readAll(t, slave, 1))

	slaveFrame := NewFrame(slave)
	require.NoError(t, slaveFrame.Reply(get))
	require.NoError(t, PutUnsigned(slaveFrame, uint32(31)))
	require.Equal(t, []byte{'4', 'f', 0x04, '1', 'f', 0x04}, readAll(t, host, 6))
}

// TestScenarioESignedRoundTrip mirrors: set i32=-1 under S=0x53.
// Host: 53 then -1\x04. Slave: 53\x04.
func TestScenarioESignedRoundTrip(t *testing.T) {
	host, slave := pipe.New()
	hostFrame := NewFrame(host)

	const cmd Command = 0x53
	require.NoError(t, hostFrame.PutCommand(cmd))
	require.NoError(t, PutSigned(hostFrame, int32(-1)))
	require.Equal(t, []byte{0x53, '-', '1', 0x04}, readAll(t, slave, 4))

	slaveFrame := NewFrame(slave)
	require.NoError(t, slaveFrame.Reply(cmd))
	require.Equal(t, []byte{'5', '3', 0x04}, readAll(t, host, 3))
}

// TestScenarioFFloatRoundTrip mirrors: set f32=1.0 (bits 0x3f800000)
// under command 0x46. Host: 46 then 3f800000\x04. Slave: 46\x04.
func TestScenarioFFloatRoundTrip(t *testing.T) {
	host, slave := pipe.New()
	hostFrame := NewFrame(host)

	const cmd Command = 0x46
	require.NoError(t, hostFrame.PutCommand(cmd))
	require.NoError(t, PutFloat32(hostFrame, 1.0))
	expect := append([]byte{0x46}, []byte("3f800000")...)
	expect = append(expect, 0x04)
	require.Equal(t, expect, readAll(t, slave, len(expect)))
}

func TestCheckReplySucceedsOnMatchingEcho(t *testing.T) {
	host, slave := pipe.New()
	hostFrame, slaveFrame := NewFrame(host), NewFrame(slave)

	const cmd Command = 0x4d
	require.NoError(t, slaveFrame.Reply(cmd))
	require.NoError(t, hostFrame.CheckReply(cmd))
}

func TestCheckReplyFailsOnMismatch(t *testing.T) {
	host, slave := pipe.New()
	hostFrame, slaveFrame := NewFrame(host), NewFrame(slave)

	require.NoError(t, slaveFrame.Reply(Command(0x01)))
	err := hostFrame.CheckReply(Command(0x02))
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, KindFraming, pe.Kind)
}

func TestReplyErrorAlwaysFailsAndEmitsErrorSentinel(t *testing.T) {
	host, slave := pipe.New()
	slaveFrame := NewFrame(slave)

	err := slaveFrame.ReplyError()
	require.Error(t, err)

	raw := readAll(t, host, 3)
	require.Equal(t, []byte("15"), raw[:2])
	require.Equal(t, byte(0x04), raw[2])
}

func TestCheckReplyFailsOnErrorSentinel(t *testing.T) {
	host, slave := pipe.New()
	hostFrame, slaveFrame := NewFrame(host), NewFrame(slave)

	require.Error(t, slaveFrame.ReplyError())
	err := hostFrame.CheckReply(Command(0x4d))
	require.Error(t, err)
}
