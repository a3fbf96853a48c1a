package hexprot

import "time"

// Command identifies a wire operation: a single raw byte sent
// unterminated by the initiator, and echoed back hex-encoded and
// TERM-terminated by the responder.
type Command byte

// Channel addresses one of several devices behind a single command.
type Channel int8

// Size is the wire width used to transport array lengths and indices.
type Size uint16

const (
	// TERM delimits every encoded scalar, string and reply.
	TERM byte = 0x04
	// ERROR is sent by a responder in place of an echoed command to
	// signal that a request could not be completed.
	ERROR Command = 0x15

	// RADIX is the base used for all hex encoding on the wire.
	RADIX = 16
	// HexBuf bounds the digits of an encoded ulong plus an optional
	// leading '-' and terminator.
	HexBuf = 10
)

// Array sub-commands, carried through the command codec inside an
// array exchange.
const (
	SubCmdArraySize     Command = 0x01
	SubCmdArrayStarting Command = 0x02
	SubCmdArrayElement  Command = 0x03
	SubCmdArrayFinished Command = 0x04
)

// DefaultAnswerTimeout is the conventional transport answer timeout,
// for passing to Session.TryStream. Session.Start does not change the
// transport's timeout.
const DefaultAnswerTimeout = 500 * time.Millisecond

// QuiescentWait is the fixed delay observed after opening the
// transport and before the first detection probe.
const QuiescentWait = 2000 * time.Millisecond
