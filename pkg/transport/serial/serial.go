// Package serial implements hexprot.Transport over a physical or
// virtual COM port using go.bug.st/serial.
package serial

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/labhex/hexprot/pkg/hexprot"
)

// Config carries the transport configuration spec.md §6 requires on
// session start: baud is caller-specified, data bits 8 / parity none
// / stop bits 1 / handshaking off are the defaults, and AnswerTimeout
// bounds every blocking read.
type Config struct {
	BaudRate      int
	Parity        serial.Parity
	StopBits      serial.StopBits
	AnswerTimeout time.Duration
}

// DefaultConfig returns the spec defaults for baudRate.
func DefaultConfig(baudRate int) Config {
	return Config{
		BaudRate:      baudRate,
		Parity:        serial.NoParity,
		StopBits:      serial.OneStopBit,
		AnswerTimeout: 500 * time.Millisecond,
	}
}

// Serial implements hexprot.Transport, hexprot.Timeouts and
// hexprot.Purger over an OS serial port.
type Serial struct {
	port serial.Port

	mu       sync.Mutex
	timeout  time.Duration
	peeked   bool
	peekByte byte
}

// Open opens portName with cfg and applies its answer timeout.
func Open(portName string, cfg Config) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(cfg.AnswerTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set read timeout: %w", err)
	}
	return &Serial{port: port, timeout: cfg.AnswerTimeout}, nil
}

// Close releases the underlying OS handle.
func (s *Serial) Close() error {
	return s.port.Close()
}

// WriteByte implements hexprot.Transport.
func (s *Serial) WriteByte(b byte) error {
	n, err := s.port.Write([]byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("serial: short write (%d of 1)", n)
	}
	return nil
}

// WriteBuffer implements hexprot.Transport.
func (s *Serial) WriteBuffer(buf []byte) error {
	n, err := s.port.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("serial: short write (%d of %d)", n, len(buf))
	}
	return nil
}

// ReadByte implements hexprot.Transport, consuming a previously
// peeked byte from HasByte first if one is pending.
func (s *Serial) ReadByte() (byte, error) {
	s.mu.Lock()
	if s.peeked {
		s.peeked = false
		b := s.peekByte
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	buf := make([]byte, 1)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return buf[0], nil
		}
	}
}

// HasByte implements hexprot.Transport by briefly switching the port
// to non-blocking reads to peek for a pending byte, then restoring
// the configured answer timeout.
func (s *Serial) HasByte() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peeked {
		return true
	}
	if err := s.port.SetReadTimeout(0); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := s.port.Read(buf)
	s.port.SetReadTimeout(s.timeout)
	if err != nil || n == 0 {
		return false
	}
	s.peeked = true
	s.peekByte = buf[0]
	return true
}

// ReadUntilTerminator implements hexprot.Transport.
func (s *Serial) ReadUntilTerminator(max int) ([]byte, error) {
	buf := make([]byte, 0, max)
	for {
		b, err := s.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == hexprot.TERM {
			return buf, nil
		}
		buf = append(buf, b)
	}
}

// SetAnswerTimeout implements hexprot.Timeouts.
func (s *Serial) SetAnswerTimeout(d time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.timeout
	if err := s.port.SetReadTimeout(d); err != nil {
		return prev, err
	}
	s.timeout = d
	return prev, nil
}

// Purge implements hexprot.Purger, discarding buffered input and
// output before a fresh probe.
func (s *Serial) Purge() error {
	s.mu.Lock()
	s.peeked = false
	s.mu.Unlock()
	if err := s.port.ResetInputBuffer(); err != nil {
		return err
	}
	return s.port.ResetOutputBuffer()
}
