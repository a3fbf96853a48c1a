package hexprot

// Transport abstracts the byte stream a Frame rides on. Implementations
// live under pkg/transport; the protocol core never imports a concrete
// one.
type Transport interface {
	// WriteByte delivers exactly one byte, or reports an error.
	WriteByte(b byte) error
	// WriteBuffer delivers buf in full; a short write is an error.
	WriteBuffer(buf []byte) error
	// ReadUntilTerminator reads and discards bytes up to and
	// including TERM, or until the transport's timeout elapses. The
	// returned slice never contains TERM.
	ReadUntilTerminator(max int) ([]byte, error)
	// HasByte reports, without blocking, whether a byte is available.
	HasByte() bool
	// ReadByte blocks for a single byte.
	ReadByte() (byte, error)
}

// Frame layers command framing and reply bookkeeping over a Transport.
type Frame struct {
	Transport Transport
}

// NewFrame wraps t.
func NewFrame(t Transport) *Frame {
	return &Frame{Transport: t}
}

func (f *Frame) putTerminated(s string) error {
	if err := f.Transport.WriteBuffer([]byte(s)); err != nil {
		return newErr("put", KindIO, err)
	}
	if err := f.Transport.WriteByte(TERM); err != nil {
		return newErr("put", KindIO, err)
	}
	return nil
}

func (f *Frame) readTerminated() (string, error) {
	b, err := f.Transport.ReadUntilTerminator(HexBuf)
	if err != nil {
		return "", newErr("get", KindIO, err)
	}
	return string(b), nil
}

// PutCommand writes a single raw, unterminated command byte.
func (f *Frame) PutCommand(c Command) error {
	if err := f.Transport.WriteByte(byte(c)); err != nil {
		return newErr("put-command", KindIO, err)
	}
	return nil
}

// PutChannelCommand writes the command byte followed by the channel,
// TERM-delimited via the signed codec.
func (f *Frame) PutChannelCommand(c Command, ch Channel) error {
	if err := f.PutCommand(c); err != nil {
		return err
	}
	return PutSigned(f, ch)
}

// Reply echoes c through the unsigned command codec.
func (f *Frame) Reply(c Command) error {
	return PutUnsigned(f, byte(c))
}

// ReplyError writes ERROR through the command codec and always
// reports failure to the caller.
func (f *Frame) ReplyError() error {
	if err := PutUnsigned(f, byte(ERROR)); err != nil {
		return err
	}
	return newErr("reply", KindFraming, nil)
}

// CheckReply reads a command-typed value and succeeds iff it equals c.
func (f *Frame) CheckReply(c Command) error {
	got, err := GetUnsigned[byte](f)
	if err != nil {
		return err
	}
	if Command(got) != c {
		return newErr("check-reply", KindFraming, nil)
	}
	return nil
}

// HasCommand polls for an incoming raw command byte without blocking.
func (f *Frame) HasCommand() bool {
	return f.Transport.HasByte()
}

// GetCommand blocks for a single incoming raw command byte.
func (f *Frame) GetCommand() (Command, error) {
	b, err := f.Transport.ReadByte()
	if err != nil {
		return 0, newErr("get-command", KindIO, err)
	}
	return Command(b), nil
}
