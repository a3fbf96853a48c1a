package hexprot

// Initiator drives request/response exchanges from the host side of a
// started Session. Every exchange is a strict left-to-right
// short-circuit chain guarded by a Transaction: the first failing step
// aborts the rest and is returned to the caller, and the remainder of
// the chain is never attempted.
type Initiator struct {
	session *Session
}

// NewInitiator wraps s for initiator-side exchanges.
func NewInitiator(s *Session) *Initiator {
	return &Initiator{session: s}
}

func (i *Initiator) begin() (*Transaction, error) {
	if !i.session.Started() {
		return nil, ErrNotStarted
	}
	return beginTransaction(&i.session.guard), nil
}

func (i *Initiator) frame() *Frame {
	return i.session.Frame
}

// Task runs a no-argument, no-result exchange: put_cmd(c) -> check_reply(c).
func (i *Initiator) Task(c Command) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelTask runs a channel-qualified no-argument exchange:
// put_cmd(c) -> put(chan) -> check_reply(c).
func (i *Initiator) ChannelTask(c Command, ch Channel) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// Get1 runs put_cmd(c) -> check_reply(c) -> get(T).
func Get1[T Unsigned](i *Initiator, c Command) (T, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[T](f)
}

// Get2 runs put_cmd(c) -> check_reply(c) -> get(T) -> get(U).
func Get2[T, U Unsigned](i *Initiator, c Command) (T, U, error) {
	t, err := i.begin()
	if err != nil {
		return 0, 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return 0, 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, 0, err
	}
	v1, err := GetUnsigned[T](f)
	if err != nil {
		return 0, 0, err
	}
	v2, err := GetUnsigned[U](f)
	if err != nil {
		return 0, 0, err
	}
	return v1, v2, nil
}

// ChannelGet1 runs put_cmd(c) -> put(chan) -> check_reply(c) -> get(T).
func ChannelGet1[T Unsigned](i *Initiator, c Command, ch Channel) (T, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[T](f)
}

// ChannelGet2 runs put_cmd(c) -> put(chan) -> check_reply(c) -> get(T) -> get(U).
func ChannelGet2[T, U Unsigned](i *Initiator, c Command, ch Channel) (T, U, error) {
	t, err := i.begin()
	if err != nil {
		return 0, 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return 0, 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, 0, err
	}
	v1, err := GetUnsigned[T](f)
	if err != nil {
		return 0, 0, err
	}
	v2, err := GetUnsigned[U](f)
	if err != nil {
		return 0, 0, err
	}
	return v1, v2, nil
}

// ChannelGetString runs put_cmd(c) -> put(chan) -> check_reply(c) -> get_string(buf).
func (i *Initiator) ChannelGetString(c Command, ch Channel) (string, error) {
	t, err := i.begin()
	if err != nil {
		return "", err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return "", err
	}
	if err := f.CheckReply(c); err != nil {
		return "", err
	}
	return GetString(f)
}

// GetString runs put_cmd(c) -> check_reply(c) -> get_string(buf).
func (i *Initiator) GetString(c Command) (string, error) {
	t, err := i.begin()
	if err != nil {
		return "", err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return "", err
	}
	if err := f.CheckReply(c); err != nil {
		return "", err
	}
	return GetString(f)
}

// Set1 runs put_cmd(c) -> put(v) -> check_reply(c).
func Set1[T Unsigned](i *Initiator, c Command, v T) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutUnsigned(f, v); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// Set2 runs put_cmd(c) -> put(v1) -> put(v2) -> check_reply(c).
func Set2[T, U Unsigned](i *Initiator, c Command, v1 T, v2 U) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutUnsigned(f, v1); err != nil {
		return err
	}
	if err := PutUnsigned(f, v2); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelSet1 runs put_cmd(c) -> put(chan) -> put(v) -> check_reply(c).
func ChannelSet1[T Unsigned](i *Initiator, c Command, ch Channel, v T) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutUnsigned(f, v); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelSet2 runs put_cmd(c) -> put(chan) -> put(v1) -> put(v2) -> check_reply(c).
func ChannelSet2[T, U Unsigned](i *Initiator, c Command, ch Channel, v1 T, v2 U) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutUnsigned(f, v1); err != nil {
		return err
	}
	if err := PutUnsigned(f, v2); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelSetString runs put_cmd(c) -> put(chan) -> put_string(s) -> check_reply(c).
func (i *Initiator) ChannelSetString(c Command, ch Channel, s string) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutString(f, s); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// SetString runs put_cmd(c) -> put_string(s) -> check_reply(c).
func (i *Initiator) SetString(c Command, s string) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutString(f, s); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// SetArray streams vals to the responder under command c: it first
// queries the remote's max size, fails with KindPayloadTooLarge if
// vals does not fit, then sends each element followed by a finalise
// step carrying the final length.
func SetArray[T Unsigned](i *Initiator, c Command, vals []T) error {
	maxSize, err := i.setArrayMaxSize(c)
	if err != nil {
		return err
	}
	if Size(len(vals)) > maxSize {
		return newErr("set-array", KindPayloadTooLarge, nil)
	}
	for idx, v := range vals {
		if err := setArrayElement(i, c, Size(idx), v); err != nil {
			return err
		}
	}
	return i.setArrayFinished(c, Size(len(vals)))
}

func (i *Initiator) setArrayMaxSize(c Command) (Size, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArraySize)); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[Size](f)
}

func setArrayElement[T Unsigned](i *Initiator, c Command, idx Size, v T) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayElement)); err != nil {
		return err
	}
	if err := PutUnsigned(f, idx); err != nil {
		return err
	}
	if err := PutUnsigned(f, v); err != nil {
		return err
	}
	return f.CheckReply(c)
}

func (i *Initiator) setArrayFinished(c Command, length Size) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayFinished)); err != nil {
		return err
	}
	if err := PutUnsigned(f, length); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelSetArray is SetArray addressed to a specific channel: the
// channel is sent immediately after the command byte on every
// sub-exchange, exactly as ChannelTask addresses a plain command.
func ChannelSetArray[T Unsigned](i *Initiator, c Command, ch Channel, vals []T) error {
	maxSize, err := i.channelSetArrayMaxSize(c, ch)
	if err != nil {
		return err
	}
	if Size(len(vals)) > maxSize {
		return newErr("set-array", KindPayloadTooLarge, nil)
	}
	for idx, v := range vals {
		if err := setArrayElementChannel(i, c, ch, Size(idx), v); err != nil {
			return err
		}
	}
	return i.channelSetArrayFinished(c, ch, Size(len(vals)))
}

func (i *Initiator) channelSetArrayMaxSize(c Command, ch Channel) (Size, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArraySize)); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[Size](f)
}

func setArrayElementChannel[T Unsigned](i *Initiator, c Command, ch Channel, idx Size, v T) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayElement)); err != nil {
		return err
	}
	if err := PutUnsigned(f, idx); err != nil {
		return err
	}
	if err := PutUnsigned(f, v); err != nil {
		return err
	}
	return f.CheckReply(c)
}

func (i *Initiator) channelSetArrayFinished(c Command, ch Channel, length Size) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayFinished)); err != nil {
		return err
	}
	if err := PutUnsigned(f, length); err != nil {
		return err
	}
	return f.CheckReply(c)
}

// ChannelGetArray is GetArray addressed to a specific channel.
func ChannelGetArray[T Unsigned](i *Initiator, c Command, ch Channel, maxLen Size) ([]T, error) {
	if err := i.channelGetArrayStarting(c, ch); err != nil {
		return nil, err
	}
	size, err := i.channelGetArraySize(c, ch)
	if err != nil {
		return nil, err
	}
	if size > maxLen {
		return nil, newErr("get-array", KindPayloadTooLarge, nil)
	}
	out := make([]T, size)
	for idx := Size(0); idx < size; idx++ {
		v, err := getArrayElementChannel[T](i, c, ch, idx)
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

func (i *Initiator) channelGetArrayStarting(c Command, ch Channel) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayStarting)); err != nil {
		return err
	}
	return f.CheckReply(c)
}

func (i *Initiator) channelGetArraySize(c Command, ch Channel) (Size, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArraySize)); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[Size](f)
}

func getArrayElementChannel[T Unsigned](i *Initiator, c Command, ch Channel, idx Size) (T, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutChannelCommand(c, ch); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayElement)); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, idx); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[T](f)
}

// GetArray signals array start, queries the current size (failing
// with KindPayloadTooLarge if it exceeds maxLen), then reads each
// element in turn.
func GetArray[T Unsigned](i *Initiator, c Command, maxLen Size) ([]T, error) {
	if err := i.getArrayStarting(c); err != nil {
		return nil, err
	}
	size, err := i.getArraySize(c)
	if err != nil {
		return nil, err
	}
	if size > maxLen {
		return nil, newErr("get-array", KindPayloadTooLarge, nil)
	}
	out := make([]T, size)
	for idx := Size(0); idx < size; idx++ {
		v, err := getArrayElement[T](i, c, idx)
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

func (i *Initiator) getArrayStarting(c Command) error {
	t, err := i.begin()
	if err != nil {
		return err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayStarting)); err != nil {
		return err
	}
	return f.CheckReply(c)
}

func (i *Initiator) getArraySize(c Command) (Size, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArraySize)); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[Size](f)
}

func getArrayElement[T Unsigned](i *Initiator, c Command, idx Size) (T, error) {
	t, err := i.begin()
	if err != nil {
		return 0, err
	}
	defer t.Close()

	f := i.frame()
	if err := f.PutCommand(c); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, byte(SubCmdArrayElement)); err != nil {
		return 0, err
	}
	if err := PutUnsigned(f, idx); err != nil {
		return 0, err
	}
	if err := f.CheckReply(c); err != nil {
		return 0, err
	}
	return GetUnsigned[T](f)
}
