package hexprot

import (
	"context"

	"github.com/golang/glog"
)

// TaskHandler implements a no-argument command. The returned bool
// selects Reply (true) or ReplyError (false).
type TaskHandler interface {
	HandleTask(ctx context.Context) bool
}

// TaskHandlerFunc is the func type of TaskHandler, mirroring the
// registration-table idiom used throughout this package.
type TaskHandlerFunc func(ctx context.Context) bool

// HandleTask implements TaskHandler.
func (f TaskHandlerFunc) HandleTask(ctx context.Context) bool { return f(ctx) }

// ChannelTaskHandlerFunc implements a channel-qualified no-argument
// command.
type ChannelTaskHandlerFunc func(ctx context.Context, ch Channel) bool

// Get1HandlerFunc produces one value for a get command. The bool
// result selects Reply+value (true) or ReplyError (false).
type Get1HandlerFunc func(ctx context.Context) (uint32, bool)

// Get2HandlerFunc produces two values for a get command.
type Get2HandlerFunc func(ctx context.Context) (uint32, uint32, bool)

// GetStringHandlerFunc produces a string for a get-string command.
type GetStringHandlerFunc func(ctx context.Context) (string, bool)

// Set1HandlerFunc consumes one value for a set command.
type Set1HandlerFunc func(ctx context.Context, v uint32) bool

// Set2HandlerFunc consumes two values for a set command.
type Set2HandlerFunc func(ctx context.Context, v1, v2 uint32) bool

// SetStringHandlerFunc consumes a string for a set-string command.
type SetStringHandlerFunc func(ctx context.Context, s string) bool

// ArrayStore is implemented by the handler backing a set-array /
// get-array command; MaxSize reports the remote's capacity, Get and
// Set access one element by index, and AfterSet/BeforeGet are
// optional hooks run at the finish/start of the exchange.
type ArrayStore interface {
	MaxSize() Size
	CurrentSize() Size
	Get(idx Size) (uint32, bool)
	Set(idx Size, v uint32) bool
	AfterSet(finalSize Size)
	BeforeGet()
}

// ChannelGet1HandlerFunc produces one value for a channel-qualified get
// command.
type ChannelGet1HandlerFunc func(ctx context.Context, ch Channel) (uint32, bool)

// ChannelGet2HandlerFunc produces two values for a channel-qualified get
// command.
type ChannelGet2HandlerFunc func(ctx context.Context, ch Channel) (uint32, uint32, bool)

// ChannelGetStringHandlerFunc produces a string for a channel-qualified
// get-string command.
type ChannelGetStringHandlerFunc func(ctx context.Context, ch Channel) (string, bool)

// ChannelSet1HandlerFunc consumes one value for a channel-qualified set
// command.
type ChannelSet1HandlerFunc func(ctx context.Context, ch Channel, v uint32) bool

// ChannelSet2HandlerFunc consumes two values for a channel-qualified set
// command.
type ChannelSet2HandlerFunc func(ctx context.Context, ch Channel, v1, v2 uint32) bool

// ChannelSetStringHandlerFunc consumes a string for a channel-qualified
// set-string command.
type ChannelSetStringHandlerFunc func(ctx context.Context, ch Channel, s string) bool

// ChannelArrayStore is ArrayStore addressed by channel: every access is
// qualified by which of the several devices behind the command it
// targets.
type ChannelArrayStore interface {
	MaxSize(ch Channel) Size
	CurrentSize(ch Channel) Size
	Get(ch Channel, idx Size) (uint32, bool)
	Set(ch Channel, idx Size, v uint32) bool
	AfterSet(ch Channel, finalSize Size)
	BeforeGet(ch Channel)
}

// handlerKind distinguishes the shape stored for a registered command.
type handlerKind int

const (
	kindTask handlerKind = iota
	kindChannelTask
	kindGet1
	kindGet2
	kindGetString
	kindSet1
	kindSet2
	kindSetString
	kindSetArray
	kindGetArray
	kindChannelGet1
	kindChannelGet2
	kindChannelGetString
	kindChannelSet1
	kindChannelSet2
	kindChannelSetString
	kindChannelSetArray
	kindChannelGetArray
)

type registration struct {
	kind             handlerKind
	task             TaskHandlerFunc
	channelTask      ChannelTaskHandlerFunc
	get1             Get1HandlerFunc
	get2             Get2HandlerFunc
	getString        GetStringHandlerFunc
	set1             Set1HandlerFunc
	set2             Set2HandlerFunc
	setString        SetStringHandlerFunc
	array            ArrayStore
	channelGet1      ChannelGet1HandlerFunc
	channelGet2      ChannelGet2HandlerFunc
	channelGetString ChannelGetStringHandlerFunc
	channelSet1      ChannelSet1HandlerFunc
	channelSet2      ChannelSet2HandlerFunc
	channelSetString ChannelSetStringHandlerFunc
	channelArray     ChannelArrayStore
}

// Responder serves incoming commands against a registration table of
// handlers, polling has_command and dispatching to the matching
// handler shape, exactly as spec'd: every accepted command byte
// terminates in exactly one Reply or ReplyError, unless the transport
// fails mid-exchange.
type Responder struct {
	session  *Session
	handlers map[Command]*registration
}

// NewResponder wraps s for responder-side dispatch.
func NewResponder(s *Session) *Responder {
	return &Responder{session: s, handlers: make(map[Command]*registration)}
}

// RegisterTask registers a no-argument command handler.
func (r *Responder) RegisterTask(c Command, h TaskHandlerFunc) {
	r.handlers[c] = &registration{kind: kindTask, task: h}
}

// RegisterChannelTask registers a channel-qualified no-argument
// command handler.
func (r *Responder) RegisterChannelTask(c Command, h ChannelTaskHandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelTask, channelTask: h}
}

// RegisterGet1 registers a one-value get command handler.
func (r *Responder) RegisterGet1(c Command, h Get1HandlerFunc) {
	r.handlers[c] = &registration{kind: kindGet1, get1: h}
}

// RegisterGet2 registers a two-value get command handler.
func (r *Responder) RegisterGet2(c Command, h Get2HandlerFunc) {
	r.handlers[c] = &registration{kind: kindGet2, get2: h}
}

// RegisterGetString registers a get-string command handler.
func (r *Responder) RegisterGetString(c Command, h GetStringHandlerFunc) {
	r.handlers[c] = &registration{kind: kindGetString, getString: h}
}

// RegisterSet1 registers a one-value set command handler.
func (r *Responder) RegisterSet1(c Command, h Set1HandlerFunc) {
	r.handlers[c] = &registration{kind: kindSet1, set1: h}
}

// RegisterSet2 registers a two-value set command handler.
func (r *Responder) RegisterSet2(c Command, h Set2HandlerFunc) {
	r.handlers[c] = &registration{kind: kindSet2, set2: h}
}

// RegisterSetString registers a set-string command handler.
func (r *Responder) RegisterSetString(c Command, h SetStringHandlerFunc) {
	r.handlers[c] = &registration{kind: kindSetString, setString: h}
}

// RegisterSetArray registers a set-array command handler backed by
// store.
func (r *Responder) RegisterSetArray(c Command, store ArrayStore) {
	r.handlers[c] = &registration{kind: kindSetArray, array: store}
}

// RegisterChannelGet1 registers a channel-qualified one-value get
// command handler.
func (r *Responder) RegisterChannelGet1(c Command, h ChannelGet1HandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelGet1, channelGet1: h}
}

// RegisterChannelGet2 registers a channel-qualified two-value get
// command handler.
func (r *Responder) RegisterChannelGet2(c Command, h ChannelGet2HandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelGet2, channelGet2: h}
}

// RegisterChannelGetString registers a channel-qualified get-string
// command handler.
func (r *Responder) RegisterChannelGetString(c Command, h ChannelGetStringHandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelGetString, channelGetString: h}
}

// RegisterChannelSet1 registers a channel-qualified one-value set
// command handler.
func (r *Responder) RegisterChannelSet1(c Command, h ChannelSet1HandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelSet1, channelSet1: h}
}

// RegisterChannelSet2 registers a channel-qualified two-value set
// command handler.
func (r *Responder) RegisterChannelSet2(c Command, h ChannelSet2HandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelSet2, channelSet2: h}
}

// RegisterChannelSetString registers a channel-qualified set-string
// command handler.
func (r *Responder) RegisterChannelSetString(c Command, h ChannelSetStringHandlerFunc) {
	r.handlers[c] = &registration{kind: kindChannelSetString, channelSetString: h}
}

// RegisterChannelSetArray registers a channel-qualified set-array
// command handler backed by store.
func (r *Responder) RegisterChannelSetArray(c Command, store ChannelArrayStore) {
	r.handlers[c] = &registration{kind: kindChannelSetArray, channelArray: store}
}

// RegisterChannelGetArray registers a channel-qualified get-array
// command handler backed by store.
func (r *Responder) RegisterChannelGetArray(c Command, store ChannelArrayStore) {
	r.handlers[c] = &registration{kind: kindChannelGetArray, channelArray: store}
}

// RegisterGetArray registers a get-array command handler backed by
// store.
func (r *Responder) RegisterGetArray(c Command, store ArrayStore) {
	r.handlers[c] = &registration{kind: kindGetArray, array: store}
}

// Serve runs the IDLE -> READ_CMD -> DISPATCH -> REPLY/REPLY_ERROR
// loop until ctx is cancelled or ServeOnce returns an error (a
// transport failure, or ErrNotStarted). It never blocks before reading a
// command byte: ServeOnce is called on every iteration and simply
// returns when no byte is pending.
func (r *Responder) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.ServeOnce(ctx); err != nil {
			return err
		}
	}
}

// ServeOnce polls has_command once; if a byte is pending it reads,
// dispatches, and replies. It is a no-op if nothing is pending, and
// returns ErrNotStarted while the session is not started.
func (r *Responder) ServeOnce(ctx context.Context) error {
	if !r.session.Started() {
		return ErrNotStarted
	}
	f := r.session.Frame
	if !f.HasCommand() {
		return nil
	}
	c, err := f.GetCommand()
	if err != nil {
		return newErr("serve", KindIO, err)
	}
	reg, ok := r.handlers[c]
	if !ok {
		glog.V(1).Infof("hexprot: unregistered command %#x", byte(c))
		_ = f.ReplyError()
		return nil
	}
	if err := r.dispatch(ctx, f, c, reg); err != nil {
		if isTransportFailure(err) {
			return err
		}
		if err.(*ProtocolError).Kind == KindDecodeOverflow {
			_ = f.ReplyError()
		}
		glog.V(2).Infof("hexprot: command %#x rejected: %v", byte(c), err)
	}
	return nil
}

// isTransportFailure reports whether err came from the underlying
// transport rather than from an expected protocol-level rejection
// (ReplyError, a failed argument decode). Only transport failures
// stop Serve's loop.
func isTransportFailure(err error) bool {
	pe, ok := err.(*ProtocolError)
	if !ok {
		return true
	}
	return pe.Kind == KindIO
}

func (r *Responder) dispatch(ctx context.Context, f *Frame, c Command, reg *registration) error {
	switch reg.kind {
	case kindTask:
		if reg.task(ctx) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindChannelTask:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		if reg.channelTask(ctx, ch) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindGet1:
		v, ok := reg.get1(ctx)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, v)

	case kindGet2:
		v1, v2, ok := reg.get2(ctx)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		if err := PutUnsigned(f, v1); err != nil {
			return err
		}
		return PutUnsigned(f, v2)

	case kindGetString:
		s, ok := reg.getString(ctx)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutString(f, s)

	case kindSet1:
		v, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if reg.set1(ctx, v) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindSet2:
		v1, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		v2, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if reg.set2(ctx, v1, v2) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindSetString:
		s, err := GetString(f)
		if err != nil {
			return err
		}
		if reg.setString(ctx, s) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindSetArray:
		return r.dispatchSetArray(f, c, reg.array)

	case kindGetArray:
		return r.dispatchGetArray(f, c, reg.array)

	case kindChannelGet1:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		v, ok := reg.channelGet1(ctx, ch)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, v)

	case kindChannelGet2:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		v1, v2, ok := reg.channelGet2(ctx, ch)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		if err := PutUnsigned(f, v1); err != nil {
			return err
		}
		return PutUnsigned(f, v2)

	case kindChannelGetString:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		s, ok := reg.channelGetString(ctx, ch)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutString(f, s)

	case kindChannelSet1:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		v, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if reg.channelSet1(ctx, ch, v) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindChannelSet2:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		v1, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		v2, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if reg.channelSet2(ctx, ch, v1, v2) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindChannelSetString:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		s, err := GetString(f)
		if err != nil {
			return err
		}
		if reg.channelSetString(ctx, ch, s) {
			return f.Reply(c)
		}
		return f.ReplyError()

	case kindChannelSetArray:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		return r.dispatchChannelSetArray(f, c, ch, reg.channelArray)

	case kindChannelGetArray:
		ch, err := GetSigned[Channel](f)
		if err != nil {
			return err
		}
		return r.dispatchChannelGetArray(f, c, ch, reg.channelArray)

	default:
		return f.ReplyError()
	}
}

func (r *Responder) dispatchSetArray(f *Frame, c Command, store ArrayStore) error {
	sub, err := GetUnsigned[byte](f)
	if err != nil {
		return err
	}
	switch Command(sub) {
	case SubCmdArraySize:
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, store.MaxSize())

	case SubCmdArrayElement:
		idx, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		v, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if idx >= store.MaxSize() {
			return f.ReplyError()
		}
		if !store.Set(idx, v) {
			return f.ReplyError()
		}
		return f.Reply(c)

	case SubCmdArrayFinished:
		finalSize, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		store.AfterSet(finalSize)
		return f.Reply(c)

	default:
		return f.ReplyError()
	}
}

func (r *Responder) dispatchGetArray(f *Frame, c Command, store ArrayStore) error {
	sub, err := GetUnsigned[byte](f)
	if err != nil {
		return err
	}
	switch Command(sub) {
	case SubCmdArrayStarting:
		store.BeforeGet()
		return f.Reply(c)

	case SubCmdArraySize:
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, store.CurrentSize())

	case SubCmdArrayElement:
		idx, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		if idx >= store.CurrentSize() {
			return f.ReplyError()
		}
		v, ok := store.Get(idx)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, v)

	default:
		return f.ReplyError()
	}
}

func (r *Responder) dispatchChannelSetArray(f *Frame, c Command, ch Channel, store ChannelArrayStore) error {
	sub, err := GetUnsigned[byte](f)
	if err != nil {
		return err
	}
	switch Command(sub) {
	case SubCmdArraySize:
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, store.MaxSize(ch))

	case SubCmdArrayElement:
		idx, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		v, err := GetUnsigned[uint32](f)
		if err != nil {
			return err
		}
		if idx >= store.MaxSize(ch) {
			return f.ReplyError()
		}
		if !store.Set(ch, idx, v) {
			return f.ReplyError()
		}
		return f.Reply(c)

	case SubCmdArrayFinished:
		finalSize, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		store.AfterSet(ch, finalSize)
		return f.Reply(c)

	default:
		return f.ReplyError()
	}
}

func (r *Responder) dispatchChannelGetArray(f *Frame, c Command, ch Channel, store ChannelArrayStore) error {
	sub, err := GetUnsigned[byte](f)
	if err != nil {
		return err
	}
	switch Command(sub) {
	case SubCmdArrayStarting:
		store.BeforeGet(ch)
		return f.Reply(c)

	case SubCmdArraySize:
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, store.CurrentSize(ch))

	case SubCmdArrayElement:
		idx, err := GetUnsigned[Size](f)
		if err != nil {
			return err
		}
		if idx >= store.CurrentSize(ch) {
			return f.ReplyError()
		}
		v, ok := store.Get(ch, idx)
		if !ok {
			return f.ReplyError()
		}
		if err := f.Reply(c); err != nil {
			return err
		}
		return PutUnsigned(f, v)

	default:
		return f.ReplyError()
	}
}
