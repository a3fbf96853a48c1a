package hexprot

import (
	"time"

	"github.com/golang/glog"
)

// Role distinguishes which side of the symmetric protocol a Session
// plays.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// Timeouts is implemented by transports that support reconfiguring
// and restoring their answer timeout, used by TryStream.
type Timeouts interface {
	SetAnswerTimeout(time.Duration) (previous time.Duration, err error)
}

// Purger is implemented by transports that can discard buffered,
// unread bytes before a fresh probe.
type Purger interface {
	Purge() error
}

// Session binds a Transport to a Role with a started/ended lifecycle.
// Initiator exchanges and Responder.ServeOnce fail fast with
// ErrNotStarted while !started.
type Session struct {
	Role  Role
	Frame *Frame

	transport Transport
	started   bool
	guard     guard
}

// NewSession creates an unstarted session for t in the given role.
func NewSession(t Transport, role Role) *Session {
	return &Session{Role: role, Frame: NewFrame(t), transport: t}
}

// Start marks the session active. I/O before Start returns
// ErrNotStarted.
func (s *Session) Start() {
	s.started = true
	glog.V(2).Infof("hexprot: session started role=%s", s.Role)
}

// End marks the session inactive.
func (s *Session) End() {
	s.started = false
	glog.V(2).Infof("hexprot: session ended role=%s", s.Role)
}

// Started reports whether the session has been Start'd and not yet
// End'd.
func (s *Session) Started() bool {
	return s.started
}

// DetectionStatus is the outcome of TryStream.
type DetectionStatus int

const (
	CanCommunicate DetectionStatus = iota
	CannotCommunicate
	Misconfigured
)

func (d DetectionStatus) String() string {
	switch d {
	case CanCommunicate:
		return "can-communicate"
	case CannotCommunicate:
		return "cannot-communicate"
	case Misconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// TryStream runs the detection probe: configure the transport's
// answer timeout, wait the fixed quiescent period, start the
// session, purge stale bytes, invoke test against the now-started
// session's Initiator, end the session, and restore the previous
// answer timeout.
func (s *Session) TryStream(answerTimeout time.Duration, test func(*Initiator) error) (DetectionStatus, error) {
	var previous time.Duration
	if tc, ok := s.transport.(Timeouts); ok {
		prev, err := tc.SetAnswerTimeout(answerTimeout)
		if err != nil {
			return Misconfigured, newErr("try-stream", KindIO, err)
		}
		previous = prev
		defer func() {
			if _, err := tc.SetAnswerTimeout(previous); err != nil {
				glog.Errorf("hexprot: restoring answer timeout: %v", err)
			}
		}()
	}

	time.Sleep(QuiescentWait)

	s.Start()
	defer s.End()

	if p, ok := s.transport.(Purger); ok {
		if err := p.Purge(); err != nil {
			return Misconfigured, newErr("try-stream", KindIO, err)
		}
	}

	if err := test(NewInitiator(s)); err != nil {
		glog.V(1).Infof("hexprot: probe failed: %v", err)
		return CannotCommunicate, err
	}
	return CanCommunicate, nil
}
