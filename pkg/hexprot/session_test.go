package hexprot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labhex/hexprot/pkg/transport/pipe"
)

func TestSessionFailsFastBeforeStart(t *testing.T) {
	a, _ := pipe.New()
	s := NewSession(a, RoleInitiator)
	require.False(t, s.Started())
	i := NewInitiator(s)
	err := i.Task(taskCmd)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSessionStartEndTogglesStarted(t *testing.T) {
	a, _ := pipe.New()
	s := NewSession(a, RoleInitiator)
	s.Start()
	require.True(t, s.Started())
	s.End()
	require.False(t, s.Started())
}

func TestTryStreamReportsCanCommunicate(t *testing.T) {
	a, _ := pipe.New()
	s := NewSession(a, RoleInitiator)

	status, err := s.TryStream(DefaultAnswerTimeout, func(i *Initiator) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, CanCommunicate, status)
}

func TestTryStreamReportsCannotCommunicate(t *testing.T) {
	a, _ := pipe.New()
	s := NewSession(a, RoleInitiator)

	status, err := s.TryStream(DefaultAnswerTimeout, func(i *Initiator) error {
		return i.Task(taskCmd)
	})
	require.Error(t, err)
	require.Equal(t, CannotCommunicate, status)
}
