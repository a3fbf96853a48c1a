package hexprot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labhex/hexprot/pkg/transport/pipe"
)

// TestTransactionGuardSerializesConcurrentExchanges drives many
// concurrent Task calls on one Initiator against a single responder
// goroutine and asserts none interleave: the responder handler sees
// at most one call in flight at a time.
func TestTransactionGuardSerializesConcurrentExchanges(t *testing.T) {
	hostT, slaveT := pipe.New()
	initSession := NewSession(hostT, RoleInitiator)
	respSession := NewSession(slaveT, RoleResponder)
	initSession.Start()
	respSession.Start()

	initiator := NewInitiator(initSession)
	responder := NewResponder(respSession)

	var inFlight int32
	var overlapped int32
	responder.RegisterTask(taskCmd, func(ctx context.Context) bool {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		defer atomic.AddInt32(&inFlight, -1)
		return true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			_ = responder.ServeOnce(ctx)
		}
	}()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, initiator.Task(taskCmd))
		}()
	}
	wg.Wait()

	require.Zero(t, atomic.LoadInt32(&overlapped), "concurrent exchanges interleaved on the wire")
}
