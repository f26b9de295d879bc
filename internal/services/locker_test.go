package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "worker:w1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside, "holders of one key must not overlap")

	// other keys are independent
	r1, err := l.Acquire(context.Background(), "worker:a")
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), "worker:b")
	require.NoError(t, err)
	r1()
	r2()
	r2()

	// a held key times out
	hold, err := l.Acquire(context.Background(), "worker:busy")
	require.NoError(t, err)
	defer hold()
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "worker:busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	exerciseLocker(t, l)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.entries, "released keys leave no entry behind")
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLockerWithClient(client, 5*time.Second)
	l.retry = 5 * time.Millisecond
	defer l.Close()

	exerciseLocker(t, l)
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLockerWithClient(client, time.Second)
	defer l.Close()

	release, err := l.Acquire(context.Background(), "worker:w1")
	require.NoError(t, err)

	// lease expired and someone else took it
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("staffing:lock:worker:w1", "someone-else"))

	release()
	got, err := mr.Get("staffing:lock:worker:w1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestAssignWorker_LockTimeoutIsConflict(t *testing.T) {
	e := newTestEngine(t)
	locker := NewLocalLocker()
	e.assignments.locker = locker
	e.assignments.txTimeout = 50 * time.Millisecond

	hold, err := locker.Acquire(context.Background(), "worker:w1")
	require.NoError(t, err)
	defer hold()

	_, err = e.assignments.AssignWorker(context.Background(), "p1", &AssignWorkerRequest{ProfileID: "w1", ActorID: testActor})
	requireKind(t, err, KindConflict)
}
