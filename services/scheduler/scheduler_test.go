package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/campus/tests"
)

func newScheduler() *Scheduler {
	return New(testutil.NewLogger(testutil.NewConfig()))
}

func TestScheduler_Every(t *testing.T) {
	s := newScheduler()

	var runs int32
	_, err := s.Every(time.Second, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})
	require.NoError(t, err)

	_, err = s.Every(0, func(context.Context) {})
	assert.Error(t, err)

	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	after := atomic.LoadInt32(&runs)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs), "no run after Stop")
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := newScheduler()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	_, err := s.Every(time.Second, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		close(cancelled)
	})
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	select {
	case <-cancelled:
	default:
		t.Fatal("job context not cancelled")
	}
}

func TestScheduler_Run(t *testing.T) {
	s := newScheduler()

	var runs int32
	_, err := s.Every(time.Second, func(context.Context) { atomic.AddInt32(&runs, 1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func Test_dailySpec(t *testing.T) {
	tests := []struct {
		at      string
		want    string
		wantErr bool
	}{
		{at: "03:00", want: "0 0 3 * * *"},
		{at: "23:59", want: "0 59 23 * * *"},
		{at: "3", wantErr: true},
		{at: "24:00", wantErr: true},
		{at: "12:60", wantErr: true},
		{at: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			got, err := dailySpec(tt.at)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_Daily(t *testing.T) {
	s := newScheduler()
	id, err := s.Daily("04:30", func(context.Context) {})
	require.NoError(t, err)
	assert.NotZero(t, id)
	s.Remove(id)

	_, err = s.Daily("nope", func(context.Context) {})
	assert.Error(t, err)
}
