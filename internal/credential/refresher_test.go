package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

type fakeAuth struct {
	mu     sync.Mutex
	calls  int32
	delay  time.Duration
	err    error
	tokens []string
}

func (f *fakeAuth) Login(ctx context.Context) (domain.Credential, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Credential{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Credential{}, f.err
	}
	token := "tok"
	if int(n) <= len(f.tokens) {
		token = f.tokens[n-1]
	}
	now := time.Now()
	return domain.Credential{Token: token, IssuedAt: now, ExpiresAt: now.Add(20 * time.Minute)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCurrentBeforeFirstRefresh(t *testing.T) {
	r := NewRefresher(&fakeAuth{}, time.Minute, testLogger())
	_, err := r.Current(time.Now())
	assert.ErrorIs(t, err, domain.ErrStaleCredential)
}

func TestForceRefreshStoresCredential(t *testing.T) {
	auth := &fakeAuth{tokens: []string{"t1"}}
	r := NewRefresher(auth, time.Minute, testLogger())

	cred, err := r.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t1", cred.Token)

	got, err := r.Current(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "t1", got.Token)
}

func TestCurrentRejectsExpired(t *testing.T) {
	auth := &fakeAuth{}
	r := NewRefresher(auth, time.Minute, testLogger())
	_, err := r.ForceRefresh(context.Background())
	require.NoError(t, err)

	_, err = r.Current(time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrStaleCredential)
}

func TestForceRefreshSingleFlight(t *testing.T) {
	auth := &fakeAuth{delay: 50 * time.Millisecond}
	r := NewRefresher(auth, time.Minute, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ForceRefresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// All eight callers pile onto one in-flight login.
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.calls))
}

func TestForceRefreshPropagatesFailure(t *testing.T) {
	auth := &fakeAuth{err: errors.New("boom")}
	r := NewRefresher(auth, time.Minute, testLogger())

	_, err := r.ForceRefresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrCredentialRefresh)
}

func TestRunStopsOnContext(t *testing.T) {
	auth := &fakeAuth{}
	r := NewRefresher(auth, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Initial refresh lands before cancellation.
	assert.Eventually(t, func() bool {
		_, err := r.Current(time.Now())
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
