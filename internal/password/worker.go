package password

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Worker runs hashing and verification with at most N in flight. The work
// happens on the caller's goroutine once a slot is free, so a burst of
// logins queues instead of starving the rest of the server.
type Worker struct {
	hasher Hasher
	sem    *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewWorker bounds hasher to concurrency slots; zero or less means
// runtime.NumCPU().
func NewWorker(hasher Hasher, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Worker{hasher: hasher, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Hash hashes plain with the configured scheme.
func (w *Worker) Hash(ctx context.Context, plain string) (string, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer w.sem.Release(1)
	return w.hasher.Hash(plain)
}

// Verify checks plain against encoded.
func (w *Worker) Verify(ctx context.Context, encoded, plain string) (bool, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer w.sem.Release(1)
	return Verify(encoded, plain)
}

// VerifyDummy burns the same CPU as a real verification against a hash that
// matches nothing. Callers use it when the account does not exist so the
// response time does not reveal that.
func (w *Worker) VerifyDummy(ctx context.Context, plain string) {
	w.dummyOnce.Do(func() {
		h, err := w.hasher.Hash("account-auth/no-such-user")
		if err == nil {
			w.dummy = h
		}
	})
	if w.dummy == "" {
		return
	}
	_, _ = w.Verify(ctx, w.dummy, plain)
}
