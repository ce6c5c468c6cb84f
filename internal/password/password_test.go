package password

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon() Argon2id { return Argon2id{Memory: 8 * 1024, Time: 1, SaltLen: 16, KeyLen: 32} }

func TestBcrypt_HashVerify(t *testing.T) {
	h, err := Bcrypt{Cost: bcrypt.MinCost}.Hash("P@ssw0rd")
	require.NoError(t, err)
	assert.NotContains(t, h, "P@ssw0rd")

	ok, err := Verify(h, "P@ssw0rd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(h, "P@ssw0rD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2id_HashVerify(t *testing.T) {
	h, err := fastArgon().Hash("P@ssw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := Verify(h, "P@ssw0rd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(h, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	h2, err := fastArgon().Hash("P@ssw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "salted")
}

func TestVerify_Malformed(t *testing.T) {
	_, err := Verify("plaintext", "x")
	assert.ErrorIs(t, err, ErrUnknownScheme)

	_, err = Verify("$argon2id$v=19$m=x$salt$key", "x")
	assert.Error(t, err)

	_, err = Verify("$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5", "x")
	assert.Error(t, err)
}

func TestWorker_BoundsConcurrency(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	probe := hasherFunc(func(string) (string, error) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
		return "$2a$stub", nil
	})

	w := NewWorker(probe, 2)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Hash(context.Background(), "pw")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestWorker_HonorsContext(t *testing.T) {
	block := make(chan struct{})
	w := NewWorker(hasherFunc(func(string) (string, error) {
		<-block
		return "", nil
	}), 1)

	go func() { _, _ = w.Hash(context.Background(), "a") }()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := w.Hash(ctx, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestWorker_VerifyAndDummy(t *testing.T) {
	w := NewWorker(Bcrypt{Cost: bcrypt.MinCost}, 0)
	h, err := w.Hash(context.Background(), "secret-pass")
	require.NoError(t, err)

	ok, err := w.Verify(context.Background(), h, "secret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	w.VerifyDummy(context.Background(), "secret-pass")
	assert.NotEmpty(t, w.dummy)
}

type hasherFunc func(string) (string, error)

func (f hasherFunc) Hash(p string) (string, error) { return f(p) }
