package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogMailer appends one line per message to <dir>/activation.log instead of
// sending it. Used in development.
type LogMailer struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewLogMailer(dir string) *LogMailer {
	if dir == "" {
		dir = "logs"
	}
	return &LogMailer{dir: dir, now: time.Now}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(l.dir, "activation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Activation mail | to=%s | subject=%q | body=%q\n",
		l.now().UTC().Format(time.RFC3339), msg.To, msg.Subject, msg.Body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
