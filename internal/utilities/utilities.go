package utilities

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Capture appends raw lines to one file per day named
// <dir>/<prefix>_YYYYMMDD.log, each line prefixed with the UTC time.
type Capture struct {
	dir    string
	prefix string
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewCapture(dir, prefix string, lg *slog.Logger) (*Capture, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture dir: %w", err)
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Capture{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
		logger: lg.With("component", "capture"),
	}, nil
}

// Line records one raw line. Failures are logged, never returned: the
// capture must not disturb the pipeline.
func (c *Capture) Line(line string) {
	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rotate(now); err != nil {
		c.logger.Error("open capture file failed", "error", err)
		return
	}
	if _, err := c.file.WriteString(now.Format("15:04:05.000") + " - " + line + "\n"); err != nil {
		c.logger.Error("write capture failed", "error", err)
	}
}

func (c *Capture) rotate(now time.Time) error {
	day := now.Format("20060102")
	if c.file != nil && c.day == day {
		return nil
	}
	if c.file != nil {
		_ = c.file.Close()
		c.file = nil
	}
	f, err := os.OpenFile(c.Path(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	c.file, c.day = f, day
	return nil
}

// Path is the file a line captured at t goes to.
func (c *Capture) Path(t time.Time) string {
	return filepath.Join(c.dir, c.prefix+"_"+t.UTC().Format("20060102")+".log")
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
