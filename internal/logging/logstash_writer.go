// Package logging mirrors the process log to a Logstash TCP input.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

var errCooldown = errors.New("logstash: reconnect cooldown")

// LogstashWriter forwards each log line to Logstash as one JSON document.
// Lines that are already JSON objects (the request logs) get the service tag
// merged in; plain lines are wrapped in {"message": ...}. The writer never
// blocks the caller on an unreachable collector: lines are dropped until the
// next reconnect window.
type LogstashWriter struct {
	addr        string
	service     string
	dialTimeout time.Duration
	sendTimeout time.Duration
	cooldown    time.Duration
	now         func() time.Time

	mu        sync.Mutex
	conn      net.Conn
	retryAt   time.Time
	closed    bool
	dropCount int64
}

type Option func(*LogstashWriter)

func WithDialTimeout(d time.Duration) Option {
	return func(w *LogstashWriter) { w.dialTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(w *LogstashWriter) { w.sendTimeout = d }
}

// WithRetryInterval sets how long to wait after a failed dial or send.
func WithRetryInterval(d time.Duration) Option {
	return func(w *LogstashWriter) { w.cooldown = d }
}

func NewLogstashWriter(addr, service string, opts ...Option) (*LogstashWriter, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("logstash: empty address")
	}
	w := &LogstashWriter{
		addr:        addr,
		service:     service,
		dialTimeout: 2 * time.Second,
		sendTimeout: time.Second,
		cooldown:    5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Setup points the standard logger at stderr plus Logstash when addr is set.
// The returned closer is a no-op without Logstash.
func Setup(addr, service string) io.Closer {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if strings.TrimSpace(addr) == "" {
		return io.NopCloser(nil)
	}
	w, err := NewLogstashWriter(addr, service)
	if err != nil {
		log.Printf("logging: %v", err)
		return io.NopCloser(nil)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	log.Printf("logging: mirroring to logstash at %s", addr)
	return w
}

func (w *LogstashWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	doc := w.document(p)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, io.ErrClosedPipe
	}
	if err := w.connectLocked(); err != nil {
		w.dropCount++
		return len(p), nil
	}
	if w.sendTimeout > 0 {
		_ = w.conn.SetWriteDeadline(w.now().Add(w.sendTimeout))
	}
	if _, err := w.conn.Write(doc); err != nil {
		w.dropCount++
		w.disconnectLocked()
		w.retryAt = w.now().Add(w.cooldown)
	}
	return len(p), nil
}

// Dropped reports how many lines never reached Logstash.
func (w *LogstashWriter) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropCount
}

func (w *LogstashWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.disconnectLocked()
}

// document strips the standard log prefix and renders one newline-terminated
// JSON object.
func (w *LogstashWriter) document(p []byte) []byte {
	line := bytes.TrimSpace(p)
	if i := bytes.IndexByte(line, '{'); i > 0 && json.Valid(line[i:]) {
		line = line[i:]
	}

	fields := map[string]any{}
	if len(line) == 0 || line[0] != '{' || json.Unmarshal(line, &fields) != nil {
		fields = map[string]any{"message": string(line)}
	}
	if _, ok := fields["@timestamp"]; !ok {
		fields["@timestamp"] = w.now().UTC().Format(time.RFC3339Nano)
	}
	if w.service != "" {
		fields["service"] = w.service
	}
	out, err := json.Marshal(fields)
	if err != nil {
		out, _ = json.Marshal(map[string]string{"message": string(line)})
	}
	return append(out, '\n')
}

func (w *LogstashWriter) connectLocked() error {
	if w.conn != nil {
		return nil
	}
	if !w.retryAt.IsZero() && w.now().Before(w.retryAt) {
		return errCooldown
	}
	conn, err := net.DialTimeout("tcp", w.addr, w.dialTimeout)
	if err != nil {
		w.retryAt = w.now().Add(w.cooldown)
		return err
	}
	w.conn = conn
	w.retryAt = time.Time{}
	return nil
}

func (w *LogstashWriter) disconnectLocked() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
