package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

// TestLogger captures JSON log records in memory for assertions.
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	svc := inference.New(store, inference.WithLogger(logger))
//	...
//	if !logger.ContainsField(log.OperationKey, "predict") { ... }
type TestLogger struct {
	*zerologLogger
	buffer *syncBuffer
}

// NewTestLogger creates a TestLogger that records messages at or above level.
func NewTestLogger(level Level) *TestLogger {
	buf := &syncBuffer{}
	zl := zerolog.New(buf).Level(toZerologLevel(level))
	return &TestLogger{zerologLogger: &zerologLogger{zl: zl}, buffer: buf}
}

// With implements Logger.With. The returned logger shares the capture buffer.
func (t *TestLogger) With(fields ...any) Logger {
	return &TestLogger{
		zerologLogger: &zerologLogger{zl: appendFields(t.zl.With(), fields).Logger()},
		buffer:        t.buffer,
	}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(ctx context.Context, level Level) bool {
	return t.zerologLogger.Enabled(ctx, level)
}

// Output returns everything captured so far.
func (t *TestLogger) Output() string {
	return t.buffer.String()
}

// GetLogEntries parses the captured output into one map per record.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.buffer.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured record mentions message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.buffer.String(), message)
}

// ContainsField reports whether any record has key set to value.
// Numbers compare as float64 after JSON decoding.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear clears all captured log content.
func (t *TestLogger) Clear() {
	t.buffer.Reset()
}

// TestLoggerProvider implements LoggerProvider on a shared TestLogger.
type TestLoggerProvider struct {
	Logger *TestLogger
}

// NewTestLoggerProvider creates a provider whose loggers all write to one buffer.
func NewTestLoggerProvider(level Level) *TestLoggerProvider {
	return &TestLoggerProvider{Logger: NewTestLogger(level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger {
	return p.Logger
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.Logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) {
	p.Logger.zl = p.Logger.zl.Level(toZerologLevel(level))
}
