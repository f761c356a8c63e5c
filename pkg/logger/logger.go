package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	lokiPushPath      = "/loki/api/v1/push"
	lokiQueueSize     = 1024
	lokiBatchSize     = 100
	lokiFlushInterval = 500 * time.Millisecond
)

// LokiLogger logs through otelzap so records carry the active trace. When a
// Loki URL is set, records are also batched and shipped to Loki by a single
// background goroutine. Records are dropped if the queue is full.
type LokiLogger struct {
	Logger      *otelzap.Logger
	serviceName string
	lokiURL     string
	httpClient  *http.Client
	queue       chan lokiRecord
	flushes     chan chan struct{}
	stop        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
}

// LokiLogEntry is the body of a Loki push request.
type LokiLogEntry struct {
	Streams []LokiStream `json:"streams"`
}

type LokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiRecord struct {
	level string
	at    time.Time
	line  string
}

func NewLokiLogger(serviceName, lokiURL string, production bool) (*LokiLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	if production {
		cfg = zap.NewProductionConfig()
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return newLokiLogger(base, serviceName, lokiURL), nil
}

// NewNop discards everything.
func NewNop() *LokiLogger {
	return newLokiLogger(zap.NewNop(), "nop", "")
}

func newLokiLogger(base *zap.Logger, serviceName, lokiURL string) *LokiLogger {
	l := &LokiLogger{
		Logger:      otelzap.New(base),
		serviceName: serviceName,
	}

	if lokiURL == "" {
		return l
	}

	l.lokiURL = strings.TrimRight(lokiURL, "/") + lokiPushPath
	l.httpClient = &http.Client{Timeout: 5 * time.Second}
	l.queue = make(chan lokiRecord, lokiQueueSize)
	l.flushes = make(chan chan struct{})
	l.stop = make(chan struct{})
	l.stopped = make(chan struct{})

	go l.ship()

	return l
}

func (l *LokiLogger) Zap() *zap.Logger {
	return l.Logger.Logger
}

// Sync flushes zap and whatever is still queued for Loki.
func (l *LokiLogger) Sync() error {
	if l.flushes != nil {
		done := make(chan struct{})

		select {
		case l.flushes <- done:
			<-done
		case <-l.stopped:
		case <-time.After(l.httpClient.Timeout):
		}
	}

	return l.Logger.Sync()
}

// Close ships what is still queued and stops the Loki shipper. Later records
// are only written to zap. Safe to call more than once.
func (l *LokiLogger) Close(ctx context.Context) error {
	if l.stop == nil {
		return nil
	}

	l.closeOnce.Do(func() { close(l.stop) })

	select {
	case <-l.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LokiLogger) InfoWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *LokiLogger) WarnWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *LokiLogger) ErrorWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *LokiLogger) log(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	fields = append(fields[:len(fields):len(fields)], zap.String("service", l.serviceName))

	logger := l.Logger.Ctx(ctx)
	switch level {
	case zapcore.ErrorLevel:
		logger.Error(msg, fields...)
	case zapcore.WarnLevel:
		logger.Warn(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}

	if l.queue == nil || l.isClosed() {
		return
	}

	record := lokiRecord{level: level.String(), at: time.Now(), line: encodeLine(ctx, level, msg, fields)}

	select {
	case l.queue <- record:
	default:
	}
}

func (l *LokiLogger) isClosed() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// encodeLine renders one record as the JSON log line Loki stores.
func encodeLine(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}

	enc.Fields["level"] = level.String()
	enc.Fields["message"] = msg

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		enc.Fields["trace_id"] = sc.TraceID().String()
		enc.Fields["span_id"] = sc.SpanID().String()
	}

	line, err := json.Marshal(enc.Fields)
	if err != nil {
		return strconv.Quote(msg)
	}

	return string(line)
}

func (l *LokiLogger) ship() {
	ticker := time.NewTicker(lokiFlushInterval)
	defer ticker.Stop()
	defer close(l.stopped)

	batch := make([]lokiRecord, 0, lokiBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}

		l.push(l.streams(batch))
		batch = batch[:0]
	}

	drain := func() {
		for {
			select {
			case record := <-l.queue:
				batch = append(batch, record)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-l.stop:
			drain()
			flush()
			return
		case record := <-l.queue:
			batch = append(batch, record)
			if len(batch) >= lokiBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case done := <-l.flushes:
			drain()
			flush()
			close(done)
		}
	}
}

// streams groups a batch into one Loki stream per level.
func (l *LokiLogger) streams(batch []lokiRecord) LokiLogEntry {
	var entry LokiLogEntry
	byLevel := make(map[string]int)

	for _, record := range batch {
		i, ok := byLevel[record.level]
		if !ok {
			i = len(entry.Streams)
			byLevel[record.level] = i
			entry.Streams = append(entry.Streams, LokiStream{
				Stream: map[string]string{"service": l.serviceName, "level": record.level},
			})
		}

		entry.Streams[i].Values = append(entry.Streams[i].Values,
			[]string{strconv.FormatInt(record.at.UnixNano(), 10), record.line})
	}

	return entry
}

func (l *LokiLogger) push(entry LokiLogEntry) {
	body, err := json.Marshal(entry)
	if err != nil {
		return
	}

	resp, err := l.httpClient.Post(l.lokiURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)
}
