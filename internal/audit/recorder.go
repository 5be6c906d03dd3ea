package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/terraconstructs/gatehouse/internal/config"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// Sink names used in metrics.
const (
	SinkDatabase = "database"
	SinkFile     = "file"
)

// EventFailure tags the secondary line written when the primary sink rejects an entry.
const EventFailure = "audit_recorder_failure"

// primaryWriteTimeout bounds the database insert once the caller's cancellation is detached.
const primaryWriteTimeout = 5 * time.Second

// Entry is one privileged action to record.
type Entry struct {
	UserID    string
	Action    Action
	Resource  string
	Details   map[string]any
	Client    ClientInfo
	Timestamp time.Time
}

// Store is the primary (durable) sink.
type Store interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Recorder writes each entry to the primary store and to a secondary append-only file.
type Recorder struct {
	store   Store
	file    io.Writer
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewRecorder creates a Recorder. secondary receives one JSON line per entry; logger receives
// failures of the secondary itself. metrics may be nil.
func NewRecorder(store Store, secondary io.Writer, logger zerolog.Logger, metrics *telemetry.Metrics) *Recorder {
	if secondary == nil {
		secondary = io.Discard
	}
	return &Recorder{
		store:   store,
		file:    &lockedWriter{w: secondary},
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewFileSink opens the size-rotated audit file.
func NewFileSink(cfg config.AuditConfig) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}, nil
}

// Record persists the entry. It never returns an error and never panics into the caller:
// a primary failure is written to the secondary as a tagged line, and a secondary failure
// is logged. Request cancellation does not interrupt the write.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("action", string(e.Action)).Msg("audit recorder panicked")
		}
	}()

	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	if !e.Action.Valid() {
		r.logger.Warn().Str("action", string(e.Action)).Msg("recording unknown audit action")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), primaryWriteTimeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerAudit, "audit.Record",
		attribute.String(telemetry.AttrAuditAction, string(e.Action)),
		attribute.String(telemetry.AttrAuditResource, e.Resource),
		attribute.String(telemetry.AttrUserID, e.UserID),
	)
	defer span.End()

	row := &models.AuditLog{
		UserID:    e.UserID,
		Action:    string(e.Action),
		Resource:  e.Resource,
		Details:   models.AuditDetails(e.Details),
		IPAddress: e.Client.IPAddress,
		UserAgent: e.Client.UserAgent,
		Timestamp: e.Timestamp,
	}
	primaryErr := r.store.Create(ctx, row)
	r.metrics.AuditWrite(SinkDatabase, primaryErr)
	if primaryErr != nil {
		telemetry.RecordError(span, primaryErr)
	}

	secondaryErr := r.writeLine(zerolog.InfoLevel, "audit", e, nil, row.ID)
	if primaryErr != nil && secondaryErr == nil {
		secondaryErr = r.writeLine(zerolog.ErrorLevel, EventFailure, e, primaryErr, "")
	}
	r.metrics.AuditWrite(SinkFile, secondaryErr)

	if secondaryErr != nil {
		ev := r.logger.Error().Err(secondaryErr).
			Str("action", string(e.Action)).
			Str("resource", e.Resource).
			Str("user_id", e.UserID)
		if primaryErr != nil {
			ev = ev.AnErr("primary_error", primaryErr)
		}
		ev.Msg("failed to write audit entry to file")
	}
}

func (r *Recorder) writeLine(level zerolog.Level, event string, e Entry, cause error, id string) error {
	w := &trackingWriter{w: r.file}
	logger := zerolog.New(w)

	ev := logger.WithLevel(level).
		Str("event", event).
		Str("userId", e.UserID).
		Str("action", string(e.Action)).
		Str("resource", e.Resource).
		Interface("details", e.Details).
		Str("ipAddress", e.Client.IPAddress).
		Str("userAgent", e.Client.UserAgent).
		Time("timestamp", e.Timestamp)
	if id != "" {
		ev = ev.Str("id", id)
	}
	if cause != nil {
		ev = ev.Str("error", cause.Error())
	}
	ev.Send()
	return w.err
}

// lockedWriter serializes lines from concurrent requests.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// trackingWriter keeps the write error that zerolog would otherwise swallow.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
