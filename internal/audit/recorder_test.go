package audit_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/config"
	"github.com/terraconstructs/gatehouse/internal/db/dbtest"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
	"github.com/terraconstructs/gatehouse/internal/telemetry/telemetrytest"
)

type failingStore struct{ err error }

func (f failingStore) Create(context.Context, *models.AuditLog) error { return f.err }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func readLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func auditWrites(t *testing.T, m *telemetry.Metrics, sink, result string) float64 {
	return telemetrytest.Counter(t, m, "gatehouse_audit_writes_total", map[string]string{"sink": sink, "result": result})
}

func TestRecorder_WritesBothSinks(t *testing.T) {
	db := dbtest.New(t)
	var file bytes.Buffer
	metrics := telemetry.NewMetrics()
	recorder := audit.NewRecorder(repository.NewBunAuditLogRepository(db), &file, zerolog.Nop(), metrics)

	recorder.Record(context.Background(), audit.Entry{
		UserID:   "admin1",
		Action:   audit.ActionPermissionChange,
		Resource: audit.UserResource("u2"),
		Details:  map[string]any{"previousRole": "USER", "newRole": "ADMIN"},
		Client:   audit.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "curl/8"},
	})

	rows := dbtest.AuditLogs(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "admin1", rows[0].UserID)
	assert.Equal(t, "PERMISSION_CHANGE", rows[0].Action)
	assert.Equal(t, "user/u2", rows[0].Resource)
	assert.Equal(t, "USER", rows[0].Details["previousRole"])
	assert.Equal(t, "ADMIN", rows[0].Details["newRole"])
	assert.Equal(t, "10.0.0.1", rows[0].IPAddress)
	assert.False(t, rows[0].Timestamp.IsZero())

	lines := readLines(t, &file)
	require.Len(t, lines, 1)
	assert.Equal(t, "audit", lines[0]["event"])
	assert.Equal(t, rows[0].ID, lines[0]["id"])
	assert.Equal(t, "PERMISSION_CHANGE", lines[0]["action"])
	assert.Equal(t, "curl/8", lines[0]["userAgent"])

	assert.Equal(t, 1.0, auditWrites(t, metrics, audit.SinkDatabase, "ok"))
	assert.Equal(t, 1.0, auditWrites(t, metrics, audit.SinkFile, "ok"))
}

func TestRecorder_PrimaryFailureIsTaggedOnSecondary(t *testing.T) {
	var file, serviceLog bytes.Buffer
	metrics := telemetry.NewMetrics()
	recorder := audit.NewRecorder(failingStore{err: errors.New("database is locked")}, &file,
		zerolog.New(&serviceLog), metrics)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), audit.Entry{
			UserID:   "admin1",
			Action:   audit.ActionUpdate,
			Resource: audit.RoleResource("r1"),
		})
	})

	lines := readLines(t, &file)
	require.Len(t, lines, 2)
	assert.Equal(t, "audit", lines[0]["event"])
	assert.Equal(t, "UPDATE", lines[0]["action"])
	assert.Equal(t, audit.EventFailure, lines[1]["event"])
	assert.Equal(t, "database is locked", lines[1]["error"])
	assert.Equal(t, "role/r1", lines[1]["resource"])
	assert.Empty(t, serviceLog.String())

	assert.Equal(t, 1.0, auditWrites(t, metrics, audit.SinkDatabase, "error"))
}

func TestRecorder_SecondaryFailureIsLogged(t *testing.T) {
	db := dbtest.New(t)
	var serviceLog bytes.Buffer
	recorder := audit.NewRecorder(repository.NewBunAuditLogRepository(db), failingWriter{},
		zerolog.New(&serviceLog), nil)

	recorder.Record(context.Background(), audit.Entry{UserID: "u1", Action: audit.ActionLogout, Resource: "user/u1"})

	assert.Len(t, dbtest.AuditLogs(t, db), 1)
	assert.Contains(t, serviceLog.String(), "failed to write audit entry to file")
	assert.Contains(t, serviceLog.String(), "disk full")
}

func TestRecorder_IgnoresCallerCancellation(t *testing.T) {
	db := dbtest.New(t)
	recorder := audit.NewRecorder(repository.NewBunAuditLogRepository(db), nil, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Record(ctx, audit.Entry{UserID: "u1", Action: audit.ActionLogin, Resource: "user/u1"})

	rows := dbtest.AuditLogs(t, db)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Details)
}

func TestClientInfoFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, audit.ClientInfo{IPAddress: "unknown", UserAgent: "unknown"}, audit.ClientInfoFromRequest(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	r.Header.Set("User-Agent", "Mozilla/5.0")
	assert.Equal(t, audit.ClientInfo{IPAddress: "203.0.113.7", UserAgent: "Mozilla/5.0"}, audit.ClientInfoFromRequest(r))

	assert.Equal(t, "unknown", audit.ClientInfoFromRequest(nil).IPAddress)
}

func TestActionValid(t *testing.T) {
	assert.True(t, audit.ActionPermissionChange.Valid())
	assert.True(t, audit.ActionFailedLogin.Valid())
	assert.False(t, audit.Action("permission_change").Valid())
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	sink, err := audit.NewFileSink(config.AuditConfig{File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	recorder := audit.NewRecorder(failingStore{err: errors.New("down")}, sink, zerolog.Nop(), nil)
	recorder.Record(context.Background(), audit.Entry{UserID: "u1", Action: audit.ActionLogin, Resource: "user/u1"})

	assert.FileExists(t, path)
}
