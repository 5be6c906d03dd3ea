package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// AuditDetails is the open, string-keyed payload attached to an audit entry.
type AuditDetails map[string]any

// Scan implements sql.Scanner for reading from database
func (d *AuditDetails) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = AuditDetails{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan AuditDetails: expected []byte or string, got %T", value)
	}
	if len(raw) == 0 {
		*d = AuditDetails{}
		return nil
	}
	return json.Unmarshal(raw, d)
}

// Value implements driver.Valuer for writing to database
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// AuditLog is an immutable record of a privileged action.
// UserID carries no foreign key: audit rows outlive any user lifecycle change.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID        string       `bun:"id,pk,type:uuid"`
	UserID    string       `bun:"user_id,notnull"`
	Action    string       `bun:"action,notnull"`
	Resource  string       `bun:"resource,notnull"`
	Details   AuditDetails `bun:"details,type:jsonb"`
	IPAddress string       `bun:"ip_address"`
	UserAgent string       `bun:"user_agent"`
	Timestamp time.Time    `bun:"timestamp,notnull"`
}
