package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// SessionBlobMap carries opaque session file contents keyed by filename.
// This layer never interprets the bytes; only the provider understands them.
// Values are stored as a JSON document (byte slices encode as base64).
type SessionBlobMap map[string][]byte

func (m SessionBlobMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := jsoniter.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *SessionBlobMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return jsoniter.Unmarshal(v, m)
	case string:
		return jsoniter.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported session data type %T", src)
	}
}

// SessionBackup is a durable copy of a tenant session credential blob.
// At most one row per tenant has IsActive=true; older rows are retained
// for audit. RestoredAt is set on every successful restore and is never
// cleared by later backups.
type SessionBackup struct {
	ID          int64          `json:"id,string" gorm:"primaryKey"`
	TenantID    string         `json:"tenant_id" gorm:"index;size:64"`
	SessionName string         `json:"session_name" gorm:"index"`
	SessionData SessionBlobMap `json:"session_data" gorm:"type:text"`
	BackupDate  time.Time      `json:"backup_date"`
	IsActive    bool           `json:"is_active" gorm:"index"`
	RestoredAt  *time.Time     `json:"restored_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (SessionBackup) TableName() string {
	return "session_backup"
}
