package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Reminder frequencies. Daily means business weekdays only (Mon-Fri),
// weekly fires every Monday, monthly fires on the 1st of the month.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// PhoneList is a JSON-encoded string slice column.
type PhoneList []string

func (l PhoneList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := jsoniter.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *PhoneList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return jsoniter.Unmarshal(v, l)
	case string:
		return jsoniter.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported phone list type %T", src)
	}
}

// ReminderJob is a recurring broadcast of a fixed message to a recipient
// list. TenantID is optional; when set the tenant's opt-out list applies
// in addition to the global one. LastSent is written exactly once after a
// dispatch batch completes, success or partial failure alike.
type ReminderJob struct {
	ID        int64      `json:"id,string" gorm:"primaryKey"`
	TenantID  string     `json:"tenant_id" gorm:"index;size:64"`
	Message   string     `json:"message" gorm:"size:160"`
	Phones    PhoneList  `json:"phones" gorm:"type:text"`
	Frequency string     `json:"frequency" gorm:"size:16"`
	Hour      int        `json:"hour"`
	Minute    int        `json:"minute"`
	Active    bool       `json:"active" gorm:"index"`
	LastSent  *time.Time `json:"last_sent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (ReminderJob) TableName() string {
	return "reminder_job"
}
