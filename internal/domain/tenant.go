package domain

import "time"

// BotTenant is one business client operating an isolated bot instance.
// SessionName and Port are stable for the tenant lifetime unless
// explicitly reset; IsActive is toggled instead of deleting the row.
type BotTenant struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64" form:"id"`
	Name        string    `json:"name" form:"name"`
	Phone       string    `json:"phone" form:"phone"`
	SessionName string    `json:"session_name" gorm:"uniqueIndex" form:"session_name"`
	Port        int       `json:"port" form:"port"`
	IsActive    bool      `json:"is_active" form:"is_active"`
	Remark      string    `json:"remark" form:"remark"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (BotTenant) TableName() string {
	return "bot_tenant"
}
