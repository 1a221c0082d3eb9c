package app

import (
	"errors"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/pkg/common"
)

type settingDefault struct {
	Sort   int
	Type   string
	Name   string
	Value  string
	Remark string
}

var settingDefaults = []settingDefault{
	{1, "system", "SystemTitle", "BotFleet", "System title"},
	{2, "system", "SystemTheme", "light", "System theme"},
	{3, "bots", "AutoStartActive", common.DISABLED, "Start active tenants on boot"},
	{4, "reminders", "DispatchEnabled", common.ENABLED, "Master switch for reminder dispatch"},
}

// checkSettings seeds the sys_config table with defaults, leaving existing
// rows untouched.
func (a *Application) checkSettings() {
	for _, item := range settingDefaults {
		var cfg domain.SysConfig
		err := a.gormDB.
			Where("type = ? and name = ?", item.Type, item.Name).
			First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := a.gormDB.Create(&domain.SysConfig{
				ID:        common.UUIDint64(),
				Sort:      item.Sort,
				Type:      item.Type,
				Name:      item.Name,
				Value:     item.Value,
				Remark:    item.Remark,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}).Error; err != nil {
				zap.L().Error("failed to seed setting",
					zap.String("name", item.Name), zap.Error(err))
			}
			continue
		}
		if err != nil {
			zap.L().Error("failed to query setting",
				zap.String("name", item.Name), zap.Error(err))
		}
	}
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(stype, name string) string {
	var value string
	a.gormDB.Model(&domain.SysConfig{}).
		Select("value").
		Where("type = ? and name = ?", stype, name).
		Scan(&value)
	return value
}

// GetSettingsBoolValue reads a switch-style configuration value. The enabled
// marker and any cast-parsable boolean both count as on.
func (a *Application) GetSettingsBoolValue(stype, name string) bool {
	value := a.GetSettingsStringValue(stype, name)
	return value == common.ENABLED || cast.ToBool(value)
}
