package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/talkincode/botfleet/internal/domain"
)

// autoStartBots brings every active tenant back up when the bots
// AutoStartActive switch is on. One tenant failing to start does not block
// the rest.
func (a *Application) autoStartBots() {
	if !a.GetSettingsBoolValue("bots", "AutoStartActive") {
		return
	}
	var tenants []domain.BotTenant
	if err := a.gormDB.Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		zap.L().Error("autostart: tenant scan failed", zap.Error(err))
		return
	}
	ctx := context.Background()
	for i := range tenants {
		tenant := &tenants[i]
		ent, err := a.manager.Start(ctx, tenant)
		if err != nil {
			zap.L().Warn("autostart: tenant start failed",
				zap.String("tenant_id", tenant.ID),
				zap.Error(err))
			continue
		}
		if tenant.Port != ent.Port {
			if err := a.gormDB.Model(&domain.BotTenant{}).
				Where("id = ?", tenant.ID).
				Update("port", ent.Port).Error; err != nil {
				zap.L().Warn("autostart: port persist failed",
					zap.String("tenant_id", tenant.ID),
					zap.Error(err))
			}
		}
		zap.L().Info("autostart: tenant started",
			zap.String("tenant_id", tenant.ID),
			zap.Int("port", ent.Port))
	}
}
