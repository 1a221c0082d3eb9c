package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/talkincode/botfleet/internal/bots"
	"github.com/talkincode/botfleet/internal/domain"
	"github.com/talkincode/botfleet/pkg/common"
	"github.com/talkincode/botfleet/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	a.sched = cron.New(cron.WithLocation(a.location), cron.WithParser(cronParser))

	tick := a.appConfig.Reminders.TickSec
	if tick <= 0 {
		tick = 30
	}
	var err error
	_, err = a.sched.AddFunc(fmt.Sprintf("@every %ds", tick), func() {
		a.reminders.Tick(context.Background(), time.Now())
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
		metrics.SetGauge("botfleet_running", int64(a.manager.Count()))
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.gormDB.
			Where("opt_time < ? ", time.Now().
				Add(-time.Hour*24*365)).Delete(domain.SysOprLog{})
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.initBusSubscribers()
	a.sched.Start()
}

// initBusSubscribers records lifecycle events in the audit log.
func (a *Application) initBusSubscribers() {
	err := a.bus.Subscribe(bots.EventBotStarted, func(tenantID string, port int) {
		a.auditLog("start-bot", fmt.Sprintf("tenant %s started on port %d", tenantID, port))
	})
	if err != nil {
		zap.S().Errorf("bus subscribe error %s", err.Error())
	}
	err = a.bus.Subscribe(bots.EventBotStopped, func(tenantID string, port int) {
		a.auditLog("stop-bot", fmt.Sprintf("tenant %s stopped, port %d released", tenantID, port))
	})
	if err != nil {
		zap.S().Errorf("bus subscribe error %s", err.Error())
	}
}

func (a *Application) auditLog(action, desc string) {
	if err := a.gormDB.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   "system",
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error; err != nil {
		zap.L().Warn("audit log write failed", zap.Error(err))
	}
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100))
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	if cpuPercent, err := p.CPUPercent(); err == nil {
		metrics.SetGauge("process_cpuuse", int64(cpuPercent*100))
	}
	if memInfo, err := p.MemoryInfo(); err == nil {
		metrics.SetGauge("process_memuse", int64(memInfo.RSS/1024/1024))
	}
}
