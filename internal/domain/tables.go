package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	// Fleet
	&BotTenant{},
	&SessionBackup{},
	&ReminderJob{},
}
