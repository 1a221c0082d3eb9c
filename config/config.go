package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig holds the admin HTTP server settings. Secret is the shared
// secret required in the X-API-Secret header on every admin request.
type WebConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Secret string `yaml:"secret" json:"secret"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// BotsConfig controls per-tenant instance provisioning.
type BotsConfig struct {
	// PortBase is the first port probed by the allocator.
	PortBase int `yaml:"port_base" json:"port_base"`
	// PortScanWindow bounds the allocator search before it fails.
	PortScanWindow int `yaml:"port_scan_window" json:"port_scan_window"`
	// SessionDir is the root of per-tenant session folders.
	// Defaults to <workdir>/sessions.
	SessionDir string `yaml:"session_dir" json:"session_dir"`
	// ControlTimeoutSec bounds calls to an instance control endpoint.
	ControlTimeoutSec int `yaml:"control_timeout_sec" json:"control_timeout_sec"`
}

type RemindersConfig struct {
	// TickSec is the scheduler re-evaluation interval.
	TickSec int `yaml:"tick_sec" json:"tick_sec"`
	// MaxWorkers caps concurrent reminder deliveries.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
}

type AppConfig struct {
	System    SystemConfig    `yaml:"system" json:"system"`
	Web       WebConfig       `yaml:"web" json:"web"`
	Database  DBConfig        `yaml:"database" json:"database"`
	Logger    LogConfig       `yaml:"logger" json:"logger"`
	Bots      BotsConfig      `yaml:"bots" json:"bots"`
	Reminders RemindersConfig `yaml:"reminders" json:"reminders"`
}

func (c *AppConfig) SessionDir() string {
	if c.Bots.SessionDir != "" {
		return c.Bots.SessionDir
	}
	return filepath.Join(c.System.Workdir, "sessions")
}

var DefaultAppConfig = &AppConfig{
	System: SystemConfig{
		Appid:    "botfleet",
		Location: "America/Mexico_City",
		Workdir:  "/var/botfleet",
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1816,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "botfleet",
		User:     "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:     "development",
		Filename: "/var/botfleet/botfleet.log",
	},
	Bots: BotsConfig{
		PortBase:          4001,
		PortScanWindow:    1000,
		ControlTimeoutSec: 10,
	},
	Reminders: RemindersConfig{
		TickSec:    30,
		MaxWorkers: 25,
	},
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

// LoadConfig reads the YAML config file and applies environment overrides.
// A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			cfg = new(AppConfig)
			if err := yaml.Unmarshal(data, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "config parse error: %v\n", err)
				cfg = DefaultAppConfig
			}
		}
	}

	setEnvValue("BOTFLEET_WORKDIR", &cfg.System.Workdir)
	setEnvValue("BOTFLEET_LOCATION", &cfg.System.Location)
	setEnvValue("BOTFLEET_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("BOTFLEET_DB_TYPE", &cfg.Database.Type)
	setEnvValue("BOTFLEET_DB_HOST", &cfg.Database.Host)
	setEnvValue("BOTFLEET_DB_NAME", &cfg.Database.Name)
	setEnvValue("BOTFLEET_DB_USER", &cfg.Database.User)
	setEnvValue("BOTFLEET_DB_PWD", &cfg.Database.Passwd)
	return cfg
}
