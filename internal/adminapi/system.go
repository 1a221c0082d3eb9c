package adminapi

import (
	"github.com/labstack/echo/v4"

	"github.com/talkincode/botfleet/internal/webserver"
	"github.com/talkincode/botfleet/pkg/metrics"
)

var gaugeNames = []string{
	"botfleet_running",
	"system_cpuuse",
	"system_memuse",
	"process_cpuuse",
	"process_memuse",
}

func registerSystemRoutes() {
	webserver.ApiGET("/metrics", getMetrics)
}

// getMetrics reports the stored system gauges. Values are the latest samples
// written by the monitor jobs, zero until the first sample lands.
func getMetrics(c echo.Context) error {
	out := make(map[string]int64, len(gaugeNames))
	for _, name := range gaugeNames {
		out[name] = metrics.GetGauge(name)
	}
	return ok(c, out)
}
