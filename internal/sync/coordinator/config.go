package coordinator

import (
	"time"

	"github.com/stacklok/zoom-search-connector/internal/config"
	pkgsync "github.com/stacklok/zoom-search-connector/internal/sync"
)

// schedule is the interval at which one mode runs
type schedule struct {
	mode     pkgsync.Mode
	interval time.Duration
}

// getSchedules extracts the enabled mode intervals from the configuration, in mode order
func getSchedules(cfg *config.Config) []schedule {
	var out []schedule
	for _, mode := range pkgsync.Modes() {
		if interval := cfg.GetScheduleInterval(string(mode)); interval > 0 {
			out = append(out, schedule{mode: mode, interval: interval})
		}
	}
	return out
}
