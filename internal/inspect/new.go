package inspect

import (
	"log/slog"

	"github.com/deixis/ccinspect/internal/config"
	"github.com/deixis/ccinspect/internal/metrics"
	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/runner"
)

// New wires an Engine from cfg: an OS-backed runner and an in-memory LRU
// of recent runs in front of a JSON disk store. m and logger may be nil.
func New(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Engine {
	r := &runner.Runner{
		Compiler:  cfg.CompilerPath(),
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Logger:    logger,
	}

	var disk *report.DiskStore
	if dir := cfg.StoreDir(); dir != "" {
		disk = report.NewDiskStoreAt(dir)
	} else {
		disk = report.NewDiskStore()
	}

	return &Engine{
		Config:  cfg,
		Runner:  r,
		Store:   report.NewLRUStore(cfg.CacheSize(), disk),
		Metrics: m,
		Logger:  logger,
	}
}
