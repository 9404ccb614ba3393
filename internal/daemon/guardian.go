package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const DefaultParentCheckInterval = 5 * time.Second

// GuardianConfig holds parent-liveness configuration.
type GuardianConfig struct {
	ParentPID     int           // Process to watch; <= 1 disables the guardian
	CheckInterval time.Duration // How often to check the parent
}

// DefaultGuardianConfig returns default guardian configuration.
func DefaultGuardianConfig(parentPID int) GuardianConfig {
	return GuardianConfig{
		ParentPID:     parentPID,
		CheckInterval: DefaultParentCheckInterval,
	}
}

// Guardian stops the daemon when the process that launched it is gone,
// so a crashed desktop app does not leave an orphaned tracker behind.
type Guardian struct {
	config         GuardianConfig
	processManager domain.ProcessManager
	logger         *zap.Logger
}

// NewGuardian creates a new guardian.
func NewGuardian(config GuardianConfig, pm domain.ProcessManager, logger *zap.Logger) *Guardian {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guardian{
		config:         config,
		processManager: pm,
		logger:         logger,
	}
}

// Enabled reports whether there is a parent to watch.
func (g *Guardian) Enabled() bool {
	return g.config.ParentPID > 1
}

// Run checks the parent until ctx ends or the parent disappears, in which
// case onParentGone is called once.
func (g *Guardian) Run(ctx context.Context, onParentGone func()) {
	if !g.Enabled() {
		g.logger.Info("parent watch disabled")
		return
	}

	// If we were started by the watched process, being re-parented also means it died.
	direct := g.processManager.GetParentPID() == g.config.ParentPID

	g.logger.Info("guardian started",
		zap.Int("parent_pid", g.config.ParentPID),
		zap.Bool("direct_child", direct))

	ticker := time.NewTicker(g.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if g.parentAlive(direct) {
				continue
			}
			g.logger.Info("parent process gone, shutting down",
				zap.Int("parent_pid", g.config.ParentPID))
			onParentGone()
			return
		}
	}
}

func (g *Guardian) parentAlive(direct bool) bool {
	if !g.processManager.IsRunning(g.config.ParentPID) {
		return false
	}
	if direct && g.processManager.GetParentPID() != g.config.ParentPID {
		return false
	}
	return true
}
