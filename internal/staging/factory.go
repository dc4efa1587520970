package staging

import (
	"fsrollback/internal/config"
	"fsrollback/internal/rollback"
)

// NewAreaFromConfig creates a staging Area from the staging config section.
func NewAreaFromConfig(cfg config.StagingConfig, fsmgr rollback.FilesystemManager) (*Area, error) {
	return NewArea(fsmgr, cfg.StagingDir)
}
