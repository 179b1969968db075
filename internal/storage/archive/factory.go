// internal/storage/archive/factory.go
package archive

import (
	"fmt"

	"github.com/newthinker/chartgen/internal/core"
)

// Config selects and configures a storage backend
type Config struct {
	Type string // "localfs" (default) or "s3"
	Path string // output directory for localfs
	S3   S3Config
}

// New creates the configured backend
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required"))
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}
