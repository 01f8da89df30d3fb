package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrCorruptState marks persisted state that exists but cannot be read
	// back. Callers start from an empty set.
	ErrCorruptState  = errors.New("corrupt seen-set state")
	ErrUnknownDriver = errors.New("unknown state driver")
)

// Store persists one source's seen identifiers.
type Store interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Save(ctx context.Context, ids []string) error
	Close() error
}

// Config selects and configures the state driver.
//
// Driver values:
//   - "file": one JSON array per source under Dir (default)
//   - "sqlite": a shared SQLite database at SQLitePath
//   - "redis": one set per source at RedisAddr, keyed RedisPrefix+source
type Config struct {
	Driver      string
	Dir         string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
}

// Open returns the store for one source. stateFile names the file driver's
// JSON file; the other drivers key on source.
func Open(ctx context.Context, cfg Config, source, stateFile string, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	log = log.With().Str("driver", driver).Logger()

	switch driver {
	case "", "file":
		if stateFile == "" {
			stateFile = "seen_" + source + ".json"
		}
		return newFileStore(filepath.Join(cfg.Dir, stateFile), log), nil
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg.SQLitePath, source)
	case "redis":
		return openRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix+source)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
