package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// Environment overrides. These win over the session file.
const (
	EnvDataDir      = "CTRAIN_DATA_DIR"
	EnvLogLevel     = "CTRAIN_LOG_LEVEL"
	EnvRoundTimeout = "CTRAIN_ROUND_TIMEOUT"
	EnvMaxRounds    = "CTRAIN_MAX_ROUNDS"
)

// LoadEnvFiles loads .env.local then .env from dir. Missing files are skipped.
// godotenv never overwrites variables already set, so the process environment
// wins over .env.local, which wins over .env.
func LoadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return errors.WrapWithDetails(errors.EInvalidConfig, "failed to load env file", err,
				map[string]string{"path": path})
		}
	}
	return nil
}

// ApplyEnv overrides fields of f from lookup. An unparsable CTRAIN_MAX_ROUNDS
// is written as -1 so validation rejects it instead of silently ignoring it.
func ApplyEnv(f *File, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		f.DataDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		f.Log.Level = v
	}
	if v, ok := lookup(EnvRoundTimeout); ok && v != "" {
		f.Round.Timeout = v
	}
	if v, ok := lookup(EnvMaxRounds); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			n = -1
		}
		f.Budget.MaxRounds = n
	}
}
