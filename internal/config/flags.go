package config

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// RegisterConfigPathFlag registers the `--config <path>` override flag used
// to pick the project-config path before SessionConfig itself exists. It
// must be parsed ahead of LoadWithConfigOverride, since it decides which
// file that call reads.
func RegisterConfigPathFlag(fs *pflag.FlagSet) *string {
	return fs.String("config", "", "Path to a project config file, overriding .scaffold/config.json")
}

// RegisterFlags adds the documented CLI surface to fs, defaulting each flag
// to cfg's current value so callers can register flags after Load has
// already applied file-based config.
func RegisterFlags(fs *pflag.FlagSet, cfg *SessionConfig) {
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Skip handler execution and VCS writes")
	fs.IntVar(&cfg.MaxTasks, "max-tasks", cfg.MaxTasks, "Session task cap")
	fs.IntVar(&cfg.MaxConcurrent, "max-concurrent", cfg.MaxConcurrent, "Worker pool size")
	fs.Float64Var(&cfg.MaxCostUSD, "max-cost", cfg.MaxCostUSD, "Session USD cap")
	fs.Float64Var(&cfg.MaxTimeHours, "max-time", cfg.MaxTimeHours, "Session wall-clock cap (hours)")
	fs.StringSliceVar(&cfg.Labels, "labels", cfg.Labels, "Restrict fetch to tasks carrying any listed label")
}

// ApplyEnv overlays the documented environment variables onto cfg. Flags
// take precedence over env vars, so callers should invoke this before
// fs.Parse, or only for flags that were not explicitly set on the command
// line (see ApplyEnvUnset).
func ApplyEnv(cfg *SessionConfig) {
	if v, ok := os.LookupEnv("DRY_RUN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
	if v, ok := os.LookupEnv("MAX_TASKS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTasks = n
		}
	}
	if v, ok := os.LookupEnv("MAX_CONCURRENT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrent = n
		}
	}
	if v, ok := os.LookupEnv("MAX_COST"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MaxCostUSD = f
		}
	}
	if v, ok := os.LookupEnv("MAX_TIME_HOURS"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MaxTimeHours = f
		}
	}
}

// ApplyEnvUnset overlays environment variables only for flags fs did not see
// on the command line, so explicit flags always win over env vars, which in
// turn win over the config file and defaults.
func ApplyEnvUnset(fs *pflag.FlagSet, cfg *SessionConfig) {
	seed := *cfg
	ApplyEnv(&seed)

	if !fs.Changed("dry-run") {
		cfg.DryRun = seed.DryRun
	}
	if !fs.Changed("max-tasks") {
		cfg.MaxTasks = seed.MaxTasks
	}
	if !fs.Changed("max-concurrent") {
		cfg.MaxConcurrent = seed.MaxConcurrent
	}
	if !fs.Changed("max-cost") {
		cfg.MaxCostUSD = seed.MaxCostUSD
	}
	if !fs.Changed("max-time") {
		cfg.MaxTimeHours = seed.MaxTimeHours
	}
}
