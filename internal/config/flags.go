package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagRoot    = flag.String("root", "", "Asset directory")
	flagModel   = flag.String("model", "", "Hierarchy asset to spawn")
	flagAnim    = flag.String("anim", "", "Animation asset to play on the spawned model")
	flagWorkers = flag.Int("workers", 0, "Decrypt worker count")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRoot != "" {
		cfg.Assets.Root = *flagRoot
		// An explicit directory wins over configured archives.
		cfg.Assets.Archives = nil
	}
	if *flagModel != "" {
		cfg.Viewer.Model = *flagModel
	}
	if *flagAnim != "" {
		cfg.Viewer.Animation = *flagAnim
	}
	if *flagWorkers > 0 {
		cfg.Assets.Workers = *flagWorkers
	}
}
