package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Workers bounds how many requests are handled at once.
	Workers      int  `yaml:"workers"`
	Verbose      bool `yaml:"verbose"`
	LockOSThread bool `yaml:"lock_os_thread"`
}

func defaultConfig() Config {
	return Config{
		Workers:      runtime.GOMAXPROCS(0),
		LockOSThread: true,
	}
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// parseConfig builds the config from defaults, then the file named by
// -config, then any flags that were set explicitly.
func parseConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("replyxd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	workers := fs.Int("workers", 0, "maximum number of requests handled concurrently")
	verbose := fs.Bool("v", false, "whether to use verbose logging")
	lockOSThread := fs.Bool("lock-os-thread", true, "whether replies are delivered on the locked main thread")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "v":
			cfg.Verbose = *verbose
		case "lock-os-thread":
			cfg.LockOSThread = *lockOSThread
		}
	})

	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}

	return cfg, nil
}
