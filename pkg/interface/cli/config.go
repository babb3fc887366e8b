package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Configuration validation errors
var (
	ErrInvalidWorkers      = errors.New("invalid number of workers: must be positive")
	ErrInvalidQueueSize    = errors.New("invalid queue size: must be positive")
	ErrInvalidBatchSize    = errors.New("invalid batch size: must be positive")
	ErrInvalidSaveInterval = errors.New("invalid save interval: must be positive")
	ErrNoInput             = errors.New("no input specified")
	ErrDashboardStdin      = errors.New("the dashboard reads the keyboard from stdin: use --input with a file")
)

// Config holds all application configuration
type Config struct {
	// Input/Output
	InputFile  string `short:"i" long:"input" description:"Input file with URLs (one per line, - for stdin)" default:"-"`
	OutputFile string `short:"o" long:"output" description:"Output file for records (- for stdout)" default:"result.jsonl"`
	ConfigFile string `short:"c" long:"config" description:"YAML file with dedup and validation settings"`

	// Pipeline
	NumWorkers int `long:"workers" description:"Number of concurrent workers" default:"8"`
	QueueSize  int `long:"queue-size" description:"Size of task and result queues" default:"1024"`
	BatchSize  int `long:"batch-size" description:"Number of URLs per task" default:"64"`

	// Persistence
	StateFile    string        `long:"state-file" description:"Deduplicator snapshot file, loaded on start and saved periodically"`
	SaveInterval time.Duration `long:"save-interval" description:"Interval between snapshots" default:"1m"`
	DBFile       string        `long:"db" description:"SQLite database recording every checked URL"`

	// Observability
	MetricsAddr string `long:"metrics-addr" description:"Listen address of the Prometheus /metrics endpoint (e.g. :2112)"`
	LogLevel    string `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogFormat   string `long:"log-format" description:"Log format" choice:"text" choice:"json" default:"text"`
	LogFile     string `long:"log-file" description:"Write logs to this file instead of stderr"`

	// UI
	ShowDashboard bool `long:"dashboard" description:"Show interactive TUI dashboard"`
	Version       bool `short:"v" long:"version" description:"Print version and exit"`
}

// ParseFlags parses command line flags
func ParseFlags() (*Config, error) {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil && flags.WroteHelp(err) {
		// Help has been printed by the library, exit cleanly
		os.Exit(0)
	}
	return cfg, err
}

// ParseArgs parses args into a validated Config
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}

	parser := flags.NewParser(cfg, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return ErrNoInput
	}

	if c.ShowDashboard && c.InputFile == "-" {
		return ErrDashboardStdin
	}

	if c.NumWorkers <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, c.NumWorkers)
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidQueueSize, c.QueueSize)
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidBatchSize, c.BatchSize)
	}

	if c.StateFile != "" && c.SaveInterval <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidSaveInterval, c.SaveInterval)
	}

	return nil
}
