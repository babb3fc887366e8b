package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WangYihang/url-dedup/pkg/application"
	"github.com/WangYihang/url-dedup/pkg/common"
	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/input"
	"github.com/WangYihang/url-dedup/pkg/interface/cli"
	"github.com/WangYihang/url-dedup/pkg/interface/presenter"
	"github.com/WangYihang/url-dedup/pkg/util"
)

func main() {
	// Parse command line flags
	config, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if config.Version {
		fmt.Println(common.PV.String())
		return
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(config *cli.Config) error {
	logger, closeLog, err := setupLogger(config)
	if err != nil {
		return err
	}
	defer closeLog()

	app, err := cli.NewAssembler(config, logger).Assemble()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close outputs", "error", err)
		}
	}()

	urls, err := input.NewLoader().Open(config.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer urls.Close()

	// Setup context with cancellation on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if config.MetricsAddr != "" {
		go func() {
			if err := util.PrometheusExporter(ctx, config.MetricsAddr, app.Registry); err != nil {
				logger.Error("metrics endpoint failed", "addr", config.MetricsAddr, "error", err)
			}
		}()
	}

	if app.Persistence != nil {
		app.Persistence.Start(ctx)
		defer app.Persistence.Stop()
	}

	useCase := app.UseCase
	if config.ShowDashboard {
		dashboard := presenter.NewDashboard()
		useCase.RegisterMetricsObserver(dashboard)

		done := make(chan error, 1)
		go func() {
			done <- useCase.Execute(ctx, urls)
			dashboard.Quit()
		}()

		// Quitting the dashboard stops the run
		if err := dashboard.Run(); err != nil {
			cancel()
			<-done
			return fmt.Errorf("TUI error: %w", err)
		}
		cancel()
		err = <-done
	} else {
		fmt.Fprintln(os.Stderr, "Starting url-dedup...")
		bar := presenter.NewProgressBar(os.Stderr)
		useCase.RegisterMetricsObserver(bar)
		err = useCase.Execute(ctx, urls)
		bar.Finish()
	}

	if application.IsInterrupted(err) {
		fmt.Fprintln(os.Stderr, "Interrupted, partial results written")
		err = nil
	}
	if err != nil {
		return err
	}

	return printSummary(os.Stderr, app.Deduplicator.GetStats())
}

func printSummary(w io.Writer, stats entity.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// setupLogger builds the slog logger. With the dashboard on and no log file,
// logs are dropped so they do not corrupt the screen.
func setupLogger(config *cli.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	switch {
	case config.LogFile != "":
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = file
		closeLog = func() { _ = file.Close() }
	case config.ShowDashboard:
		out = io.Discard
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if config.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeLog, nil
}
