// Package cli implements rdbscan's command-line subcommand dispatch.
package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/congmo/rdbscan/internal/config"
	"github.com/congmo/rdbscan/internal/jsonout"
	"github.com/congmo/rdbscan/internal/loader"
	"github.com/congmo/rdbscan/internal/logger"
	"github.com/congmo/rdbscan/internal/rdb"
	"github.com/congmo/rdbscan/internal/state"
	"github.com/congmo/rdbscan/internal/statusweb"
)

// Execute dispatches CLI subcommands and returns the process exit code.
func Execute(args []string) int {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[rdbscan] ")

	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:])
	case "load":
		return runLoad(args[1:])
	case "stat":
		return runStat(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "version", "--version", "-v":
		fmt.Println("rdbscan 0.1.0-dev")
		return 0
	default:
		log.Printf("Unknown subcommand: %s", args[0])
		printUsage()
		return 1
	}
}

// runScan decodes the configured dump and writes every record out as
// newline-delimited JSON (or replays into Redis, if output.kind is
// "redis" — equivalent to running "load" directly).
func runScan(args []string) int {
	cfg, err := loadConfigFromArgs("scan", args)
	if err != nil {
		return errorToExitCode(err)
	}

	switch cfg.Output.Kind {
	case "redis":
		return runLoadWithConfig(cfg)
	default:
		return runScanWithConfig(cfg)
	}
}

func runScanWithConfig(cfg *config.Config) int {
	if err := initLoggerFor(cfg, "scan"); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
	}

	f, err := os.Open(cfg.ResolvePath(cfg.Source.Path))
	if err != nil {
		log.Printf("Failed to open dump file: %v", err)
		return 1
	}
	defer f.Close()

	filter, err := cfg.Filter.ToFilter()
	if err != nil {
		log.Printf("Invalid filter config: %v", err)
		return 2
	}

	out := os.Stdout
	if cfg.Output.JSONPath != "" && cfg.Output.JSONPath != "-" {
		outFile, err := os.Create(cfg.ResolvePath(cfg.Output.JSONPath))
		if err != nil {
			log.Printf("Failed to create output file: %v", err)
			return 1
		}
		defer outFile.Close()
		handler := jsonout.NewHandler(outFile)
		return runParse(f, filter, handler, handler.Flush)
	}

	handler := jsonout.NewHandler(out)
	return runParse(f, filter, handler, handler.Flush)
}

// runLoad decodes the configured dump and replays it into a live Redis
// (or Redis Cluster) target.
func runLoad(args []string) int {
	cfg, err := loadConfigFromArgs("load", args)
	if err != nil {
		return errorToExitCode(err)
	}
	return runLoadWithConfig(cfg)
}

func runLoadWithConfig(cfg *config.Config) int {
	if cfg.Output.RedisAddr == "" {
		log.Println("output.redisAddr is required to load into Redis")
		return 2
	}
	if err := initLoggerFor(cfg, "load"); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
	}

	f, err := os.Open(cfg.ResolvePath(cfg.Source.Path))
	if err != nil {
		log.Printf("Failed to open dump file: %v", err)
		return 1
	}
	defer f.Close()

	filter, err := cfg.Filter.ToFilter()
	if err != nil {
		log.Printf("Invalid filter config: %v", err)
		return 2
	}

	logger.Info("loading %s into redis target %s (cluster=%t)", cfg.Source.Path, cfg.Output.RedisAddr, cfg.Output.RedisCluster)

	handler, err := loader.NewHandler(loader.Config{
		Addr:        cfg.Output.RedisAddr,
		Password:    cfg.Output.RedisPassword,
		Cluster:     cfg.Output.RedisCluster,
		BatchSize:   cfg.Output.BatchSize,
		Concurrency: cfg.Output.Concurrency,
		RateLimit:   cfg.Output.RateLimit,
	})
	if err != nil {
		log.Printf("Failed to connect to Redis target: %v", err)
		return 1
	}

	code := runParse(f, filter, handler, handler.Close)
	written, failed := handler.Stats()
	log.Printf("Load complete: %d written, %d failed", written, failed)
	return code
}

// runStat decodes the configured dump while only tracking progress —
// no record output — updating the status file a statusweb server can
// expose.
func runStat(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	var configPath string
	var webAddr string
	fs.StringVar(&configPath, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&configPath, "c", "", "Configuration file path (YAML)")
	fs.StringVar(&webAddr, "web-addr", "", "Serve decode progress at this address while scanning (e.g. :8080)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		log.Printf("Failed to parse arguments: %v", err)
		return 1
	}
	if configPath == "" {
		log.Println("The --config flag is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 2
	}
	if err := initLoggerFor(cfg, "stat"); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
	}

	f, err := os.Open(cfg.ResolvePath(cfg.Source.Path))
	if err != nil {
		log.Printf("Failed to open dump file: %v", err)
		return 1
	}
	defer f.Close()

	filter, err := cfg.Filter.ToFilter()
	if err != nil {
		log.Printf("Invalid filter config: %v", err)
		return 2
	}

	if err := cfg.EnsureStateDir(); err != nil {
		log.Printf("Failed to create state directory: %v", err)
		return 1
	}
	store := state.NewStore(cfg.StatusFilePath())
	if err := store.Start(cfg.Source.Path); err != nil {
		logger.ErrorAt(0, "", "failed to initialize status file: %v", err)
		return 1
	}

	if webAddr != "" {
		srv, err := statusweb.New(statusweb.Options{Addr: webAddr, Store: store})
		if err != nil {
			log.Printf("Failed to start status server: %v", err)
			return 1
		}
		go func() {
			if err := srv.Start(nil); err != nil {
				log.Printf("Status server stopped: %v", err)
			}
		}()
	}

	tracker := state.NewTrackingHandler(rdb.BaseHandler{}, store)
	parser := rdb.NewParser(tracker, filter)
	parseErr := parser.Parse(f)
	_ = store.Finish(parseErr)
	if parseErr != nil {
		logParseError(parseErr)
		return 1
	}
	log.Println("Scan complete")
	return 0
}

// runParse runs a parser over f with handler, then calls finish
// (typically a Flush or Close) before reporting the result.
func runParse(f *os.File, filter *rdb.Filter, handler rdb.Handler, finish func() error) int {
	parser := rdb.NewParser(handler, filter)
	parseErr := parser.Parse(f)
	if finishErr := finish(); finishErr != nil && parseErr == nil {
		parseErr = finishErr
	}
	if parseErr != nil {
		logParseError(parseErr)
		return 1
	}
	return 0
}

// logParseError reports a decode failure with whatever record context it
// carries. A *rdb.ParseError names the offset and key decoding had
// reached; anything else (a Handler's own error, an I/O failure from
// finish) is logged plain.
func logParseError(err error) {
	if pe, ok := err.(*rdb.ParseError); ok {
		logger.ErrorAt(pe.Offset, pe.Key, "parse failed: %v", pe)
		return
	}
	logger.Error("parse failed: %v", err)
}

// initLoggerFor starts the dual file+console logger rooted at the
// config's state directory, named after the running subcommand.
func initLoggerFor(cfg *config.Config, subcommand string) error {
	return logger.Init(cfg.ResolveStateDir(), logger.INFO, "rdbscan-"+subcommand)
}

func loadConfigFromArgs(cmd string, args []string) (*config.Config, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	var configPath string
	fs.StringVar(&configPath, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&configPath, "c", "", "Configuration file path (YAML)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, flag.ErrHelp
		}
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	if configPath == "" {
		fs.Usage()
		return nil, fmt.Errorf("the --config flag is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func errorToExitCode(err error) int {
	if err == flag.ErrHelp {
		return 0
	}
	log.Printf("Command execution failed: %v", err)
	return 1
}

func printUsage() {
	binary := filepath.Base(os.Args[0])
	fmt.Printf(`rdbscan - streaming Redis RDB dump decoder

Usage:
  %[1]s <command> [options]

Available commands:
  scan    Decode a dump and write it out (JSON or straight to Redis, per config)
  load    Decode a dump and replay it into a live Redis or Redis Cluster target
  stat    Decode a dump while tracking progress only, optionally serving it over HTTP
  help    Show this help
  version Show version info

Examples:
  %[1]s scan --config scan.yaml
  %[1]s load --config load.yaml
  %[1]s stat --config scan.yaml --web-addr :8080
`, binary)
}
