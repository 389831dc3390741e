package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. Settings come from the defaults,
// then the config file named by -config, then flags given explicitly. It
// returns true when the program should exit cleanly (e.g. after -help).
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("irisd", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
irisd - serves an Iris graph database over HTTP.

Usage:
  irisd [options]

Endpoints:
  POST /graphs/{name}   execute a request against a graph
  GET  /graphs          per-graph statistics
  GET  /health          liveness check

Options:
`)
		flagSet.PrintDefaults()
	}

	def := defaultConfig()
	configFlag := flagSet.String("config", "", "Path to an HCL config file.")
	dirFlag := flagSet.String("dir", def.Dir, "Data directory.")
	addrFlag := flagSet.String("addr", def.Addr, "HTTP listen address.")
	logFormatFlag := flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	backendFlag := flagSet.String("backend", def.Backend, "Storage backend. Options: 'os', 'bolt', 'mem'.")
	codecFlag := flagSet.String("codec", def.Codec, "Record codec. Options: 'bson', 'msgpack'.")
	compressionFlag := flagSet.String("compression", def.Compression, "Record compression. Options: 'none', 'snappy', 'zlib'.")
	maxRecordFlag := flagSet.Int("max-record-size", def.MaxRecordSize, "Maximum encoded record size in bytes.")
	maxPageFlag := flagSet.Int("max-page-size", def.MaxPageSize, "Maximum page size in bytes.")
	syncFlag := flagSet.Bool("sync", def.Sync, "Flush every page write to disk.")
	journalFlag := flagSet.Bool("journal", def.Journal, "Record incoming requests in a journal.")
	refPolicyFlag := flagSet.String("ref-policy", def.RefPolicy, "Duplicate $ref handling. Options: 'last', 'first', 'reject'.")
	reportUnknownFlag := flagSet.Bool("report-unknown", def.ReportUnknown, "Report unknown directives as errors.")
	relaxedFlag := flagSet.Bool("relaxed-json", def.RelaxedJSON, "Accept relaxed JSON request bodies.")
	verboseFlag := flagSet.Bool("verbose", def.Verbose, "Log every mutation.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	cfg := def
	if *configFlag != "" {
		if err := loadConfigFile(*configFlag, &cfg); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Dir = *dirFlag
		case "addr":
			cfg.Addr = *addrFlag
		case "log-format":
			cfg.LogFormat = *logFormatFlag
		case "log-level":
			cfg.LogLevel = *logLevelFlag
		case "backend":
			cfg.Backend = *backendFlag
		case "codec":
			cfg.Codec = *codecFlag
		case "compression":
			cfg.Compression = *compressionFlag
		case "max-record-size":
			cfg.MaxRecordSize = *maxRecordFlag
		case "max-page-size":
			cfg.MaxPageSize = *maxPageFlag
		case "sync":
			cfg.Sync = *syncFlag
		case "journal":
			cfg.Journal = *journalFlag
		case "ref-policy":
			cfg.RefPolicy = *refPolicyFlag
		case "report-unknown":
			cfg.ReportUnknown = *reportUnknownFlag
		case "relaxed-json":
			cfg.RelaxedJSON = *relaxedFlag
		case "verbose":
			cfg.Verbose = *verboseFlag
		}
	})

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
