package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/iris-db/iris"
)

// Config holds everything irisd needs to open the database and serve it.
type Config struct {
	Dir       string
	Addr      string
	LogFormat string
	LogLevel  string

	Backend       string
	Codec         string
	Compression   string
	MaxRecordSize int
	MaxPageSize   int
	Sync          bool
	Journal       bool

	RefPolicy     string
	ReportUnknown bool
	RelaxedJSON   bool
	Verbose       bool
}

func defaultConfig() Config {
	return Config{
		Addr:          ":7474",
		LogFormat:     "text",
		LogLevel:      "info",
		Backend:       iris.BackendOS,
		Codec:         iris.CodecBSON,
		Compression:   iris.CompressionNone,
		MaxRecordSize: iris.DefaultMaxRecordSize,
		MaxPageSize:   iris.DefaultMaxPageSize,
		RefPolicy:     "last",
	}
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Dir == "" && cfg.Backend != iris.BackendMem {
		return nil, errors.New("dir is required unless the mem backend is used")
	}
	switch cfg.Backend {
	case iris.BackendOS, iris.BackendBolt, iris.BackendMem:
	default:
		return nil, fmt.Errorf("invalid backend %q", cfg.Backend)
	}
	if _, err := iris.ParseRefPolicy(cfg.RefPolicy); err != nil {
		return nil, err
	}
	if cfg.MaxRecordSize <= 0 || cfg.MaxPageSize <= 0 {
		return nil, errors.New("max record and page sizes must be positive")
	}
	return &cfg, nil
}

// Options converts the configuration into database options.
func (c *Config) Options(logger *slog.Logger) (iris.Options, error) {
	policy, err := iris.ParseRefPolicy(c.RefPolicy)
	if err != nil {
		return iris.Options{}, err
	}
	return iris.Options{
		Backend:                 c.Backend,
		Codec:                   c.Codec,
		Compression:             c.Compression,
		MaxRecordSize:           c.MaxRecordSize,
		MaxPageSize:             c.MaxPageSize,
		Sync:                    c.Sync,
		Journal:                 c.Journal,
		RefPolicy:               policy,
		ReportUnknownDirectives: c.ReportUnknown,
		RelaxedJSON:             c.RelaxedJSON,
		Logger:                  logger,
		Verbose:                 c.Verbose,
	}, nil
}

// fileConfig is the HCL shape of a config file. Every attribute is optional;
// unset ones leave the defaults alone.
//
//	dir    = "/var/lib/iris"
//	listen = ":7474"
//
//	storage {
//	  backend     = "bolt"
//	  compression = "snappy"
//	}
//
//	requests {
//	  ref_policy = "reject"
//	}
type fileConfig struct {
	Dir       *string `hcl:"dir,optional"`
	Listen    *string `hcl:"listen,optional"`
	LogFormat *string `hcl:"log_format,optional"`
	LogLevel  *string `hcl:"log_level,optional"`
	Verbose   *bool   `hcl:"verbose,optional"`

	Storage  *storageBlock  `hcl:"storage,block"`
	Requests *requestsBlock `hcl:"requests,block"`
}

type storageBlock struct {
	Backend       *string `hcl:"backend,optional"`
	Codec         *string `hcl:"codec,optional"`
	Compression   *string `hcl:"compression,optional"`
	MaxRecordSize *int    `hcl:"max_record_size,optional"`
	MaxPageSize   *int    `hcl:"max_page_size,optional"`
	Sync          *bool   `hcl:"sync,optional"`
	Journal       *bool   `hcl:"journal,optional"`
}

type requestsBlock struct {
	RefPolicy     *string `hcl:"ref_policy,optional"`
	ReportUnknown *bool   `hcl:"report_unknown,optional"`
	RelaxedJSON   *bool   `hcl:"relaxed_json,optional"`
}

// loadConfigFile applies the settings of the HCL file at path to cfg.
func loadConfigFile(path string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}
	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	slog.Debug("Config file decoded.", "path", path)

	set(&cfg.Dir, fc.Dir)
	set(&cfg.Addr, fc.Listen)
	set(&cfg.LogFormat, fc.LogFormat)
	set(&cfg.LogLevel, fc.LogLevel)
	set(&cfg.Verbose, fc.Verbose)
	if s := fc.Storage; s != nil {
		set(&cfg.Backend, s.Backend)
		set(&cfg.Codec, s.Codec)
		set(&cfg.Compression, s.Compression)
		set(&cfg.MaxRecordSize, s.MaxRecordSize)
		set(&cfg.MaxPageSize, s.MaxPageSize)
		set(&cfg.Sync, s.Sync)
		set(&cfg.Journal, s.Journal)
	}
	if r := fc.Requests; r != nil {
		set(&cfg.RefPolicy, r.RefPolicy)
		set(&cfg.ReportUnknown, r.ReportUnknown)
		set(&cfg.RelaxedJSON, r.RelaxedJSON)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
