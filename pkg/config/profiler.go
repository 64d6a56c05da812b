package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/pg-sharding/pgprof/pkg/models/proferror"
	"github.com/pg-sharding/pgprof/pkg/redact"
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type Profiler struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`

	MaxMonitors int      `json:"max_monitors" toml:"max_monitors" yaml:"max_monitors"`
	Quantiles   []string `json:"quantiles" toml:"quantiles" yaml:"quantiles"`
	// Go duration string; negative disables the slow statement log.
	LogMinDurationStatement string `json:"log_min_duration_statement" toml:"log_min_duration_statement" yaml:"log_min_duration_statement"`

	ExportPath    string `json:"export_path" toml:"export_path" yaml:"export_path"`
	MergeOnExport bool   `json:"merge_on_export" toml:"merge_on_export" yaml:"merge_on_export"`
	HttpAddr      string `json:"http_addr" toml:"http_addr" yaml:"http_addr"`

	Driver      string `json:"driver" toml:"driver" yaml:"driver"`
	DSN         string `json:"dsn" toml:"dsn" yaml:"dsn"`
	Concurrency int    `json:"concurrency" toml:"concurrency" yaml:"concurrency"`
	// Extra attempts at the first ping of a profiled handle.
	ConnectRetries uint64 `json:"connect_retries" toml:"connect_retries" yaml:"connect_retries"`

	// Function name prefixes hidden from captured connection stacks, on top
	// of the built-in ones.
	ExcludeFrames []string `json:"exclude_frames" toml:"exclude_frames" yaml:"exclude_frames"`
}

var cfgProfiler = Default()

// Default returns the configuration used for every field a file leaves out.
func Default() Profiler {
	return Profiler{
		LogLevel:                "info",
		MaxMonitors:             100,
		LogMinDurationStatement: "-1",
		MergeOnExport:           true,
		Driver:                  DriverPostgres,
		Concurrency:             1,
		ConnectRetries:          3,
	}
}

// LoadProfilerCfg loads the profiler configuration from cfgPath, validates
// it and returns the running config rendered as JSON.
func LoadProfilerCfg(cfgPath string) (string, error) {
	pcfg := Default()
	file, err := os.Open(cfgPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := initConfig(file, &pcfg); err != nil {
		return "", errors.Wrapf(err, "decode %s", cfgPath)
	}
	if err := pcfg.Validate(); err != nil {
		return "", err
	}
	cfgProfiler = pcfg
	return cfgProfiler.String(), nil
}

// ProfilerConfig returns the configuration loaded last, or the defaults.
func ProfilerConfig() *Profiler {
	return &cfgProfiler
}

func (p *Profiler) Validate() error {
	if p.MaxMonitors <= 0 {
		return proferror.Newf(proferror.PROF_INVALID_CONFIG, "max_monitors must be positive, got %d", p.MaxMonitors)
	}
	if _, err := p.ParsedQuantiles(); err != nil {
		return err
	}
	if _, err := p.MinDurationStatement(); err != nil {
		return err
	}
	switch p.Driver {
	case DriverPostgres, DriverPgx:
	default:
		return proferror.Newf(proferror.PROF_INVALID_CONFIG, "unknown driver %q, use %q or %q", p.Driver, DriverPostgres, DriverPgx)
	}
	if p.Concurrency <= 0 {
		return proferror.Newf(proferror.PROF_INVALID_CONFIG, "concurrency must be positive, got %d", p.Concurrency)
	}
	if p.DSN != "" {
		if _, err := pgx.ParseConfig(p.DSN); err != nil {
			// the parse error may quote the dsn
			return proferror.New(proferror.PROF_INVALID_CONFIG, "dsn cannot be parsed")
		}
	}
	return nil
}

// ParsedQuantiles converts the quantiles to floats in (0, 1).
func (p *Profiler) ParsedQuantiles() ([]float64, error) {
	ret := make([]float64, len(p.Quantiles))
	for i, qStr := range p.Quantiles {
		q, err := strconv.ParseFloat(qStr, 64)
		if err != nil || q <= 0 || q >= 1 {
			return nil, proferror.Newf(proferror.PROF_INVALID_CONFIG, "could not parse time quantile: \"%s\"", qStr)
		}
		ret[i] = q
	}
	return ret, nil
}

// MinDurationStatement parses log_min_duration_statement. Empty and "-1"
// both disable the slow statement log.
func (p *Profiler) MinDurationStatement() (time.Duration, error) {
	s := strings.TrimSpace(p.LogMinDurationStatement)
	if s == "" || s == "-1" {
		return -1, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, proferror.Newf(proferror.PROF_INVALID_CONFIG, "bad log_min_duration_statement %q", s)
	}
	return d, nil
}

// MaskedDSN hides the password in both the URL and the key/value forms.
func (p *Profiler) MaskedDSN() string {
	if u, err := url.Parse(p.DSN); err == nil && u.Scheme != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", "xxxxx")
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	return redact.SQL(p.DSN)
}

// String renders the config as indented JSON with the DSN masked.
func (p *Profiler) String() string {
	c := *p
	c.DSN = c.MaskedDSN()
	configBytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(configBytes)
}
