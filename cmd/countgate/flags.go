package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/models"
)

// connectionFlags override the loaded connection settings.
type connectionFlags struct {
	configPath string
	host       string
	indexes    string
	useTLS     boolFlag
	timeout    int
}

func (f *connectionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "path to countgate.yaml (default: search /etc/countgate, ./configs, .)")
	fs.StringVar(&f.host, "host", "", "search engine host[:port], overrides connection.host")
	fs.StringVar(&f.indexes, "indexes", "", "explicit comma-separated index list, overrides the daily window")
	fs.Var(&f.useTLS, "tls", "use https, overrides connection.use_tls")
	fs.IntVar(&f.timeout, "timeout", 0, "query request timeout in milliseconds, overrides connection.query_request_timeout")
}

func (f *connectionFlags) apply(c *config.ConnectionConfig) {
	if f.host != "" {
		c.Host = strings.TrimSpace(f.host)
	}
	if f.indexes != "" {
		c.Indexes = strings.TrimSpace(f.indexes)
	}
	if f.useTLS.set {
		c.UseTLS = f.useTLS.value
	}
	if f.timeout != 0 {
		c.QueryRequestTimeout = f.timeout
	}
}

// gateFlags describe a single gate, or point at a gate file.
type gateFlags struct {
	file       string
	name       string
	query      string
	comparison string
	threshold  string
	since      string
	units      string
}

func (f *gateFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "f", "", "YAML gate file; when set the single-gate flags are ignored")
	fs.StringVar(&f.name, "name", "default", "gate name used in logs and metrics")
	fs.StringVar(&f.query, "query", "", "Lucene query to count")
	fs.StringVar(&f.comparison, "comparison", string(models.ComparisonGTE), "fail when count is gte|lte the threshold")
	fs.StringVar(&f.threshold, "threshold", "", "threshold, >= 0")
	fs.StringVar(&f.since, "since", "", "lookback magnitude, >= 1")
	fs.StringVar(&f.units, "units", string(models.Minutes), "lookback units: MINUTES|HOURS|DAYS")
}

func (f *gateFlags) specs() ([]models.NamedSpec, error) {
	if f.file != "" {
		return models.LoadGateFile(f.file)
	}

	params := models.QueryParams{
		Query:      f.query,
		Comparison: f.comparison,
		Units:      f.units,
	}
	if f.threshold != "" {
		if err := models.CheckThreshold(f.threshold); err != nil {
			return nil, &models.ConfigurationError{Field: "threshold", Err: err}
		}
		n, _ := strconv.ParseInt(strings.TrimSpace(f.threshold), 10, 64)
		params.Threshold = &n
	}
	if f.since != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(f.since), 10, 64)
		if err != nil {
			return nil, &models.ConfigurationError{Field: "since", Err: models.ErrInvalidSince}
		}
		params.Since = &n
	}

	spec, err := models.NewQuerySpec(params)
	if err != nil {
		return nil, err
	}
	return []models.NamedSpec{{Name: f.name, Spec: spec}}, nil
}

// boolFlag remembers whether it was set so an explicit -tls=false can
// override the config file.
type boolFlag struct {
	set   bool
	value bool
}

func (b *boolFlag) String() string { return strconv.FormatBool(b.value) }

func (b *boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	b.set, b.value = true, v
	return nil
}

func (b *boolFlag) IsBoolFlag() bool { return true }
