package suite

import (
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/clientbench/internal/benchmark"
	"github.com/wesleyorama2/clientbench/pkg/jsonschema"
)

//go:embed schema.json
var schemaJSON string

var configSchema = jsonschema.MustCompile("suite.schema.json", schemaJSON)

// DefaultQueries selects the query files of a suite when none are listed.
// Files starting with an underscore or a digit are not benchmarks.
const DefaultQueries = "queries/[a-z]*.sql"

// Config is a suite file. Relative paths are resolved against the directory
// of the file.
type Config struct {
	Database  string   `yaml:"database"`
	Duration  string   `yaml:"duration"`
	OutputDir string   `yaml:"outputDir"`
	Queries   []string `yaml:"queries"`
	Setup     string   `yaml:"setup"`
	FetchSize int      `yaml:"fetchSize"`
	BatchSize int      `yaml:"batchSize"`
	Overwrite bool     `yaml:"overwrite"`
	Warmup    *bool    `yaml:"warmup"`

	// Parsed from Duration.
	RunDuration time.Duration `yaml:"-"`

	dir string
}

// LoadConfig reads, validates and normalizes a suite file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read suite file")
	}
	return ParseConfig(data, filepath.Dir(path))
}

// ParseConfig parses suite YAML whose relative paths are relative to dir.
func ParseConfig(data []byte, dir string) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse suite file")
	}
	if err := configSchema.Validate(doc); err != nil {
		return nil, errors.Wrap(err, "invalid suite file")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse suite file")
	}
	cfg.dir = dir

	d, err := benchmark.ParseDuration(cfg.Duration)
	if err != nil {
		return nil, errors.Wrap(err, "invalid suite file")
	}
	if d < 0 {
		return nil, errors.Errorf("invalid suite file: negative duration %s", d)
	}
	cfg.RunDuration = d

	if len(cfg.Queries) == 0 {
		cfg.Queries = []string{DefaultQueries}
	}
	cfg.OutputDir = cfg.path(cfg.OutputDir)
	if cfg.Setup != "" {
		cfg.Setup = cfg.path(cfg.Setup)
	}
	return cfg, nil
}

// WarmupEnabled defaults to true.
func (c *Config) WarmupEnabled() bool {
	return c.Warmup == nil || *c.Warmup
}

func (c *Config) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// QueryFiles expands the query patterns into a sorted list of files without
// duplicates. A pattern that matches nothing is an error.
func (c *Config) QueryFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range c.Queries {
		matches, err := filepath.Glob(c.path(pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "query pattern %q", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("query pattern %q matches no files", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
