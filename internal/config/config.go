// Package config loads the fhetutor configuration.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults (Default)
//  2. the YAML file named by --config or FHETUTOR_CONFIG
//  3. a dotenv file (".env" by default)
//  4. FHETUTOR_* process environment variables
//
// The merged result is validated against the embedded CUE schema before it
// is returned.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/record"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Defaults.
const (
	DefaultLedgerPath      = ".fhetutor/ledger.db"
	DefaultContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DefaultChainID         = 11155111
	DefaultDurationDays    = 30
	DefaultSettleDelay     = 1500 * time.Millisecond
	DefaultMaxRetries      = 8
	DefaultRetryInterval   = 5 * time.Millisecond
	DefaultLogLevel        = "warn"
	DefaultEnvFile         = ".env"
)

// Config is the effective configuration.
type Config struct {
	Ledger    LedgerConfig    `yaml:"ledger"`
	Chain     ChainConfig     `yaml:"chain"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Decrypt   DecryptConfig   `yaml:"decrypt"`
	Index     IndexConfig     `yaml:"index"`
	Subjects  []string        `yaml:"subjects"`
	Log       LogConfig       `yaml:"log"`
}

// LedgerConfig selects the storage backend.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ChainConfig identifies the deployment the challenge is bound to.
type ChainConfig struct {
	ContractAddress string `yaml:"contract_address"`
	ChainID         int64  `yaml:"chain_id"`
}

// ChallengeConfig controls the decrypt challenge.
type ChallengeConfig struct {
	DurationDays int `yaml:"duration_days"`
}

// DecryptConfig controls reveal behaviour.
type DecryptConfig struct {
	SettleDelay      time.Duration `yaml:"settle_delay"`
	VerifySignatures bool          `yaml:"verify_signatures"`
	SignerKey        string        `yaml:"signer_key"`
}

// IndexConfig tunes KeyIndex compare-and-set retries.
type IndexConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{Driver: ledger.DriverSQLite, Path: DefaultLedgerPath},
		Chain: ChainConfig{
			ContractAddress: DefaultContractAddress,
			ChainID:         DefaultChainID,
		},
		Challenge: ChallengeConfig{DurationDays: DefaultDurationDays},
		Decrypt:   DecryptConfig{SettleDelay: DefaultSettleDelay},
		Index: IndexConfig{
			MaxRetries:    DefaultMaxRetries,
			RetryInterval: DefaultRetryInterval,
		},
		Subjects: append([]string(nil), record.DefaultSubjects...),
		Log:      LogConfig{Level: DefaultLogLevel},
	}
}

// Catalogue returns the configured subject catalogue.
func (c *Config) Catalogue() *record.Catalogue {
	return record.NewCatalogue(c.Subjects)
}

// LogLevel returns the slog level for Log.Level.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// Loader reads configuration. The zero value reads no dotenv file and uses
// the process environment.
type Loader struct {
	// EnvFile is overlaid under the process environment. A missing file is
	// ignored.
	EnvFile string

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load reads path with the default dotenv file and the process environment.
func Load(path string) (*Config, error) {
	return Loader{EnvFile: DefaultEnvFile}.Load(path)
}

// Load merges all sources and validates the result. An empty path falls
// back to FHETUTOR_CONFIG; when both are empty no file is read.
func (l Loader) Load(path string) (*Config, error) {
	lookup, err := l.environment()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path, _ = lookup(EnvConfig)
	}

	cfg := Default()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment returns a lookup where the process environment wins over the
// dotenv file, matching godotenv.Load.
func (l Loader) environment() (func(string) (string, bool), error) {
	process := l.LookupEnv
	if process == nil {
		process = os.LookupEnv
	}
	if l.EnvFile == "" {
		return process, nil
	}

	dotenv, err := godotenv.Read(l.EnvFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return process, nil
		}
		return nil, fmt.Errorf("reading %s: %w", l.EnvFile, err)
	}

	return func(key string) (string, bool) {
		if v, ok := process(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func readFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(document(cfg)))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// document is the schema view of cfg. Durations are nanoseconds.
func document(cfg *Config) map[string]any {
	subjects := cfg.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return map[string]any{
		"ledger": map[string]any{
			"driver": cfg.Ledger.Driver,
			"path":   cfg.Ledger.Path,
		},
		"chain": map[string]any{
			"contract_address": cfg.Chain.ContractAddress,
			"chain_id":         cfg.Chain.ChainID,
		},
		"challenge": map[string]any{
			"duration_days": cfg.Challenge.DurationDays,
		},
		"decrypt": map[string]any{
			"settle_delay":      int64(cfg.Decrypt.SettleDelay),
			"verify_signatures": cfg.Decrypt.VerifySignatures,
			"signer_key":        cfg.Decrypt.SignerKey,
		},
		"index": map[string]any{
			"max_retries":    cfg.Index.MaxRetries,
			"retry_interval": int64(cfg.Index.RetryInterval),
		},
		"subjects": subjects,
		"log": map[string]any{
			"level": cfg.Log.Level,
		},
	}
}
