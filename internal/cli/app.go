package cli

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fhetutor/internal/authz"
	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/config"
	"github.com/roach88/fhetutor/internal/ledger"
	"github.com/roach88/fhetutor/internal/lifecycle"
	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/store"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Deps replaces collaborators that are otherwise built from the
// configuration. Nil fields keep the configured collaborator.
type Deps struct {
	Ledger ledger.Ledger // never closed by the CLI
	Clock  Clock
	IDs    store.IDGenerator

	// Noise is the codec noise source for analyze.
	Noise func() float64

	// Random feeds public key generation.
	Random io.Reader

	// Pick chooses a recommendation focus area in [0, n).
	Pick func(n int) int

	// EnvFile and LookupEnv replace the dotenv file and process
	// environment. An empty EnvFile reads no dotenv file.
	EnvFile   string
	LookupEnv func(key string) (string, bool)

	// LogOutput receives slog output instead of the command's stderr.
	LogOutput io.Writer
}

// App is one command's wiring: configuration, ledger, store, lifecycle
// service and metrics.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	codec   codec.Codec
	store   *store.Store
	service *lifecycle.Service
	clock   Clock
	random  io.Reader
	pick    func(n int) int

	ledger      ledger.Ledger
	ownsLedger  bool
	metricsFile string
}

// openApp loads the configuration and opens the ledger. Callers must Close
// the App.
func openApp(opts *RootOptions, cmd *cobra.Command) (*App, error) {
	deps := opts.Deps
	loader := config.Loader{EnvFile: config.DefaultEnvFile}
	if deps == nil {
		deps = &Deps{}
	} else {
		loader = config.Loader{EnvFile: deps.EnvFile, LookupEnv: deps.LookupEnv}
	}

	cfg, err := loader.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	// Configure logging based on config and verbose flag
	level := cfg.LogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logOut := deps.LogOutput
	if logOut == nil {
		logOut = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	app := &App{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics.New(),
		clock:       deps.Clock,
		random:      deps.Random,
		pick:        deps.Pick,
		ledger:      deps.Ledger,
		metricsFile: opts.MetricsFile,
	}
	if app.clock == nil {
		app.clock = lifecycle.SystemClock{}
	}
	if app.pick == nil {
		app.pick = rand.IntN
	}

	if app.ledger == nil {
		logger.Debug("opening ledger", "driver", cfg.Ledger.Driver, "path", cfg.Ledger.Path)
		l, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		app.ledger = l
		app.ownsLedger = true
	}
	instrumented := ledger.Instrument(app.ledger, app.metrics)

	var codecOpts []codec.Option
	if deps.Noise != nil {
		codecOpts = append(codecOpts, codec.WithNoise(deps.Noise))
	}
	app.codec = codec.NewSimulated(codecOpts...)

	app.store = store.New(instrumented, store.Options{
		IDs:           deps.IDs,
		Logger:        logger,
		Metrics:       app.metrics,
		MaxRetries:    cfg.Index.MaxRetries,
		RetryInterval: cfg.Index.RetryInterval,
	})
	app.service = lifecycle.New(app.store, app.codec, lifecycle.Options{
		Catalogue: cfg.Catalogue(),
		Clock:     app.clock,
		Logger:    logger,
		Metrics:   app.metrics,
	})

	logger.Debug("app ready",
		"driver", cfg.Ledger.Driver,
		"versioned", app.store.Versioned(),
		"subjects", app.service.Catalogue().Len(),
	)
	return app, nil
}

// Close releases the ledger and writes the metrics file, if requested.
func (a *App) Close() error {
	var errs []error
	if a.ownsLedger {
		if err := ledger.Close(a.ledger); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metricsFile != "" {
		if err := a.metrics.WriteFile(a.metricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeApp closes a and reports a close failure only when the command
// itself succeeded.
func closeApp(a *App, err *error) {
	if closeErr := a.Close(); closeErr != nil {
		a.logger.Error("error closing app", "error", closeErr)
		if *err == nil {
			*err = WrapExitError(ExitCommandError, "failed to close", closeErr)
		}
	}
}

// protocol builds the decryption protocol. A zero start opens the window
// now; an empty publicKey generates fresh key material.
func (a *App) protocol(start time.Time, publicKey string) (*authz.Protocol, error) {
	var verifier authz.Verifier
	if a.cfg.Decrypt.VerifySignatures {
		verifier = authz.NewHMACVerifier([]byte(a.cfg.Decrypt.SignerKey))
	}
	return authz.NewProtocol(a.codec, authz.Config{
		ContractAddress: a.cfg.Chain.ContractAddress,
		ChainID:         a.cfg.Chain.ChainID,
		DurationDays:    a.cfg.Challenge.DurationDays,
		SettleDelay:     a.cfg.Decrypt.SettleDelay,
		Start:           start,
		PublicKey:       publicKey,
		Random:          a.random,
		Verifier:        verifier,
		Clock:           a.clock,
		Logger:          a.logger,
		Metrics:         a.metrics,
	})
}

// signer picks who answers the challenge: an explicit signature, the
// configured key, or the caller's address as a stand-in key.
func (a *App) signer(signature, caller string) authz.Signer {
	switch {
	case signature != "":
		return staticSigner(signature)
	case a.cfg.Decrypt.SignerKey != "":
		return authz.NewKeySigner([]byte(a.cfg.Decrypt.SignerKey))
	default:
		return authz.NewKeySigner([]byte(strings.ToLower(caller)))
	}
}

// requireCaller returns the --as address or a command error.
func requireCaller(opts *RootOptions) (string, error) {
	caller := strings.TrimSpace(opts.As)
	if caller == "" {
		return "", NewExitError(ExitCommandError, "--as is required: pass the wallet address of the caller")
	}
	return caller, nil
}

// newFormatter creates the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
