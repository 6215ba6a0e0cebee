// Command interact deploys and drives the counter and caller contracts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/branched-services/go-interact"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path of the YAML configuration file",
		EnvVars: []string{"INTERACT_CONFIG"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
)

func main() {
	app := &cli.App{
		Name:  "interact",
		Usage: "deploy and call the counter and caller contracts",
		Flags: []cli.Flag{configFlag, verbosityFlag},
		Before: func(c *cli.Context) error {
			setupLogging(c.Int(verbosityFlag.Name))
			return nil
		},
		Commands: []*cli.Command{
			&Deploy,
			&DeployCaller,
			&MultiDeploy,
			&Add,
			&CallCaller,
			&Feed,
			&Sum,
			&Upgrade,
			&Target,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func setupLogging(verbosity int) {
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), useColor)
	log.SetDefault(log.NewLogger(handler))
}

// exitCode maps failures to process exit codes. A broken upgrade invariant
// gets its own code so scripts can tell it apart from transport failures.
func exitCode(err error) int {
	if errors.Is(err, interact.ErrUpgradeInvariant) {
		return 2
	}
	return 1
}

// session bundles everything a command needs to talk to the ledger.
type session struct {
	client      *interact.Client
	tracer      *interact.Tracer
	registry    *prometheus.Registry
	metricsPath string
	backend     *ethclient.Client
}

// open loads the configuration, wallet and address book and dials the
// gateway. Contract code is only loaded when withCode is set.
func open(c *cli.Context, withCode bool) (*session, error) {
	cfg, err := interact.LoadConfig(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}

	wallet, err := interact.LoadWallet(cfg.WalletPath)
	if err != nil {
		return nil, err
	}
	book, err := interact.LoadAddressBook(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	var artifacts interact.Artifacts
	if withCode {
		artifacts, err = interact.LoadArtifacts(cfg.CounterCodePath, cfg.CallerCodePath)
		if err != nil {
			return nil, err
		}
	}

	ledger, backend, err := interact.DialEthLedger(c.Context, cfg.Gateway, wallet)
	if err != nil {
		return nil, err
	}

	var tracer *interact.Tracer
	if cfg.TracePath != "" {
		tracer = interact.NewTracer(cfg.TracePath)
	}
	registry := prometheus.NewRegistry()
	dispatcher := interact.NewDispatcher(ledger, append(cfg.DispatcherOptions(),
		interact.WithTracer(tracer),
		interact.WithMetrics(registry),
	)...)

	opts := append(cfg.ClientOptions(), interact.WithDispatcher(dispatcher))
	client := interact.NewClient(ledger, interact.NewSender(wallet.Address()), book, artifacts, opts...)

	return &session{
		client:      client,
		tracer:      tracer,
		registry:    registry,
		metricsPath: cfg.MetricsPath,
		backend:     backend,
	}, nil
}

// Close flushes the trace and metrics and releases the gateway connection.
func (s *session) Close() error {
	err := errors.Join(s.tracer.Flush(), interact.WriteMetrics(s.metricsPath, s.registry))
	s.backend.Close()
	return err
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(withCode bool, fn func(*cli.Context, *interact.Client) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := open(c, withCode)
		if err != nil {
			return err
		}
		return errors.Join(fn(c, s.client), s.Close())
	}
}
