// qrdrop moves text and files from a phone to this machine over the LAN.
//
// It starts a listener on every non-loopback IPv4 address, prints each URL
// with a QR code to scan, and prints whatever is submitted through the
// upload form to stdout.
//
// Usage:
//
//	# Serve over HTTPS with a throwaway certificate on port 16333
//	qrdrop
//
//	# Plain HTTP on another port
//	qrdrop --insecure --port 8080
//
//	# Only print the URLs and codes
//	qrdrop --dry-run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var cfg = defaultConfig()

var rootCmd = &cobra.Command{
	Use:   "qrdrop",
	Short: "Drop text and files from a phone to this machine via QR code",
	Long: `qrdrop listens on every non-loopback IPv4 address of this host and prints
a QR code for each connection URL. Scan it, type or pick something in the
form, and the submitted values are printed to stdout.

Unless --insecure is given, each listener uses its own self-signed
certificate that is generated at startup and never written to disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "listen on this port")
	flags.BoolVar(&cfg.Insecure, "insecure", false, "serve plain HTTP instead of HTTPS")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "print URLs and QR codes without listening")
	flags.Int64Var(&cfg.MaxBodyBytes, "max-body", cfg.MaxBodyBytes, "maximum accepted request body in bytes")
	flags.BoolVar(&cfg.MDNS, "mdns", false, "advertise listeners over mDNS")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled if empty)")
	flags.CountVarP(&cfg.Verbosity, "verbose", "v", "increase log verbosity")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", false, "only log warnings and errors")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg)
	m := newMetrics()

	upload := NewUploadService(UploadConfig{
		MaxBodyBytes: cfg.MaxBodyBytes,
		Sink:         NewPrintSink(os.Stdout),
		Logger:       logger,
		Metrics:      m,
	})

	b := &Bootstrapper{
		Port:     cfg.Port,
		Insecure: cfg.Insecure,
		DryRun:   cfg.DryRun,
		Handler:  upload,
		Out:      os.Stderr,
		Logger:   logger,
	}
	if cfg.MDNS {
		b.Advertiser = zeroconfAdvertiser{logger: logger}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.MetricsAddr != "" && !cfg.DryRun {
		g.Go(func() error { return serveMetrics(runCtx, cfg.MetricsAddr, m, logger) })
	}
	g.Go(func() error {
		// The metrics endpoint has nothing to report once the listeners are gone
		defer cancel()
		return b.Run(runCtx)
	})
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
