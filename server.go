package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// ErrNoUsableAddress is returned when discovery found nothing to bind to
var ErrNoUsableAddress = errors.New("no non-local IPs to bind to found")

// State is the lifecycle position of one address
type State int

const (
	StateDiscovered State = iota
	StateTLSProvisioned
	StatePlaintextSelected
	StateListening
	StateTerminated
	StateFailed
	StateSkipped // dry run
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateTLSProvisioned:
		return "tls-provisioned"
	case StatePlaintextSelected:
		return "plaintext-selected"
	case StateListening:
		return "listening"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return "unknown"
}

// Attempt records what happened to one discovered address
type Attempt struct {
	Address   CandidateAddress
	URL       string
	TLS       bool   // Fixed when the listener is created
	BoundAddr string // Actual host:port once listening
	State     State
	Err       error
}

// Bootstrapper starts one listener per discovered address and supervises
// them. The first listener to fail stops all the others and its error is
// returned from Run.
type Bootstrapper struct {
	Port     int
	Insecure bool // Serve plaintext instead of TLS
	DryRun   bool // Print URLs without binding
	Handler  http.Handler
	Out      io.Writer // Operator facing startup output, defaults to stderr
	Logger   *slog.Logger

	// Optional, nil disables mDNS
	Advertiser Advertiser

	// Overridable for tests, default to the real implementations
	Discover  func() (iter.Seq[CandidateAddress], error)
	Provision func(host string) (*EphemeralCertificate, error)
	Listen    func(network, address string) (net.Listener, error)

	// OnListening is called once per listener after it is bound
	OnListening func(Attempt)

	mu       sync.Mutex
	attempts []*Attempt
}

// Attempts returns a snapshot of every attempt in discovery order
func (b *Bootstrapper) Attempts() []Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]Attempt, len(b.attempts))
	for i, a := range b.attempts {
		result[i] = *a
	}
	return result
}

// Run discovers the addresses and serves on each of them until ctx is done
// or a listener fails.
func (b *Bootstrapper) Run(ctx context.Context) error {
	discover := b.Discover
	if discover == nil {
		discover = Discover
	}
	addrs, err := discover()
	if err != nil {
		return fmt.Errorf("address discovery failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	found := 0
	stopped := false
	var setupErr error
	for addr := range addrs {
		if gctx.Err() != nil {
			stopped = true
			break
		}
		found++
		b.logger().Info("Found address", "address", addr.String(), "interface", addr.Interface, "default_route", addr.DefaultRoute)

		attempt := b.record(addr)
		if b.DryRun {
			b.update(attempt, func(a *Attempt) {
				a.TLS = !b.Insecure
				a.URL = connectionURL(a.TLS, addr.IP.String(), b.Port)
				a.State = StateSkipped
			})
			b.announce(attempt.URL)
			continue
		}

		srv, ln, err := b.start(attempt)
		if err != nil {
			setupErr = err
			break
		}
		stop := b.advertise(attempt, ln)

		g.Go(func() error {
			defer stop()
			return b.serve(gctx, attempt, srv, ln)
		})
		if b.OnListening != nil {
			b.OnListening(b.snapshot(attempt))
		}
	}

	// Cancelled before anything was bound: a shutdown, not an empty discovery
	if stopped && found == 0 {
		return g.Wait()
	}

	if found == 0 && setupErr == nil {
		b.logger().Error("No non-local IPs to bind to found!")
		return ErrNoUsableAddress
	}

	if setupErr != nil {
		cancel()
		g.Wait()
		return setupErr
	}
	return g.Wait()
}

// start provisions the identity, binds the address and prints the URL
func (b *Bootstrapper) start(attempt *Attempt) (*http.Server, net.Listener, error) {
	ip := attempt.Address.IP.String()

	var tlsConfig *tls.Config
	if !b.Insecure {
		provision := b.Provision
		if provision == nil {
			provision = ProvisionCertificate
		}
		cert, err := provision(ip)
		if err != nil {
			b.fail(attempt, err)
			return nil, nil, err
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert.TLSCertificate()},
			MinVersion:   tls.VersionTLS12,
		}
		b.update(attempt, func(a *Attempt) { a.TLS, a.State = true, StateTLSProvisioned })
	} else {
		b.update(attempt, func(a *Attempt) { a.State = StatePlaintextSelected })
	}

	listen := b.Listen
	if listen == nil {
		listen = net.Listen
	}
	hostPort := net.JoinHostPort(ip, strconv.Itoa(b.Port))
	ln, err := listen("tcp4", hostPort)
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", hostPort, err)
		b.fail(attempt, err)
		return nil, nil, err
	}

	port := b.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	b.update(attempt, func(a *Attempt) {
		a.URL = connectionURL(a.TLS, ip, port)
		a.BoundAddr = ln.Addr().String()
		a.State = StateListening
	})
	b.announce(attempt.URL)

	srv := &http.Server{
		Handler:           b.Handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(b.logger().Handler(), slog.LevelWarn),
	}
	return srv, ln, nil
}

// serve blocks until the listener fails or ctx is done
func (b *Bootstrapper) serve(ctx context.Context, attempt *Attempt, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		if srv.TLSConfig != nil {
			errc <- srv.ServeTLS(ln, "", "")
			return
		}
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		err = fmt.Errorf("listener %s terminated: %w", attempt.URL, err)
		b.fail(attempt, err)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			b.logger().Warn("listener shutdown", "url", attempt.URL, "error", err)
		}
		<-errc
		b.update(attempt, func(a *Attempt) { a.State = StateTerminated })
		b.logger().Debug("listener stopped", "url", attempt.URL)
		return nil
	}
}

func (b *Bootstrapper) advertise(attempt *Attempt, ln net.Listener) func() {
	if b.Advertiser == nil {
		return func() {}
	}
	port := b.Port
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	stop, err := b.Advertiser.Advertise(b.snapshot(attempt), port)
	if err != nil {
		b.logger().Warn("mDNS advertisement failed", "url", attempt.URL, "error", err)
		return func() {}
	}
	return stop
}

// announce prints the URL and its QR code for the operator
func (b *Bootstrapper) announce(url string) {
	out := b.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "URL: %s\n", url)
	for _, line := range RenderQR(url) {
		fmt.Fprintln(out, line)
	}
}

func (b *Bootstrapper) record(addr CandidateAddress) *Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()

	attempt := &Attempt{Address: addr, State: StateDiscovered}
	b.attempts = append(b.attempts, attempt)
	return attempt
}

func (b *Bootstrapper) update(attempt *Attempt, fn func(a *Attempt)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(attempt)
}

func (b *Bootstrapper) fail(attempt *Attempt, err error) {
	b.update(attempt, func(a *Attempt) { a.State, a.Err = StateFailed, err })
}

func (b *Bootstrapper) snapshot(attempt *Attempt) Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *attempt
}

func (b *Bootstrapper) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// connectionURL builds scheme://host:port/
func connectionURL(useTLS bool, host string, port int) string {
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}
