package zonexfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/evalfun/zonesync/mlog"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every single server attempt.
const DefaultTimeout = 15 * time.Second

// ErrNoServerReachable is returned by Fetch when every server failed.
var ErrNoServerReachable = errors.New("no server reachable")

type Opts struct {
	Logger *zap.Logger

	// Timeout for dial, write and each read. Default is DefaultTimeout.
	Timeout time.Duration
}

// Fetcher pulls full zone transfers (AXFR).
type Fetcher struct {
	logger  *zap.Logger
	timeout time.Duration
}

func NewFetcher(opts Opts) *Fetcher {
	f := &Fetcher{
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}
	if f.logger == nil {
		f.logger = mlog.Nop()
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	return f
}

// Fetch asks each server in order for an AXFR of zone and returns the
// first transfer that starts successfully. Servers that fail are not
// retried.
func (f *Fetcher) Fetch(ctx context.Context, zone string, servers []string) (*Transfer, error) {
	zone = dns.Fqdn(zone)
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: %s: no servers configured", ErrNoServerReachable, zone)
	}

	var errs []error
	for _, s := range servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		addr := serverAddr(s)
		t, err := f.try(zone, addr)
		if err != nil {
			f.logger.Warn("zone transfer attempt failed",
				zap.String("zone", zone), zap.String("server", addr), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		f.logger.Debug("zone transfer started", zap.String("zone", zone), zap.String("server", addr))
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNoServerReachable, zone, errors.Join(errs...))
}

// try only succeeds once the first message of the transfer has been
// read, so refused, timed out and rcode errors all fail over.
func (f *Fetcher) try(zone, addr string) (*Transfer, error) {
	m := new(dns.Msg)
	m.SetAxfr(zone)
	tr := &dns.Transfer{
		DialTimeout:  f.timeout,
		ReadTimeout:  f.timeout,
		WriteTimeout: f.timeout,
	}
	ch, err := tr.In(m, addr)
	if err != nil {
		return nil, err
	}
	first, ok := <-ch
	if !ok {
		return nil, errors.New("empty transfer")
	}
	if first.Error != nil {
		drain(ch)
		return nil, interrupted(first.Error)
	}
	return &Transfer{server: addr, first: first.RR, primed: true, ch: ch}, nil
}

func serverAddr(s string) string {
	if _, _, err := net.SplitHostPort(s); err == nil {
		return s
	}
	return net.JoinHostPort(s, "53")
}

// interrupted keeps a connection dropped before the closing SOA from
// looking like the io.EOF that ends a complete transfer.
func interrupted(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("transfer interrupted before closing SOA: %w", io.ErrUnexpectedEOF)
	}
	return err
}

func drain(ch <-chan *dns.Envelope) {
	for range ch {
	}
}

// Transfer is a started zone transfer. Messages are read lazily from the
// server. A Transfer can only be consumed once.
type Transfer struct {
	server string
	first  []dns.RR
	primed bool
	ch     <-chan *dns.Envelope
	done   bool
}

// Server is the address that answered.
func (t *Transfer) Server() string {
	return t.server
}

// Next returns the answer records of the next message, or io.EOF once
// the transfer is complete.
func (t *Transfer) Next() ([]dns.RR, error) {
	if t.primed {
		t.primed = false
		rrs := t.first
		t.first = nil
		return rrs, nil
	}
	if t.done {
		return nil, io.EOF
	}
	env, ok := <-t.ch
	if !ok {
		t.done = true
		return nil, io.EOF
	}
	if env.Error != nil {
		t.done = true
		drain(t.ch)
		return nil, interrupted(env.Error)
	}
	return env.RR, nil
}

// Close discards whatever is left of the transfer. It is safe to call
// more than once.
func (t *Transfer) Close() {
	t.first, t.primed = nil, false
	if t.done {
		return
	}
	t.done = true
	drain(t.ch)
}
