// Package xfrtest runs throwaway AXFR endpoints on the loopback interface
// for use in tests.
package xfrtest

import (
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Zone is what a test server hands out for an AXFR.
type Zone struct {
	Name string

	// Messages are sent one per DNS message, wrapped in the SOA
	// that opens and closes a transfer.
	Messages [][]dns.RR

	// Truncate drops the closing SOA and hangs up after the last message.
	Truncate bool
}

// SOA builds a minimal SOA record for zone.
func SOA(zone string) dns.RR {
	zone = dns.Fqdn(zone)
	return &dns.SOA{
		Hdr:     dns.RR_Header{Name: zone, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Ns:      "ns1." + zone,
		Mbox:    "hostmaster." + zone,
		Serial:  1,
		Refresh: 3600,
		Retry:   600,
		Expire:  86400,
		Minttl:  300,
	}
}

// RRs parses zone file lines and fails the test on error.
func RRs(t testing.TB, lines ...string) []dns.RR {
	t.Helper()
	out := make([]dns.RR, 0, len(lines))
	for _, l := range lines {
		rr, err := dns.NewRR(l)
		if err != nil {
			t.Fatalf("bad record %q: %v", l, err)
		}
		out = append(out, rr)
	}
	return out
}

// Serve starts an authoritative server for z and returns its address.
// Queries for anything else get NOTAUTH.
func Serve(t testing.TB, z Zone) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	name := dns.Fqdn(z.Name)
	soa := SOA(name)
	h := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		if len(r.Question) != 1 || r.Question[0].Qtype != dns.TypeAXFR ||
			!strings.EqualFold(r.Question[0].Name, name) {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeNotAuth)
			_ = w.WriteMsg(m)
			return
		}

		ch := make(chan *dns.Envelope)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = new(dns.Transfer).Out(w, r, ch)
		}()
		for _, msg := range envelopes(soa, z.Messages, z.Truncate) {
			ch <- &dns.Envelope{RR: msg}
		}
		close(ch)
		<-done
		if z.Truncate {
			w.Hijack()
			_ = w.Close()
		}
	})

	started := make(chan struct{})
	srv := &dns.Server{Listener: l, Handler: h, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return l.Addr().String()
}

func envelopes(soa dns.RR, msgs [][]dns.RR, truncate bool) [][]dns.RR {
	if len(msgs) == 0 {
		msgs = [][]dns.RR{nil}
	}
	out := make([][]dns.RR, len(msgs))
	for i, m := range msgs {
		out[i] = append([]dns.RR(nil), m...)
	}
	out[0] = append([]dns.RR{soa}, out[0]...)
	if !truncate {
		last := len(out) - 1
		out[last] = append(out[last], soa)
	}
	return out
}

// Refusing returns a loopback address nothing listens on.
func Refusing(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// Silent returns the address of a listener that accepts connections and
// never answers.
func Silent(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return l.Addr().String()
}
