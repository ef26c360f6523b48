package rrnorm

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func skipReason(t *testing.T, err error) Reason {
	t.Helper()
	var se *SkipError
	require.True(t, errors.As(err, &se), "want *SkipError, got %v", err)
	return se.Reason
}

func TestOwnerName(t *testing.T) {
	tests := []struct {
		owner, zone, want string
	}{
		{"example.com.", "example.com.", "@"},
		{"EXAMPLE.com.", "example.com", "@"},
		{"www.example.com.", "example.com.", "www"},
		{"a.b.Example.COM.", "example.com.", "a.b"},
		{"_ldap._tcp.example.com.", "example.com.", "_ldap._tcp"},
		{"1.0.0.10.in-addr.arpa.", "10.in-addr.arpa.", "1.0.0"},
		{"www.other.org.", "example.com.", "www.other.org"},
		{"www.example.com.", ".", "www.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnerName(tt.owner, tt.zone), "%s in %s", tt.owner, tt.zone)
	}
}

func TestSupported(t *testing.T) {
	for _, typ := range []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeTXT, dns.TypePTR, dns.TypeMX, dns.TypeSRV} {
		assert.True(t, Supported(typ), dns.TypeToString[typ])
	}
	for _, typ := range []uint16{dns.TypeSOA, dns.TypeNS, dns.TypeCAA, dns.TypeDNSKEY} {
		assert.False(t, Supported(typ), dns.TypeToString[typ])
	}
}

func TestNormalize_Address(t *testing.T) {
	c, err := Normalize(mustRR(t, "example.com. 300 IN A 10.0.0.1"), "example.com.")
	require.NoError(t, err)
	assert.Equal(t, &Canonical{Name: "@", Type: "A", Value: "10.0.0.1", TTL: 300}, c)

	c, err = Normalize(mustRR(t, "host.example.com. 60 IN AAAA 2001:db8::1"), "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "host", c.Name)
	assert.Equal(t, "AAAA", c.Type)
	assert.Equal(t, "2001:db8::1", c.Value)

	_, err = Normalize(&dns.A{Hdr: dns.RR_Header{Name: "bad.example.com.", Rrtype: dns.TypeA}}, "example.com.")
	assert.Equal(t, ParseFailure, skipReason(t, err))
}

func TestNormalize_PTR(t *testing.T) {
	c, err := Normalize(mustRR(t, "1.0.0.10.in-addr.arpa. 3600 IN PTR host.example.com."), "10.in-addr.arpa.")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", c.Name)
	assert.Equal(t, "host.example.com", c.Value)
}

func TestNormalize_CNAME(t *testing.T) {
	c, err := Normalize(mustRR(t, "www.example.com. 300 IN CNAME web.example.com."), "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "web.example.com.", c.Value)

	c, err = Normalize(&dns.CNAME{
		Hdr:    dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeCNAME, Ttl: 300},
		Target: "web.example.com",
	}, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "web.example.com.", c.Value)

	for _, target := range []string{`web\.lb.example.com.`, "web,lb.example.com."} {
		_, err = Normalize(&dns.CNAME{
			Hdr:    dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeCNAME},
			Target: target,
		}, "example.com.")
		assert.Equal(t, MalformedCnameTarget, skipReason(t, err), target)
	}
}

func TestNormalize_ServiceNameFilter(t *testing.T) {
	for _, s := range []string{
		"_dc.example.com. 300 IN A 10.0.0.5",
		"_dc.example.com. 300 IN AAAA ::1",
		"_x.www.example.com. 300 IN CNAME www.example.com.",
	} {
		_, err := Normalize(mustRR(t, s), "example.com.")
		assert.Equal(t, ServiceNameMisclassified, skipReason(t, err), s)
		assert.True(t, IsSkip(err))
	}

	// only address and alias records are filtered
	c, err := Normalize(mustRR(t, `_dmarc.example.com. 300 IN TXT "v=DMARC1; p=none"`), "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "_dmarc", c.Name)
}

func TestNormalize_TXT(t *testing.T) {
	c, err := Normalize(mustRR(t, `example.com. 300 IN TXT "v=spf1 " "include:_spf.example.com " "-all"`), "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "v=spf1 include:_spf.example.com -all", c.Value)

	c, err = Normalize(&dns.TXT{
		Hdr: dns.RR_Header{Name: "q.example.com.", Rrtype: dns.TypeTXT},
		Txt: []string{`say \"hi\"`, `\226\156\147`},
	}, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, `say "hi"✓`, c.Value)

	_, err = Normalize(&dns.TXT{
		Hdr: dns.RR_Header{Name: "q.example.com.", Rrtype: dns.TypeTXT},
		Txt: []string{`\255\254`},
	}, "example.com.")
	assert.Equal(t, ParseFailure, skipReason(t, err))

	_, err = Normalize(&dns.TXT{
		Hdr: dns.RR_Header{Name: "q.example.com.", Rrtype: dns.TypeTXT},
		Txt: []string{`abc\`},
	}, "example.com.")
	assert.Equal(t, ParseFailure, skipReason(t, err))
}

// opaqueTXT is TXT data that never got split into character strings.
type opaqueTXT struct {
	*dns.RFC3597
	text string
}

func (o opaqueTXT) String() string { return o.Hdr.String() + o.text }

func TestNormalize_TXTFallback(t *testing.T) {
	rr := opaqueTXT{
		RFC3597: &dns.RFC3597{Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60}},
		text:    `"google-site-verification=abc"`,
	}
	c, err := Normalize(rr, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "@", c.Name)
	assert.Equal(t, "google-site-verification=abc", c.Value)
}

func TestNormalize_MX(t *testing.T) {
	c, err := Normalize(&dns.MX{
		Hdr:        dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeMX, Ttl: 3600},
		Preference: 10,
		Mx:         "mail.example.com",
	}, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "10 mail.example.com.", c.Value)
	assert.Equal(t, uint16(10), c.Priority)
	assert.Equal(t, "mail.example.com.", c.Target)

	toks := strings.Fields(c.Value)
	require.Len(t, toks, 2)
	assert.True(t, strings.HasSuffix(toks[1], "."))
}

func TestNormalize_SRV(t *testing.T) {
	c, err := Normalize(&dns.SRV{
		Hdr:      dns.RR_Header{Name: "_ldap._tcp.example.com.", Rrtype: dns.TypeSRV, Ttl: 600},
		Priority: 0,
		Weight:   100,
		Port:     389,
		Target:   "dc1.example.com",
	}, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "_ldap._tcp", c.Name)
	assert.Equal(t, "0 100 389 dc1.example.com.", c.Value)
	assert.Equal(t, uint16(100), c.Weight)
	assert.Equal(t, uint16(389), c.Port)
	assert.Equal(t, "dc1.example.com.", c.Target)

	toks := strings.Fields(c.Value)
	require.Len(t, toks, 4)
	assert.True(t, strings.HasSuffix(toks[3], "."))
}

func TestNormalize_Unexpected(t *testing.T) {
	_, err := Normalize(mustRR(t, "example.com. 300 IN NS ns1.example.com."), "example.com.")
	assert.Equal(t, ParseFailure, skipReason(t, err))

	_, err = Normalize(nil, "example.com.")
	assert.Equal(t, ParseFailure, skipReason(t, err))
}

func TestNormalize_IPv4Mapped(t *testing.T) {
	c, err := Normalize(&dns.A{
		Hdr: dns.RR_Header{Name: "v4.example.com.", Rrtype: dns.TypeA},
		A:   net.ParseIP("192.0.2.7"),
	}, "example.com.")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7", c.Value)
}
