package rrnorm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Apex is the owner name used for records at the zone root.
const Apex = "@"

type Reason string

const (
	// MalformedCnameTarget is used for CNAME targets the directory can not store.
	MalformedCnameTarget Reason = "MalformedCnameTarget"
	// ServiceNameMisclassified is used for address or alias records
	// whose owner looks like a service label (contains "_").
	ServiceNameMisclassified Reason = "ServiceNameMisclassified"
	// ParseFailure is used when the record value can not be rendered.
	ParseFailure Reason = "ParseFailure"
)

// SkipError tells the caller to drop a single record and carry on.
type SkipError struct {
	Reason Reason
	Name   string
	Type   string
	Detail string
}

func (e *SkipError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("skip %s record %s: %s", e.Type, e.Name, e.Reason)
	}
	return fmt.Sprintf("skip %s record %s: %s: %s", e.Type, e.Name, e.Reason, e.Detail)
}

// IsSkip reports whether err is (or wraps) a *SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// Canonical is a record in the shape the directory stores.
// Priority and Target are set for MX and SRV, Weight and Port for SRV only.
type Canonical struct {
	Name     string
	Type     string
	Value    string
	TTL      uint32
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

var supported = map[uint16]struct{}{
	dns.TypeA:     {},
	dns.TypeAAAA:  {},
	dns.TypeCNAME: {},
	dns.TypeTXT:   {},
	dns.TypePTR:   {},
	dns.TypeMX:    {},
	dns.TypeSRV:   {},
}

// Supported reports whether records of type t are synced at all.
func Supported(t uint16) bool {
	_, ok := supported[t]
	return ok
}

// OwnerName returns owner relative to zone, without the trailing dot,
// or Apex if owner is the zone itself.
func OwnerName(owner, zone string) string {
	o, z := dns.Fqdn(owner), dns.Fqdn(zone)
	if dns.CanonicalName(o) == dns.CanonicalName(z) {
		return Apex
	}
	if dns.IsSubDomain(z, o) {
		o = o[:len(o)-len(z)]
	}
	return strings.TrimSuffix(o, ".")
}

// Normalize converts rr, transferred from zone, into its canonical form.
// A non-nil error is always a *SkipError.
func Normalize(rr dns.RR, zone string) (*Canonical, error) {
	if rr == nil || rr.Header() == nil {
		return nil, &SkipError{Reason: ParseFailure, Detail: "empty record"}
	}
	hdr := rr.Header()
	c := &Canonical{
		Name: OwnerName(hdr.Name, zone),
		Type: dns.TypeToString[hdr.Rrtype],
		TTL:  hdr.Ttl,
	}
	skip := func(r Reason, format string, args ...any) (*Canonical, error) {
		return nil, &SkipError{Reason: r, Name: c.Name, Type: c.Type, Detail: fmt.Sprintf(format, args...)}
	}

	switch hdr.Rrtype {
	case dns.TypeA, dns.TypeAAAA, dns.TypeCNAME:
		if strings.Contains(c.Name, "_") {
			return skip(ServiceNameMisclassified, "owner looks like a service name")
		}
	}

	switch v := rr.(type) {
	case *dns.A:
		if v.A.To4() == nil {
			return skip(ParseFailure, "invalid ipv4 address %v", v.A)
		}
		c.Value = v.A.String()
	case *dns.AAAA:
		if v.AAAA.To16() == nil {
			return skip(ParseFailure, "invalid ipv6 address %v", v.AAAA)
		}
		c.Value = v.AAAA.String()
	case *dns.PTR:
		if v.Ptr == "" {
			return skip(ParseFailure, "empty ptr target")
		}
		c.Value = strings.TrimSuffix(dns.Fqdn(v.Ptr), ".")
	case *dns.CNAME:
		if v.Target == "" {
			return skip(ParseFailure, "empty cname target")
		}
		target := dns.Fqdn(v.Target)
		// The directory stores names verbatim and has no escape syntax.
		if strings.ContainsAny(target, `\,`) {
			return skip(MalformedCnameTarget, "%q", target)
		}
		c.Value = target
	case *dns.TXT:
		s, err := joinCharacterStrings(v.Txt)
		if err != nil {
			return skip(ParseFailure, "%v", err)
		}
		c.Value = s
	case *dns.MX:
		if v.Mx == "" {
			return skip(ParseFailure, "empty mx exchange")
		}
		c.Priority = v.Preference
		c.Target = dns.Fqdn(v.Mx)
		c.Value = fmt.Sprintf("%d %s", c.Priority, c.Target)
	case *dns.SRV:
		if v.Target == "" {
			return skip(ParseFailure, "empty srv target")
		}
		c.Priority = v.Priority
		c.Weight = v.Weight
		c.Port = v.Port
		c.Target = dns.Fqdn(v.Target)
		c.Value = fmt.Sprintf("%d %d %d %s", c.Priority, c.Weight, c.Port, c.Target)
	default:
		if hdr.Rrtype != dns.TypeTXT {
			return skip(ParseFailure, "unexpected record variant %T", rr)
		}
		// TXT data that was not decoded into segments.
		c.Value = strings.Trim(rdataText(rr), `"`)
	}
	return c, nil
}

// rdataText is the presentation form of rr without its header.
func rdataText(rr dns.RR) string {
	return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
}
