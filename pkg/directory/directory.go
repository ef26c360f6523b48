package directory

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/evalfun/zonesync/pkg/rrnorm"
)

const nullView = "null"

// ZoneParams describes a zone to look up by name, or create.
type ZoneParams struct {
	Name       string
	DefaultTTL int
	// SOAMName is the id of the primary nameserver object.
	SOAMName int
	SOARName string
	ViewID   *int
}

// RecordParams describes a record to look up by (zone, view, name, type),
// or create.
type RecordParams struct {
	ZoneID int
	ViewID *int
	Record *rrnorm.Canonical
	// DefaultTTL is used when the record carries a TTL of zero.
	DefaultTTL int
}

// Directory is the set of collections a sync touches.
type Directory struct {
	Nameservers *Repository[string, Nameserver]
	Views       *Repository[string, View]
	Zones       *Repository[ZoneParams, Zone]
	Records     *Repository[RecordParams, Record]
}

func New(c *Client) *Directory {
	return &Directory{
		Nameservers: NewRepository(NewCollection[Nameserver](c, "nameservers/"),
			func(name string) url.Values { return url.Values{"name": {name}} },
			func(name string) any { return map[string]any{"name": name} },
		),
		Views: NewRepository(NewCollection[View](c, "views/"),
			func(name string) url.Values { return url.Values{"slug": {Slug(name)}} },
			func(name string) any { return map[string]any{"name": name, "slug": Slug(name)} },
		),
		Zones:   NewRepository(NewCollection[Zone](c, "zones/"), zoneFilter, zonePayload),
		Records: NewRepository(NewCollection[Record](c, "records/"), recordFilter, recordPayload),
	}
}

// Slug derives a view slug from its display name.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func (d *Directory) EnsureNameserver(ctx context.Context, name string) (*Nameserver, error) {
	ns, _, err := d.Nameservers.Ensure(ctx, strings.TrimSuffix(name, "."))
	return ns, err
}

func (d *Directory) EnsureView(ctx context.Context, name string) (*View, error) {
	v, _, err := d.Views.Ensure(ctx, name)
	return v, err
}

func (d *Directory) EnsureZone(ctx context.Context, p ZoneParams) (*Zone, error) {
	p.Name = strings.TrimSuffix(p.Name, ".")
	z, _, err := d.Zones.Ensure(ctx, p)
	return z, err
}

func (d *Directory) EnsureRecord(ctx context.Context, p RecordParams) (*Record, bool, error) {
	return d.Records.Ensure(ctx, p)
}

func zoneFilter(p ZoneParams) url.Values {
	return url.Values{"name": {p.Name}}
}

func zonePayload(p ZoneParams) any {
	m := map[string]any{
		"name":        p.Name,
		"status":      "active",
		"default_ttl": p.DefaultTTL,
		"soa_mname":   p.SOAMName,
		"soa_rname":   p.SOARName,
	}
	if p.ViewID != nil {
		m["view"] = *p.ViewID
	}
	return m
}

func recordFilter(p RecordParams) url.Values {
	q := url.Values{
		"zone_id": {strconv.Itoa(p.ZoneID)},
		"name":    {p.Record.Name},
		"type":    {p.Record.Type},
	}
	// Leaving view_id out would match records in any view.
	if p.ViewID != nil {
		q.Set("view_id", strconv.Itoa(*p.ViewID))
	} else {
		q.Set("view_id", nullView)
	}
	return q
}

type recordPayloadBody struct {
	Zone     int    `json:"zone"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	TTL      int    `json:"ttl"`
	View     *int   `json:"view,omitempty"`
	Priority *int   `json:"priority,omitempty"`
	Weight   *int   `json:"weight,omitempty"`
	Port     *int   `json:"port,omitempty"`
	Target   string `json:"target,omitempty"`
}

func recordPayload(p RecordParams) any {
	r := p.Record
	b := recordPayloadBody{
		Zone:  p.ZoneID,
		Name:  r.Name,
		Type:  r.Type,
		Value: r.Value,
		TTL:   int(r.TTL),
		View:  p.ViewID,
	}
	if b.TTL == 0 {
		b.TTL = p.DefaultTTL
	}
	intp := func(v uint16) *int { i := int(v); return &i }
	switch r.Type {
	case "MX":
		b.Priority = intp(r.Priority)
		b.Target = r.Target
	case "SRV":
		b.Priority = intp(r.Priority)
		b.Weight = intp(r.Weight)
		b.Port = intp(r.Port)
		b.Target = r.Target
	}
	return b
}
