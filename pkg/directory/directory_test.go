package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evalfun/zonesync/pkg/directory/dirtest"
	"github.com/evalfun/zonesync/pkg/rrnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) (*dirtest.Server, *Directory) {
	t.Helper()
	srv := dirtest.New(t)
	client, err := NewClient(srv.URL, srv.Token, Opts{})
	require.NoError(t, err)
	return srv, New(client)
}

func intp(i int) *int { return &i }

func TestNewClient(t *testing.T) {
	_, err := NewClient("", "token", Opts{})
	assert.Error(t, err)
	_, err = NewClient("https://netbox.example.com", "", Opts{})
	assert.Error(t, err)
	_, err = NewClient("netbox.example.com", "token", Opts{})
	assert.Error(t, err)

	c, err := NewClient("https://netbox.example.com/", "token", Opts{InsecureSkipVerify: true, RateLimit: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "https://netbox.example.com/api/plugins/netbox-dns/records/", c.endpoint("records/", nil).String())
	assert.NotNil(t, c.limiter)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "internal", Slug("Internal"))
	assert.Equal(t, "corp-internal-dns", Slug("Corp Internal DNS"))
}

func TestEnsureNameserverAndView(t *testing.T) {
	srv, d := setupTest(t)
	ctx := context.Background()

	ns, err := d.EnsureNameserver(ctx, "dc1.corp.example.com.")
	require.NoError(t, err)
	assert.Equal(t, "dc1.corp.example.com", ns.Name)

	again, err := d.EnsureNameserver(ctx, "dc1.corp.example.com")
	require.NoError(t, err)
	assert.Equal(t, ns.ID, again.ID)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "nameservers"))

	v, err := d.EnsureView(ctx, "Corp Internal")
	require.NoError(t, err)
	assert.Equal(t, "corp-internal", v.Slug)
	assert.Equal(t, "Corp Internal", v.Name)
}

func TestEnsureZone(t *testing.T) {
	srv, d := setupTest(t)
	ctx := context.Background()

	z, err := d.EnsureZone(ctx, ZoneParams{Name: "example.com.", DefaultTTL: 3600, SOAMName: 7, SOARName: "hostmaster.example.com", ViewID: intp(3)})
	require.NoError(t, err)
	assert.Equal(t, "example.com", z.Name)
	require.NotNil(t, z.View)
	assert.Equal(t, 3, z.View.ID)

	stored := srv.Objects("zones")
	require.Len(t, stored, 1)
	assert.Equal(t, "active", stored[0]["status"])
	assert.Equal(t, float64(7), stored[0]["soa_mname"])
	assert.Equal(t, float64(3600), stored[0]["default_ttl"])

	_, err = d.EnsureZone(ctx, ZoneParams{Name: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "zones"))
}

func TestEnsureRecord_FirstMatchWins(t *testing.T) {
	srv, d := setupTest(t)
	ctx := context.Background()

	first, created, err := d.EnsureRecord(ctx, RecordParams{
		ZoneID: 1, ViewID: intp(2),
		Record: &rrnorm.Canonical{Name: "www", Type: "A", Value: "10.0.0.2", TTL: 300},
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := d.EnsureRecord(ctx, RecordParams{
		ZoneID: 1, ViewID: intp(2),
		Record: &rrnorm.Canonical{Name: "www", Type: "A", Value: "10.0.0.99", TTL: 60},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "10.0.0.2", second.Value)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "records"))
}

func TestEnsureRecord_NullView(t *testing.T) {
	srv, d := setupTest(t)
	ctx := context.Background()
	srv.Seed("records", map[string]any{"zone": float64(1), "view": float64(5), "name": "www", "type": "A", "value": "10.0.0.2"})

	rec, created, err := d.EnsureRecord(ctx, RecordParams{
		ZoneID:     1,
		Record:     &rrnorm.Canonical{Name: "www", Type: "A", Value: "10.0.0.2"},
		DefaultTTL: 3600,
	})
	require.NoError(t, err)
	assert.True(t, created, "record in another view must not match")
	assert.Nil(t, rec.View)
	require.NotNil(t, rec.TTL)
	assert.Equal(t, 3600, *rec.TTL)
}

func TestEnsureRecord_Payloads(t *testing.T) {
	srv, d := setupTest(t)
	ctx := context.Background()

	_, _, err := d.EnsureRecord(ctx, RecordParams{ZoneID: 4, Record: &rrnorm.Canonical{
		Name: "_ldap._tcp", Type: "SRV", Value: "0 100 389 dc1.example.com.", TTL: 600,
		Priority: 0, Weight: 100, Port: 389, Target: "dc1.example.com.",
	}})
	require.NoError(t, err)
	_, _, err = d.EnsureRecord(ctx, RecordParams{ZoneID: 4, Record: &rrnorm.Canonical{
		Name: "@", Type: "MX", Value: "10 mail.example.com.", TTL: 600, Priority: 10, Target: "mail.example.com.",
	}})
	require.NoError(t, err)
	_, _, err = d.EnsureRecord(ctx, RecordParams{ZoneID: 4, Record: &rrnorm.Canonical{
		Name: "@", Type: "A", Value: "10.0.0.1", TTL: 600,
	}})
	require.NoError(t, err)

	stored := srv.Objects("records")
	require.Len(t, stored, 3)

	srv0 := stored[0]
	assert.Equal(t, float64(0), srv0["priority"])
	assert.Equal(t, float64(100), srv0["weight"])
	assert.Equal(t, float64(389), srv0["port"])
	assert.Equal(t, "dc1.example.com.", srv0["target"])
	assert.NotContains(t, srv0, "view")

	mx := stored[1]
	assert.Equal(t, float64(10), mx["priority"])
	assert.Equal(t, "mail.example.com.", mx["target"])
	assert.NotContains(t, mx, "weight")

	a := stored[2]
	assert.NotContains(t, a, "priority")
	assert.NotContains(t, a, "target")
}

func TestEnsureRecord_Rejected(t *testing.T) {
	srv, d := setupTest(t)
	srv.Fail(http.MethodPost, "records", http.StatusBadRequest, `{"value":["Enter a valid IPv4 address."]}`)

	_, _, err := d.EnsureRecord(context.Background(), RecordParams{ZoneID: 1, Record: &rrnorm.Canonical{Name: "x", Type: "A", Value: "bogus"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrUnavailable)

	var re *RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Contains(t, re.Body, "valid IPv4")
}

func TestBadToken(t *testing.T) {
	srv := dirtest.New(t)
	c, err := NewClient(srv.URL, "wrong", Opts{})
	require.NoError(t, err)

	_, err = New(c).EnsureNameserver(context.Background(), "ns1")
	var re *RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
	assert.Equal(t, 0, srv.Count(http.MethodGet, "nameservers"))
}

func TestUnavailable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	c, err := NewClient(dead.URL, "token", Opts{})
	require.NoError(t, err)

	_, err = New(c).EnsureView(context.Background(), "Internal")
	assert.ErrorIs(t, err, ErrUnavailable)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins/netbox-dns/views/", func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte("<html>not json</html>"))
	})
	garbage := httptest.NewServer(mux)
	t.Cleanup(garbage.Close)
	c, err = NewClient(garbage.URL, "token", Opts{})
	require.NoError(t, err)

	_, err = New(c).EnsureView(context.Background(), "Internal")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRateLimitedClient(t *testing.T) {
	srv := dirtest.New(t)
	c, err := NewClient(srv.URL, srv.Token, Opts{RateLimit: 100})
	require.NoError(t, err)
	d := New(c)

	for i := 0; i < 3; i++ {
		_, err := d.EnsureNameserver(context.Background(), "ns1.example.com")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, srv.Count(http.MethodGet, "nameservers"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.EnsureNameserver(ctx, "ns1.example.com")
	assert.ErrorIs(t, err, ErrUnavailable)
}
