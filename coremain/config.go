package coremain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/evalfun/zonesync/mlog"
	"github.com/evalfun/zonesync/pkg/directory"
	"github.com/evalfun/zonesync/pkg/journal"
	"github.com/evalfun/zonesync/pkg/zonesync"
	"github.com/evalfun/zonesync/pkg/zonexfer"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Log       mlog.LogConfig  `yaml:"log" mapstructure:"log"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	DNS       DNSConfig       `yaml:"dns" mapstructure:"dns"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Journal   journal.Args    `yaml:"journal" mapstructure:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

type DirectoryConfig struct {
	URL                string        `yaml:"url" mapstructure:"url"`
	Token              string        `yaml:"token" mapstructure:"token"`
	TokenScheme        string        `yaml:"token_scheme" mapstructure:"token_scheme"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	RateLimit          float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type DNSConfig struct {
	// Servers are tried in this order for every zone.
	Servers []string      `yaml:"servers" mapstructure:"servers"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type SyncConfig struct {
	ViewName   string              `yaml:"view_name" mapstructure:"view_name"`
	DefaultTTL int                 `yaml:"default_ttl" mapstructure:"default_ttl"`
	SOAMName   string              `yaml:"soa_mname" mapstructure:"soa_mname"`
	SOARName   string              `yaml:"soa_rname" mapstructure:"soa_rname"`
	Zones      []zonesync.ZoneSpec `yaml:"zones" mapstructure:"zones"`
}

type MetricsConfig struct {
	// Pushgateway is the url metrics are pushed to after a run. Empty disables pushing.
	Pushgateway string `yaml:"pushgateway" mapstructure:"pushgateway"`
	Job         string `yaml:"job" mapstructure:"job"`
}

// envBindings keeps the variable names existing deployments already set.
var envBindings = map[string]string{
	"log.level":                      "LOG_LEVEL",
	"log.file":                       "LOG_FILE",
	"log.production":                 "LOG_PRODUCTION",
	"directory.url":                  "NETBOX_URL",
	"directory.token":                "NETBOX_TOKEN",
	"directory.token_scheme":         "NETBOX_TOKEN_SCHEME",
	"directory.insecure_skip_verify": "NETBOX_INSECURE_SKIP_VERIFY",
	"directory.rate_limit":           "NETBOX_RATE_LIMIT",
	"directory.timeout":              "NETBOX_TIMEOUT",
	"dns.servers":                    "AD_DNS_SERVERS",
	"dns.timeout":                    "AXFR_TIMEOUT",
	"sync.view_name":                 "NETBOX_DNS_VIEW_NAME",
	"sync.default_ttl":               "DEFAULT_TTL",
	"sync.soa_mname":                 "DEFAULT_SOA_MNAME",
	"sync.soa_rname":                 "DEFAULT_SOA_RNAME",
	"sync.zones":                     "ZONES_TO_SYNC",
	"journal.database_type":          "JOURNAL_DATABASE_TYPE",
	"journal.database_address":       "JOURNAL_DATABASE_ADDRESS",
	"metrics.pushgateway":            "METRICS_PUSHGATEWAY",
	"metrics.job":                    "METRICS_JOB",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("directory.token_scheme", directory.DefaultTokenScheme)
	v.SetDefault("dns.timeout", zonexfer.DefaultTimeout)
	v.SetDefault("sync.view_name", "Internal")
	v.SetDefault("sync.default_ttl", 3600)
	v.SetDefault("metrics.job", "zonesync")
}

// LoadConfig reads the config file at path, if any, then applies the
// environment on top of it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := new(Config)
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		zoneSpecHook(),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DNS.Servers = compact(cfg.DNS.Servers)
	return cfg, nil
}

// zoneSpecHook accepts "example.com" or "10.in-addr.arpa:reverse" as a zone.
func zoneSpecHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(zonesync.ZoneSpec{}) {
			return data, nil
		}
		return parseZoneSpec(data.(string))
	}
}

func parseZoneSpec(s string) (zonesync.ZoneSpec, error) {
	name, flag, _ := strings.Cut(strings.TrimSpace(s), ":")
	z := zonesync.ZoneSpec{Name: strings.TrimSpace(name)}
	if z.Name == "" {
		return z, errors.New("empty zone name")
	}
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
	case "reverse":
		z.IsReverse = true
	default:
		return z, fmt.Errorf("zone %s: unknown flag %q", z.Name, flag)
	}
	return z, nil
}

func compact(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.Directory.URL == "" {
		errs = append(errs, errors.New("directory url is required (NETBOX_URL)"))
	}
	if c.Directory.Token == "" {
		errs = append(errs, errors.New("directory token is required (NETBOX_TOKEN)"))
	}
	if len(c.DNS.Servers) == 0 {
		errs = append(errs, errors.New("at least one dns server is required (AD_DNS_SERVERS)"))
	}
	if len(c.Sync.Zones) == 0 {
		errs = append(errs, errors.New("no zones to sync (ZONES_TO_SYNC)"))
	}
	if c.Sync.SOAMName == "" {
		errs = append(errs, errors.New("soa mname is required (DEFAULT_SOA_MNAME)"))
	}
	if c.Sync.DefaultTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid default ttl %d", c.Sync.DefaultTTL))
	}
	return errors.Join(errs...)
}

func (c *Config) syncOptions() zonesync.Options {
	return zonesync.Options{
		Servers:    c.DNS.Servers,
		ViewName:   c.Sync.ViewName,
		DefaultTTL: c.Sync.DefaultTTL,
		SOAMName:   c.Sync.SOAMName,
		SOARName:   c.Sync.SOARName,
		Zones:      c.Sync.Zones,
	}
}
