package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/r-heap47/gamehost/internal/errs"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}

	d.Duration = parsed

	return nil
}

// PortRange is an inclusive port range written as "25565-25574" or a single "25565".
type PortRange struct {
	From int
	To   int
}

// UnmarshalYAML implements yaml.Unmarshaler for PortRange.
func (r *PortRange) UnmarshalYAML(value *yaml.Node) error {
	from, to, found := strings.Cut(value.Value, "-")
	if !found {
		to = from
	}

	f, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return fmt.Errorf("invalid port range %q: %w", value.Value, err)
	}
	t, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return fmt.Errorf("invalid port range %q: %w", value.Value, err)
	}
	if f < 1 || t > 65535 || f > t {
		return fmt.Errorf("invalid port range %q", value.Value)
	}

	r.From, r.To = f, t

	return nil
}

// Config is the top-level application configuration.
type Config struct {
	GRPC         GRPCConfig         `yaml:"grpc"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Log          LogConfig          `yaml:"log"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Pool         PoolConfig         `yaml:"pool"`
	Timeouts     TimeoutsConfig     `yaml:"timeouts"`
	Placement    PlacementConfig    `yaml:"placement"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Panel        PanelConfig        `yaml:"panel"`
	Signals      SignalsConfig      `yaml:"signals"`
	Observer     ObserverConfig     `yaml:"observer"`
}

// GRPCConfig holds the gRPC server host and port.
type GRPCConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// GatewayConfig holds the HTTP gateway host, port and shutdown grace period.
type GatewayConfig struct {
	Host            string   `yaml:"host"`
	Port            string   `yaml:"port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	Pretty  bool `yaml:"pretty"`
}

// PoolConfig sizes the worker pool every panel workflow runs on.
type PoolConfig struct {
	Workers int `yaml:"workers"`
}

// TimeoutsConfig bounds single panel calls.
type TimeoutsConfig struct {
	Read  Duration `yaml:"read"`
	Write Duration `yaml:"write"`
	Scan  Duration `yaml:"scan"`
}

type PlacementConfig struct {
	LowHeadroomMB int64 `yaml:"low_headroom_mb"`
}

// FeatureLimitsConfig caps auxiliary resources of new servers.
type FeatureLimitsConfig struct {
	Databases int `yaml:"databases"`
	Backups   int `yaml:"backups"`
}

// ProvisioningConfig holds the workflow switches.
type ProvisioningConfig struct {
	DefaultEmailDomain string              `yaml:"default_email_domain"`
	FallbackAddress    string              `yaml:"fallback_address"`
	AllocationMode     string              `yaml:"allocation_mode"`
	OwnerMode          string              `yaml:"owner_mode"`
	ServiceAccountID   int64               `yaml:"service_account_id"`
	GrantMode          string              `yaml:"grant_mode"`
	JarFile            string              `yaml:"jar_file"`
	StartOnCompletion  bool                `yaml:"start_on_completion"`
	FeatureLimits      FeatureLimitsConfig `yaml:"feature_limits"`
	Environment        map[string]string   `yaml:"environment"`
	// OwnerPermissions and ControlPermissions override the built-in bundles when set.
	OwnerPermissions   []string `yaml:"owner_permissions"`
	ControlPermissions []string `yaml:"control_permissions"`
}

// PanelConfig configures the simulated panel the daemon runs against.
type PanelConfig struct {
	URL          string   `yaml:"url"`
	InstallDelay Duration `yaml:"install_delay"`
	// Persistence is a badger directory; empty keeps state in memory only.
	Persistence string          `yaml:"persistence"`
	LocalNode   LocalNodeConfig `yaml:"local_node"`
	// Seed replaces the built-in two-node catalog when set.
	Seed *SeedConfig `yaml:"seed"`
}

// LocalNodeConfig adds the host machine as a node sized by its physical memory.
type LocalNodeConfig struct {
	Enabled    bool      `yaml:"enabled"`
	Name       string    `yaml:"name"`
	LocationID int64     `yaml:"location_id"`
	IP         string    `yaml:"ip"`
	Alias      string    `yaml:"alias"`
	Ports      PortRange `yaml:"ports"`
}

type SeedConfig struct {
	Locations   []LocationSeed   `yaml:"locations"`
	Nodes       []NodeSeed       `yaml:"nodes"`
	Allocations []AllocationSeed `yaml:"allocations"`
	Eggs        []EggSeed        `yaml:"eggs"`
	Users       []UserSeed       `yaml:"users"`
}

type LocationSeed struct {
	ID    int64  `yaml:"id"`
	Short string `yaml:"short"`
	Long  string `yaml:"long"`
}

type NodeSeed struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	LocationID  int64  `yaml:"location_id"`
	MemoryMB    string `yaml:"memory"`
	Maintenance bool   `yaml:"maintenance"`
}

type AllocationSeed struct {
	NodeID int64     `yaml:"node_id"`
	IP     string    `yaml:"ip"`
	Alias  string    `yaml:"alias"`
	Ports  PortRange `yaml:"ports"`
}

type EggSeed struct {
	ID          int64  `yaml:"id"`
	NestID      int64  `yaml:"nest_id"`
	Name        string `yaml:"name"`
	DockerImage string `yaml:"docker_image"`
	Startup     string `yaml:"startup"`
}

type UserSeed struct {
	ID        int64  `yaml:"id"`
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
}

// SignalsConfig selects the install-completed signal bus.
type SignalsConfig struct {
	Driver        string `yaml:"driver"` // memory | nats
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ObserverConfig holds timing and threshold settings for the capacity observer.
type ObserverConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Delay          Duration `yaml:"delay"`
	Timeout        Duration `yaml:"timeout"`
	ErrorThreshold int      `yaml:"error_threshold"`
}

// Load reads and parses the YAML config file at the given path, fills
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint: gosec
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	return Parse(data)
}

// Parse is Load without the file.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults fills every unset value.
func (c *Config) SetDefaults() {
	setDefault(&c.GRPC.Host, "0.0.0.0")
	setDefault(&c.GRPC.Port, "5005")
	setDefault(&c.Gateway.Host, "0.0.0.0")
	setDefault(&c.Gateway.Port, "8080")
	setDefault(&c.Gateway.ShutdownTimeout.Duration, 5*time.Second)
	setDefault(&c.Log.Level, "info")

	setDefault(&c.Pool.Workers, 8)
	setDefault(&c.Timeouts.Read.Duration, 5*time.Second)
	setDefault(&c.Timeouts.Write.Duration, 10*time.Second)
	setDefault(&c.Timeouts.Scan.Duration, 10*time.Second)
	setDefault(&c.Placement.LowHeadroomMB, 2048)

	p := &c.Provisioning
	setDefault(&p.DefaultEmailDomain, "example.net")
	setDefault(&p.AllocationMode, "preselect")
	setDefault(&p.OwnerMode, "requester")
	setDefault(&p.GrantMode, "inline")
	setDefault(&p.JarFile, "server.jar")

	setDefault(&c.Panel.URL, "memory://local")
	setDefault(&c.Panel.InstallDelay.Duration, 3*time.Second)
	setDefault(&c.Panel.LocalNode.Name, "local")
	setDefault(&c.Panel.LocalNode.IP, "127.0.0.1")
	if c.Panel.LocalNode.Ports == (PortRange{}) {
		c.Panel.LocalNode.Ports = PortRange{From: 25565, To: 25574}
	}

	setDefault(&c.Signals.Driver, "memory")

	setDefault(&c.Observer.Delay.Duration, 15*time.Second)
	setDefault(&c.Observer.Timeout.Duration, 5*time.Second)
	setDefault(&c.Observer.ErrorThreshold, 5)
}

// Validate reports the first invalid field as an InvalidConfiguration error.
func (c *Config) Validate() error {
	if c.Pool.Workers < 1 {
		return errs.InvalidConfiguration("pool.workers", fmt.Errorf("must be at least 1, got %d", c.Pool.Workers))
	}

	positive := []struct {
		field string
		value time.Duration
	}{
		{"timeouts.read", c.Timeouts.Read.Duration},
		{"timeouts.write", c.Timeouts.Write.Duration},
		{"timeouts.scan", c.Timeouts.Scan.Duration},
		{"gateway.shutdown_timeout", c.Gateway.ShutdownTimeout.Duration},
		{"panel.install_delay", c.Panel.InstallDelay.Duration},
		{"observer.delay", c.Observer.Delay.Duration},
		{"observer.timeout", c.Observer.Timeout.Duration},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return errs.InvalidConfiguration(p.field, fmt.Errorf("must be positive, got %s", p.value))
		}
	}

	if u, err := url.Parse(c.Panel.URL); err != nil || u.Scheme == "" {
		return errs.InvalidConfiguration("panel.url", fmt.Errorf("malformed url %q", c.Panel.URL))
	}

	if addr := c.Provisioning.FallbackAddress; addr != "" && !validHost(addr) {
		return errs.InvalidConfiguration("provisioning.fallback_address", fmt.Errorf("malformed host %q", addr))
	}

	p := c.Provisioning
	if err := oneOf("provisioning.allocation_mode", p.AllocationMode, "preselect", "auto"); err != nil {
		return err
	}
	if err := oneOf("provisioning.owner_mode", p.OwnerMode, "requester", "service_account"); err != nil {
		return err
	}
	if err := oneOf("provisioning.grant_mode", p.GrantMode, "none", "inline", "on_install"); err != nil {
		return err
	}
	if p.OwnerMode == "service_account" && p.ServiceAccountID <= 0 {
		return errs.InvalidConfiguration("provisioning.service_account_id", errors.New("required by owner mode service_account"))
	}

	if err := oneOf("signals.driver", c.Signals.Driver, "memory", "nats"); err != nil {
		return err
	}
	if c.Signals.Driver == "nats" && c.Signals.URL == "" {
		return errs.InvalidConfiguration("signals.url", errors.New("required by driver nats"))
	}

	if c.Observer.ErrorThreshold < 1 {
		return errs.InvalidConfiguration("observer.error_threshold", fmt.Errorf("must be at least 1, got %d", c.Observer.ErrorThreshold))
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if lo.Contains(allowed, value) {
		return nil
	}
	return errs.InvalidConfiguration(field, fmt.Errorf("unknown value %q, want one of %v", value, allowed))
}

// validHost accepts a bare hostname or IP without port, scheme or path.
func validHost(addr string) bool {
	u, err := url.Parse("//" + addr)
	if err != nil {
		return false
	}
	return u.Host == addr && u.Port() == "" && u.Path == "" && !strings.ContainsAny(addr, " @")
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
