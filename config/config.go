package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/splitdb"
	"github.com/arloliu/splitdb/idgen"
	"github.com/arloliu/splitdb/replica"
	"github.com/arloliu/splitdb/topology"
	"github.com/arloliu/splitdb/types"
)

// Config represents a splitdb configuration file.
type Config struct {
	Driver      string            `yaml:"driver"`
	Primary     string            `yaml:"primary"`
	Replicas    []string          `yaml:"replicas"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
	Routing     RoutingConfig     `yaml:"routing"`
	IDGenerator IDGeneratorConfig `yaml:"id_generator"`
	Topology    TopologyConfig    `yaml:"topology"`
}

// HealthCheckConfig configures replica probing.
type HealthCheckConfig struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	// Query, when set, probes through dedicated connections with
	// replica.SQLProber instead of pinging the client's own pools.
	Query string `yaml:"query"`
}

// RoutingConfig configures decision bookkeeping.
type RoutingConfig struct {
	DecisionTTL          time.Duration `yaml:"decision_ttl"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	MaxTrackedStatements *int          `yaml:"max_tracked_statements"`
}

// IDGeneratorConfig configures the snowflake generator.
type IDGeneratorConfig struct {
	DatacenterID   int64         `yaml:"datacenter_id"`
	WorkerID       int64         `yaml:"worker_id"`
	Epoch          string        `yaml:"epoch"` // RFC 3339
	DriftTolerance time.Duration `yaml:"drift_tolerance"`
	Layout         *LayoutConfig `yaml:"layout"`
}

// LayoutConfig overrides the default 5/5/12 bit split.
type LayoutConfig struct {
	DatacenterBits uint `yaml:"datacenter_bits"`
	WorkerBits     uint `yaml:"worker_bits"`
	SequenceBits   uint `yaml:"sequence_bits"`
}

// TopologyConfig points the client at a NATS KV drain key.
type TopologyConfig struct {
	NATSURL      string        `yaml:"nats_url"`
	Bucket       string        `yaml:"bucket"`
	Key          string        `yaml:"key"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Enabled reports whether a NATS drain watcher is configured.
func (t TopologyConfig) Enabled() bool {
	return t.NATSURL != ""
}

// Load reads configuration from a YAML file.
//
// ${VAR} references are expanded from the environment before parsing, so
// credentials can stay out of the file. Unknown keys are rejected.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: The parsed and validated configuration
//   - error: Read, parse or validation failure
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML configuration.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - *Config: The parsed and validated configuration
//   - error: Parse or validation failure
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration.
//
// Returns:
//   - error: *types.ConfigurationError naming the first invalid field
func (c *Config) Validate() error {
	if c.Driver == "" {
		return types.NewConfigurationError("driver", "must not be empty")
	}
	if c.Primary == "" {
		return types.NewConfigurationError("primary", "must not be empty")
	}
	if len(c.Replicas) == 0 {
		return types.NewConfigurationError("replicas", "at least one replica is required")
	}
	for i, r := range c.Replicas {
		if r == "" {
			return types.NewConfigurationError(fmt.Sprintf("replicas[%d]", i), "must not be empty")
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"health_check.interval", c.HealthCheck.Interval},
		{"health_check.timeout", c.HealthCheck.Timeout},
		{"routing.decision_ttl", c.Routing.DecisionTTL},
		{"routing.sweep_interval", c.Routing.SweepInterval},
		{"id_generator.drift_tolerance", c.IDGenerator.DriftTolerance},
		{"topology.poll_interval", c.Topology.PollInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			return types.NewConfigurationError(d.field, "must not be negative")
		}
	}

	if n := c.Routing.MaxTrackedStatements; n != nil && *n < 0 {
		return types.NewConfigurationError("routing.max_tracked_statements", "must not be negative")
	}

	if _, err := c.epoch(); err != nil {
		return err
	}
	layout := c.layout()
	if err := layout.Validate(); err != nil {
		return err
	}
	if err := idgen.ValidateIdentity(layout, c.IDGenerator.DatacenterID, c.IDGenerator.WorkerID); err != nil {
		return err
	}

	if c.Topology.Enabled() && c.Topology.Bucket == "" {
		return types.NewConfigurationError("topology.bucket", "required when nats_url is set")
	}

	return nil
}

func (c *Config) epoch() (time.Time, error) {
	if c.IDGenerator.Epoch == "" {
		return idgen.DefaultEpoch, nil
	}

	epoch, err := time.Parse(time.RFC3339, c.IDGenerator.Epoch)
	if err != nil {
		return time.Time{}, types.NewConfigurationError("id_generator.epoch", "must be an RFC 3339 timestamp")
	}

	return epoch, nil
}

func (c *Config) layout() idgen.Layout {
	if c.IDGenerator.Layout == nil {
		return idgen.DefaultLayout
	}

	return idgen.Layout{
		DatacenterBits: c.IDGenerator.Layout.DatacenterBits,
		WorkerBits:     c.IDGenerator.Layout.WorkerBits,
		SequenceBits:   c.IDGenerator.Layout.SequenceBits,
	}
}

// Generator builds the ID generator described by the id_generator section.
//
// Parameters:
//   - opts: Extra options applied after the configured ones (logger, metrics, clock)
//
// Returns:
//   - *idgen.Generator: The generator
//   - error: Configuration error
func (c *Config) Generator(opts ...idgen.Option) (*idgen.Generator, error) {
	epoch, err := c.epoch()
	if err != nil {
		return nil, err
	}

	base := []idgen.Option{
		idgen.WithEpoch(epoch),
		idgen.WithLayout(c.layout()),
	}
	if c.IDGenerator.DriftTolerance > 0 {
		base = append(base, idgen.WithDriftTolerance(c.IDGenerator.DriftTolerance))
	}

	return idgen.New(c.IDGenerator.DatacenterID, c.IDGenerator.WorkerID, append(base, opts...)...)
}

// ClientOptions translates the file into client options.
//
// Zero values are left out so the client defaults apply.
//
// Returns:
//   - []splitdb.Option: Options for splitdb.NewSQLClient
func (c *Config) ClientOptions() []splitdb.Option {
	var opts []splitdb.Option

	if c.HealthCheck.Disabled {
		opts = append(opts, splitdb.WithoutHealthMonitor())
	}
	if c.HealthCheck.Interval > 0 {
		opts = append(opts, splitdb.WithProbeInterval(c.HealthCheck.Interval))
	}
	if c.HealthCheck.Timeout > 0 {
		opts = append(opts, splitdb.WithProbeTimeout(c.HealthCheck.Timeout))
	}
	if c.HealthCheck.Query != "" && !c.HealthCheck.Disabled {
		opts = append(opts, splitdb.WithProber(
			replica.NewSQLProber(c.Driver, replica.WithProbeQuery(c.HealthCheck.Query)),
		))
	}

	if c.Routing.DecisionTTL > 0 {
		opts = append(opts, splitdb.WithDecisionTTL(c.Routing.DecisionTTL))
	}
	if c.Routing.SweepInterval > 0 {
		opts = append(opts, splitdb.WithSweepInterval(c.Routing.SweepInterval))
	}
	if c.Routing.MaxTrackedStatements != nil {
		opts = append(opts, splitdb.WithMaxTrackedStatements(*c.Routing.MaxTrackedStatements))
	}

	return opts
}

// Open builds a client from the configuration.
//
// When a topology section is present the client also follows the NATS drain
// key; the returned client owns that connection and closes it on Close.
//
// Parameters:
//   - ctx: Context for connecting to NATS
//   - opts: Extra options applied after the configured ones
//
// Returns:
//   - *Client: The client and its topology watcher, if any
//   - error: Connection or configuration failure
func (c *Config) Open(ctx context.Context, opts ...splitdb.Option) (*Client, error) {
	all := c.ClientOptions()

	var (
		watcher *topology.NATS
		nc      *nats.Conn
	)
	if c.Topology.Enabled() {
		var err error
		nc, watcher, err = c.natsWatcher(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, splitdb.WithTopologyWatcher(watcher))
	}

	client, err := splitdb.NewSQLClient(c.Driver, c.Primary, c.Replicas, append(all, opts...)...)
	if err != nil {
		if nc != nil {
			_ = watcher.Close()
			nc.Close()
		}

		return nil, err
	}

	return &Client{SQLClient: client, Watcher: watcher, nc: nc}, nil
}

func (c *Config) natsWatcher(ctx context.Context) (*nats.Conn, *topology.NATS, error) {
	nc, err := nats.Connect(c.Topology.NATSURL, nats.Name("splitdb"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	kv, err := js.KeyValue(ctx, c.Topology.Bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: c.Topology.Bucket})
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("open bucket %s: %w", c.Topology.Bucket, err)
	}

	var wopts []topology.WatcherOption
	if c.Topology.Key != "" {
		wopts = append(wopts, topology.WithKey(c.Topology.Key))
	}
	if c.Topology.PollInterval > 0 {
		wopts = append(wopts, topology.WithPollInterval(c.Topology.PollInterval))
	}

	watcher, err := topology.NewNATS(kv, wopts...)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	return nc, watcher, nil
}

// Client is a SQLClient opened from a configuration file.
type Client struct {
	*splitdb.SQLClient

	// Watcher is the NATS drain watcher, or nil without a topology section.
	// It doubles as the operator for SetDrain.
	Watcher *topology.NATS

	nc *nats.Conn
}

// Close closes the client, the watcher and the NATS connection.
func (c *Client) Close() error {
	err := c.SQLClient.Close()
	if c.Watcher != nil {
		err = errors.Join(err, c.Watcher.Close())
	}
	if c.nc != nil {
		c.nc.Close()
	}

	return err
}
