// Package config decodes the orchestrator's single configuration value from
// YAML. The decoded Config is passed by value to every component; nothing
// in this module reads a package-level mutable singleton.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hiro-hcu/srv6-orchestrator/internal/orcherr"
)

// Edge describes one edge router's administrative access.
type Edge struct {
	Address      string `yaml:"address"`
	ShellUser    string `yaml:"shell_user"`
	ShellPass    string `yaml:"shell_password"`
	ShellPort    int    `yaml:"shell_port"`
	ShellTimeout int    `yaml:"shell_timeout_seconds"`

	// MangleTable and Chain name this edge's nftables mangle table and
	// prerouting chain, installed by provisioning (spec.md section 4.7).
	MangleTable string `yaml:"mangle_table"`
	Chain       string `yaml:"chain"`
}

func (e Edge) Timeout() time.Duration {
	return time.Duration(e.ShellTimeout) * time.Second
}

// Table describes one of the three pre-provisioned policy routing tables.
type Table struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Mark     int    `yaml:"mark"`
	Priority int    `yaml:"rule_priority"`
}

// Config is the full decoded configuration surface of spec.md section 6.
type Config struct {
	Ingress Edge `yaml:"ingress"`
	Egress  Edge `yaml:"egress"`

	ForwardPrefix string `yaml:"forward_prefix"`
	ReturnPrefix  string `yaml:"return_prefix"`

	// IngressNode and EgressNode are the topology node IDs of the two edge
	// routers: forward traffic is planned IngressNode -> EgressNode, return
	// traffic EgressNode -> IngressNode.
	IngressNode int64 `yaml:"ingress_node"`
	EgressNode  int64 `yaml:"egress_node"`

	Tables []Table `yaml:"tables"`

	FlowLabelValues []string `yaml:"flow_label_values"`
	DefaultMark     int      `yaml:"default_mark"`

	PollIntervalSeconds int       `yaml:"poll_interval_seconds"`
	PathCount           int       `yaml:"path_count"`
	WeightMultipliers   []float64 `yaml:"weight_multipliers"`
	WeightFloorEpsilon  float64   `yaml:"weight_floor_epsilon"`

	SampleTimeoutSeconds int `yaml:"sample_timeout_seconds"`

	// WeightDeletionStrategy selects the alternate inflation strategy
	// (×1000 on first/last hop, delete middle hops) observed in one
	// variant of the original source. Default false: multiplicative
	// inflation on every hop, per spec.md's resolution of that open
	// question.
	WeightDeletionStrategy bool `yaml:"weight_deletion_strategy"`
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) SampleTimeout() time.Duration {
	return time.Duration(c.SampleTimeoutSeconds) * time.Second
}

// Load reads and strictly decodes a YAML config file, then validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &orcherr.ConfigError{Field: "path", Err: err}
	}

	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, &orcherr.ConfigError{Field: "yaml", Err: err}
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the invariants the rest of the orchestrator assumes hold:
// at least one table, a positive path_count no larger than the table count,
// at least path_count weight multipliers, a positive weight floor, both
// prefixes and edge addresses set, and distinct non-zero ingress/egress
// nodes. Flow-label values and timeouts are not checked.
func (c Config) Validate() error {
	if len(c.Tables) == 0 {
		return &orcherr.ConfigError{Field: "tables", Err: fmt.Errorf("at least one table required")}
	}
	if c.PathCount <= 0 {
		return &orcherr.ConfigError{Field: "path_count", Err: fmt.Errorf("must be positive")}
	}
	if c.PathCount > len(c.Tables) {
		return &orcherr.ConfigError{Field: "path_count", Err: fmt.Errorf("exceeds number of tables (%d)", len(c.Tables))}
	}
	if len(c.WeightMultipliers) < c.PathCount {
		return &orcherr.ConfigError{Field: "weight_multipliers", Err: fmt.Errorf("need at least %d entries", c.PathCount)}
	}
	if c.WeightFloorEpsilon <= 0 {
		return &orcherr.ConfigError{Field: "weight_floor_epsilon", Err: fmt.Errorf("must be positive")}
	}
	if c.ForwardPrefix == "" || c.ReturnPrefix == "" {
		return &orcherr.ConfigError{Field: "forward_prefix/return_prefix", Err: fmt.Errorf("must be set")}
	}
	if c.Ingress.Address == "" || c.Egress.Address == "" {
		return &orcherr.ConfigError{Field: "ingress/egress address", Err: fmt.Errorf("must be set")}
	}
	if c.IngressNode == 0 || c.EgressNode == 0 {
		return &orcherr.ConfigError{Field: "ingress_node/egress_node", Err: fmt.Errorf("must be set")}
	}
	if c.IngressNode == c.EgressNode {
		return &orcherr.ConfigError{Field: "ingress_node/egress_node", Err: fmt.Errorf("must differ")}
	}
	return nil
}

// Default returns the reference configuration described throughout
// spec.md's worked scenarios (§8): 16-node topology endpoints r1/r16, the
// three-tier table/mark/priority mapping of spec.md §4.7, and the default
// multiplicative inflation factors {3.0, 2.0, 1.0}.
func Default() Config {
	return Config{
		Ingress: Edge{Address: "fd02:1::2", ShellUser: "root", ShellPort: 22, ShellTimeout: 15,
			MangleTable: "ip6 mangle_r1", Chain: "prerouting_r1"},
		Egress: Edge{Address: "fd02:1::11", ShellUser: "root", ShellPort: 22, ShellTimeout: 15,
			MangleTable: "ip6 mangle_r16", Chain: "prerouting_r16"},

		ForwardPrefix: "fd03:1::/64",
		ReturnPrefix:  "fd00:1::/64",

		IngressNode: 1,
		EgressNode:  16,

		Tables: []Table{
			{ID: 100, Name: "rt_table1", Mark: 4, Priority: 50},
			{ID: 101, Name: "rt_table2", Mark: 6, Priority: 60},
			{ID: 102, Name: "rt_table3", Mark: 9, Priority: 90},
		},

		FlowLabelValues: []string{"0xfffc4", "0xfffc6"},
		DefaultMark:     9,

		PollIntervalSeconds: 60,
		PathCount:           3,
		WeightMultipliers:   []float64{3.0, 2.0, 1.0},
		WeightFloorEpsilon:  1e-4,

		SampleTimeoutSeconds: 10,
	}
}
