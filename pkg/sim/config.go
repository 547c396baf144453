package sim

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/tokenring/pkg/ring"
)

// Config describes a simulated chain. Nodes are listed in ring order:
// each node transmits to the next one and the last one to the first.
type Config struct {
	Chain ChainConfig `yaml:"chain"`
}

// ChainConfig is the chain section of a topology file.
type ChainConfig struct {
	Token  *int         `yaml:"token"`
	HoldMs *int         `yaml:"hold_ms"`
	Start  int          `yaml:"start"`
	Nodes  []NodeConfig `yaml:"nodes"`
	// Console sends the head notification to the controller instead of
	// down the chain.
	Console bool `yaml:"console"`
}

// NodeConfig describes one node.
type NodeConfig struct {
	ID    string       `yaml:"id"`
	Role  string       `yaml:"role"`
	Fault *FaultConfig `yaml:"fault"`
}

// FaultConfig injects failures into a node's channel.
type FaultConfig struct {
	// StallAfter fails the re-arm after this many receptions.
	// Zero fails the first arm, so the node halts during bootstrap.
	StallAfter int `yaml:"stall_after"`
}

// DefaultConfig builds a chain of n nodes with the first as head.
func DefaultConfig(n int) *Config {
	conf := &Config{Chain: ChainConfig{Start: 0x01, Console: true}}
	for i := 0; i < n; i++ {
		node := NodeConfig{ID: string(rune('a' + i%26)), Role: ring.RoleRelay.String()}
		if i >= 26 {
			node.ID += fmt.Sprintf("%d", i/26)
		}
		if i == 0 {
			node.Role = ring.RoleHead.String()
		}
		conf.Chain.Nodes = append(conf.Chain.Nodes, node)
	}
	return conf
}

// LoadConfig reads, validates and normalizes a topology file.
func LoadConfig(fn string) (*Config, error) {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses, validates and normalizes a topology.
func ParseConfig(data []byte) (*Config, error) {
	var conf Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil {
		return nil, fmt.Errorf("parse config: %v", err)
	}
	if err := Validate(&conf); err != nil {
		return nil, err
	}
	Normalize(&conf)
	return &conf, nil
}

// Validate checks the topology. It doesn't mutate the config.
func Validate(conf *Config) error {
	nodes := conf.Chain.Nodes
	if len(nodes) == 0 {
		return fmt.Errorf("chain: at least one node is required")
	}
	if t := conf.Chain.Token; t != nil && (*t < 0 || *t > 0xff) {
		return fmt.Errorf("chain: token %d is not a byte", *t)
	}
	if conf.Chain.Start < 0 || conf.Chain.Start > 0xff {
		return fmt.Errorf("chain: start %d is not a byte", conf.Chain.Start)
	}
	if h := conf.Chain.HoldMs; h != nil && *h < 0 {
		return fmt.Errorf("chain: hold_ms must not be negative")
	}
	ids := make(map[string]bool)
	heads := 0
	for i, node := range nodes {
		if node.ID == "" {
			return fmt.Errorf("node[%d]: id required", i)
		}
		if ids[node.ID] {
			return fmt.Errorf("node %q: duplicated id", node.ID)
		}
		ids[node.ID] = true
		if node.Role != "" {
			role, err := ring.ParseRole(node.Role)
			if err != nil {
				return fmt.Errorf("node %q: %v", node.ID, err)
			}
			if role == ring.RoleHead {
				heads++
			}
		}
		if node.Fault != nil && node.Fault.StallAfter < 0 {
			return fmt.Errorf("node %q: stall_after must not be negative", node.ID)
		}
	}
	if heads != 1 {
		return fmt.Errorf("chain: exactly one head is required, got %d", heads)
	}
	return nil
}

// Normalize fills defaults. It must be called after Validate.
func Normalize(conf *Config) {
	if conf.Chain.Token == nil {
		token := int(ring.DefaultToken)
		conf.Chain.Token = &token
	}
	if conf.Chain.HoldMs == nil {
		hold := int(ring.DefaultHold / time.Millisecond)
		conf.Chain.HoldMs = &hold
	}
	for i := range conf.Chain.Nodes {
		if conf.Chain.Nodes[i].Role == "" {
			conf.Chain.Nodes[i].Role = ring.RoleRelay.String()
		}
	}
}

// Hold returns the normalized indicator hold duration.
func (c *ChainConfig) Hold() time.Duration {
	if c.HoldMs == nil {
		return ring.DefaultHold
	}
	return time.Duration(*c.HoldMs) * time.Millisecond
}

// TokenValue returns the normalized token.
func (c *ChainConfig) TokenValue() ring.Token {
	if c.Token == nil {
		return ring.DefaultToken
	}
	return ring.Token(*c.Token)
}
