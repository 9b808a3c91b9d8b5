// Package config holds the node configuration: defaults, an optional TOML
// file, and the CLI overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/1ureka/peerwire/internal/connection"
	"github.com/1ureka/peerwire/internal/message"
	"github.com/1ureka/peerwire/internal/peer"
)

// Duration is a time.Duration written as "10s", "250ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config stores every node parameter.
type Config struct {
	Listen    string   `toml:"listen"`    // address of the peer listener, empty disables it
	Network   string   `toml:"network"`   // peers on other networks are refused
	Identity  string   `toml:"identity"`  // base64 node identity, empty generates one
	Agent     string   `toml:"agent"`     // sent in Identify
	Bootnodes []string `toml:"bootnodes"` // host:port or ws:// URLs dialed at startup

	HandshakeTimeout Duration `toml:"handshake_timeout"`
	RequestTimeout   Duration `toml:"request_timeout"`
	MaxLatency       Duration `toml:"max_latency"` // simulated send delay, 0 disables

	MaxPeers        int  `toml:"max_peers"`
	GossipCacheSize int  `toml:"gossip_cache_size"`
	AutoConnect     bool `toml:"auto_connect"`

	Announce Duration `toml:"announce"` // interval for broadcasting test blocks, 0 disables
	Debug    bool     `toml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:           "127.0.0.1:30333",
		Network:          "devnet",
		Agent:            peer.DefaultAgent,
		HandshakeTimeout: Duration{connection.DefaultHandshakeTimeout},
		RequestTimeout:   Duration{peer.DefaultRequestTimeout},
		MaxPeers:         peer.DefaultMaxPeers,
		GossipCacheSize:  peer.DefaultGossipCacheSize,
		AutoConnect:      true,
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Network == "" {
		return errors.New("network must not be empty")
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
		}
	}
	if c.Identity != "" {
		if _, err := message.ParseIdentity(c.Identity); err != nil {
			return err
		}
	}
	if c.HandshakeTimeout.Duration <= 0 || c.RequestTimeout.Duration <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.MaxLatency.Duration < 0 || c.Announce.Duration < 0 {
		return errors.New("durations must not be negative")
	}
	if c.MaxPeers < 1 {
		return errors.New("max_peers must be at least 1")
	}
	if c.GossipCacheSize < 1 {
		return errors.New("gossip_cache_size must be at least 1")
	}
	return nil
}

// NodeIdentity returns the configured identity, or a fresh one derived from
// a new secp256k1 key the way Ethereum derives node ids.
func (c Config) NodeIdentity() (message.Identity, error) {
	if c.Identity != "" {
		return message.ParseIdentity(c.Identity)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return message.Identity{}, err
	}
	return message.Identity(crypto.Keccak256Hash(crypto.FromECDSAPub(&key.PublicKey)[1:])), nil
}

// ConnConfig returns the per-connection settings.
func (c Config) ConnConfig() connection.Config {
	return connection.Config{
		HandshakeTimeout: c.HandshakeTimeout.Duration,
		MaxLatency:       c.MaxLatency.Duration,
	}
}

// PeerConfig returns the peer manager settings for the node id.
func (c Config) PeerConfig(id message.Identity, chain peer.Chain) peer.Config {
	return peer.Config{
		Identity:        id,
		Agent:           c.Agent,
		Conn:            c.ConnConfig(),
		RequestTimeout:  c.RequestTimeout.Duration,
		MaxPeers:        c.MaxPeers,
		GossipCacheSize: c.GossipCacheSize,
		AutoConnect:     c.AutoConnect,
		Chain:           chain,
	}
}
