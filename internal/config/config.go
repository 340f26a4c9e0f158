// Package config loads and re-emits the Kaze TOML configuration, in the
// same shape as the teacher's coordinator.Config/DefaultConfig pair
// (coordinator/cfg.go): a typed struct with one field per plugin group, a
// DefaultConfig that gives every plugin sane defaults, and a Load that
// starts from those defaults and overlays the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/kaze-mesh/kaze/internal/corral"
	"github.com/kaze-mesh/kaze/internal/logging"
	"github.com/kaze-mesh/kaze/internal/ratelimit"
	"github.com/kaze-mesh/kaze/internal/resolver"
)

// EdgeConfig configures the host/sidecar shared-memory channel.
type EdgeConfig struct {
	Dir         string            `toml:"dir"`
	Prefix      string            `toml:"prefix"`
	BufSize     datasize.ByteSize `toml:"buf_size"`
	ForceUnlink bool              `toml:"force_unlink"`
}

// RPCConfig holds a buffer size for the RPC tracker's internal action
// channel. rpctracker.New does not read it; the channel's buffer is a
// fixed 256.
type RPCConfig struct {
	ActionBufferSize int `toml:"action_buffer_size"`
}

// PrometheusConfig configures the metrics HTTP endpoint.
type PrometheusConfig struct {
	Listen string `toml:"listen"`
}

// SupervisorConfig configures the host child-process supervisor.
type SupervisorConfig struct {
	HostCommand string        `toml:"host_command"`
	HostArgs    []string      `toml:"host_args"`
	GracePeriod time.Duration `toml:"grace_period"`
}

// LocalNode seeds the Local resolver with a statically-known peer.
type LocalNode struct {
	Ident uint32 `toml:"ident"`
	Addr  string `toml:"addr"`
}

// Config is the root Kaze configuration, one field per plugin group
// registered into the context/plugin graph (internal/kazectx).
type Config struct {
	Ident      uint32                `toml:"ident"`
	Edge       EdgeConfig            `toml:"edge"`
	Corral     corral.Config         `toml:"corral"`
	RateLimit  ratelimit.Config      `toml:"rate_limit"`
	Local      []LocalNode           `toml:"local"`
	Consul     resolver.ConsulConfig `toml:"consul"`
	Log        logging.Config       `toml:"log"`
	Prometheus PrometheusConfig      `toml:"prometheus"`
	RPC        RPCConfig             `toml:"rpc"`
	Supervisor SupervisorConfig      `toml:"supervisor"`
}

// DefaultConfig returns the configuration used when no file, or a
// partial file, is supplied. Load overlays a parsed file on top of this.
func DefaultConfig() Config {
	return Config{
		Edge: EdgeConfig{
			Dir:     "/dev/shm",
			Prefix:  "kaze",
			BufSize: 4 * datasize.MB,
		},
		Corral: corral.Config{
			Listen:         "[::]:7701",
			MaxConnections: 4096,
			PendingTimeout: 5 * time.Second,
			IdleTimeout:    2 * time.Minute,
			MaxFrameSize:   1 << 20,
		},
		Consul: resolver.ConsulConfig{
			Interval: 30 * time.Second,
		},
		Log: logging.DefaultConfig(),
		Prometheus: PrometheusConfig{
			Listen: "[::1]:9701",
		},
		RPC: RPCConfig{
			ActionBufferSize: 256,
		},
		Supervisor: SupervisorConfig{
			GracePeriod: 5 * time.Second,
		},
	}
}

// Load reads path, unmarshals it as TOML over top of DefaultConfig, and
// returns the merged result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	return cfg, nil
}

// Dump re-emits cfg as TOML, for the --dump-config diagnostic flag.
func (c Config) Dump() (string, error) {
	buf, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	return string(buf), nil
}
