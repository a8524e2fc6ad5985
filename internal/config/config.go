// Package config is the Config Store: the host table and the global
// paths the engine is told about at startup. Global config is read-only
// to the rest of the engine once loaded; the hosts table owns every Host
// and enforces unique hostnames.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gingapard/rensen/internal/rensenerr"
)

const (
	// DefaultPort is used when a HostConfig omits Port.
	DefaultPort = 22
	// DefaultCron is used when a HostConfig omits CronSchedule.
	DefaultCron = "0 0 * * *"
)

// DefaultKeyPath returns "$HOME/.ssh/id_ed25519", the fallback private
// key location used when a HostConfig omits KeyPath.
func DefaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ssh", "id_ed25519")
}

// HostConfig is the connection and path configuration for one host.
type HostConfig struct {
	User         string `yaml:"user" json:"user"`
	Identifier   string `yaml:"identifier" json:"identifier"`
	Port         int    `yaml:"port,omitempty" json:"port,omitempty"`
	KeyPath      string `yaml:"key,omitempty" json:"key,omitempty"`
	Source       string `yaml:"source" json:"source"`
	Destination  string `yaml:"destination" json:"destination"`
	CronSchedule string `yaml:"cron_schedule,omitempty" json:"cron_schedule,omitempty"`
}

// Normalized returns a copy of c with every default applied.
func (c HostConfig) Normalized() HostConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.KeyPath == "" {
		c.KeyPath = DefaultKeyPath()
	}
	if c.CronSchedule == "" {
		c.CronSchedule = DefaultCron
	}
	return c
}

// Host is one named entry in the hosts file.
type Host struct {
	Hostname string     `yaml:"hostname" json:"hostname"`
	Config   HostConfig `yaml:"config" json:"config"`
}

// String renders a host config the way an operator expects to read it
// back, mirroring the Display impl the Rust original gave HostConfig.
func (c HostConfig) String() string {
	n := c.Normalized()
	var b strings.Builder
	b.WriteString("addr: " + n.Identifier + "\n")
	b.WriteString("user: " + n.User + "\n")
	b.WriteString("port: " + itoa(n.Port) + "\n")
	b.WriteString("key path: " + n.KeyPath + "\n")
	b.WriteString("source: " + n.Source + "\n")
	b.WriteString("destination: " + n.Destination + "\n")
	b.WriteString("cron: " + n.CronSchedule)
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// Global holds the absolute paths the engine needs at startup. It is
// constructed once and passed by reference into every task; there are no
// singletons.
type Global struct {
	HostsPath     string `yaml:"-"`
	BackupsRoot   string `yaml:"-"`
	SnapshotsRoot string `yaml:"-"`
	LogPath       string `yaml:"-"`
}

// globalDoc mirrors the on-disk YAML shape, including the historical
// field-name aliases the design requires accepting.
type globalDoc struct {
	Hosts     string `yaml:"hosts"`
	Backups   string `yaml:"backups"`
	Snapshots string `yaml:"snapshots"`
	Log       string `yaml:"log"`

	HostsAlias     string `yaml:"hosts_path"`
	BackupsAlias   string `yaml:"backupping_path"`
	SnapshotsAlias string `yaml:"snapshots_path"`
	LogAlias       string `yaml:"log_path"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadGlobal reads the global configuration YAML file at path.
func LoadGlobal(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rensenerr.Wrap(rensenerr.Config, "read global config "+path, err)
	}
	var doc globalDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, rensenerr.Wrap(rensenerr.Deserialize, "parse global config "+path, err)
	}
	g := &Global{
		HostsPath:     firstNonEmpty(doc.Hosts, doc.HostsAlias),
		BackupsRoot:   firstNonEmpty(doc.Backups, doc.BackupsAlias),
		SnapshotsRoot: firstNonEmpty(doc.Snapshots, doc.SnapshotsAlias),
		LogPath:       firstNonEmpty(doc.Log, doc.LogAlias),
	}
	if g.HostsPath == "" || g.BackupsRoot == "" || g.SnapshotsRoot == "" || g.LogPath == "" {
		return nil, rensenerr.New(rensenerr.Config, "global config %s is missing a required path", path)
	}
	return g, nil
}

// HostStore is the in-memory hosts table, owning every Host by name.
type HostStore struct {
	hosts []Host
}

// NewHostStore wraps an already-loaded host slice.
func NewHostStore(hosts []Host) *HostStore {
	return &HostStore{hosts: hosts}
}

// LoadHosts reads the hosts file YAML sequence. A missing file yields an
// empty store, not an error, matching how the Record Store treats a
// missing record.
func LoadHosts(path string) (*HostStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &HostStore{}, nil
		}
		return nil, rensenerr.Wrap(rensenerr.Config, "read hosts file "+path, err)
	}
	var hosts []Host
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, rensenerr.Wrap(rensenerr.Deserialize, "parse hosts file "+path, err)
	}
	if err := validateUnique(hosts); err != nil {
		return nil, err
	}
	return &HostStore{hosts: hosts}, nil
}

func validateUnique(hosts []Host) error {
	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if _, dup := seen[h.Hostname]; dup {
			return rensenerr.New(rensenerr.Config, "duplicate hostname %q in hosts file", h.Hostname)
		}
		seen[h.Hostname] = struct{}{}
	}
	return nil
}

// Save writes the hosts table back to path as a YAML sequence.
func (s *HostStore) Save(path string) error {
	data, err := yaml.Marshal(s.hosts)
	if err != nil {
		return rensenerr.Wrap(rensenerr.Serialize, "marshal hosts file", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return rensenerr.Wrap(rensenerr.FS, "create hosts directory", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rensenerr.Wrap(rensenerr.FS, "write hosts file "+path, err)
	}
	return nil
}

// Hosts returns every host in the table, in file order.
func (s *HostStore) Hosts() []Host {
	return append([]Host(nil), s.hosts...)
}

// Lookup returns the Host named hostname, if any.
func (s *HostStore) Lookup(hostname string) (Host, bool) {
	for _, h := range s.hosts {
		if h.Hostname == hostname {
			return h, true
		}
	}
	return Host{}, false
}

// Add inserts a new host. Duplicate hostnames are rejected.
func (s *HostStore) Add(h Host) error {
	if _, exists := s.Lookup(h.Hostname); exists {
		return rensenerr.New(rensenerr.InvalidInput, "host %q already exists", h.Hostname)
	}
	s.hosts = append(s.hosts, h)
	return nil
}

// Remove deletes a host by name.
func (s *HostStore) Remove(hostname string) error {
	for i, h := range s.hosts {
		if h.Hostname == hostname {
			s.hosts = append(s.hosts[:i], s.hosts[i+1:]...)
			return nil
		}
	}
	return rensenerr.New(rensenerr.Missing, "host %q not found", hostname)
}

// Modify applies a partial HostConfig on top of the current one: an empty
// field in patch means "keep prior value." Prior defaults (port 22, key
// path, cron) are only applied when no prior value exists either.
func (s *HostStore) Modify(hostname string, patch HostConfig) error {
	for i, h := range s.hosts {
		if h.Hostname != hostname {
			continue
		}
		merged := h.Config
		if patch.User != "" {
			merged.User = patch.User
		}
		if patch.Identifier != "" {
			merged.Identifier = patch.Identifier
		}
		if patch.Port != 0 {
			merged.Port = patch.Port
		}
		if patch.KeyPath != "" {
			merged.KeyPath = patch.KeyPath
		}
		if patch.Source != "" {
			merged.Source = patch.Source
		}
		if patch.Destination != "" {
			merged.Destination = patch.Destination
		}
		if patch.CronSchedule != "" {
			merged.CronSchedule = patch.CronSchedule
		}
		s.hosts[i].Config = merged
		return nil
	}
	return rensenerr.New(rensenerr.Missing, "host %q not found", hostname)
}
