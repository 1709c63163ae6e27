package policy

import (
	"fmt"
	"time"

	units "github.com/docker/go-units"
)

// Document is the parsed security policy. It is loaded once and read-only
// afterwards; every field defaults to an inert zero value, so an absent
// section never restricts anything.
type Document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata carries free-text identification with no semantic effect.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Spec struct {
	Docker      DockerSpec      `yaml:"docker"`
	Network     NetworkSpec     `yaml:"network"`
	Filesystem  FilesystemSpec  `yaml:"filesystem"`
	Permissions PermissionsSpec `yaml:"permissions"`
	Runtime     RuntimeSpec     `yaml:"runtime"`
	Audit       AuditSpec       `yaml:"audit"`
	Falco       FalcoSpec       `yaml:"falco"`
}

type DockerSpec struct {
	// Privileged is tri-state: only an explicit `privileged: false`
	// hardens the container with no-new-privileges.
	Privileged             *bool        `yaml:"privileged"`
	Capabilities           Capabilities `yaml:"capabilities"`
	SecurityOpts           []string     `yaml:"security_opts"`
	User                   string       `yaml:"user"`
	ReadOnlyRootFilesystem bool         `yaml:"read_only_root_filesystem"`
	Tmpfs                  []string     `yaml:"tmpfs"`
	Ulimits                Ulimits      `yaml:"ulimits"`
	MemoryLimit            string       `yaml:"memory_limit"`
	CPULimit               string       `yaml:"cpu_limit"`
	PidsLimit              int          `yaml:"pids_limit"`
}

type Capabilities struct {
	Drop []string `yaml:"drop"`
	Add  []string `yaml:"add"`
}

type Ulimits struct {
	NProc  int   `yaml:"nproc"`
	NoFile int   `yaml:"nofile"`
	FSize  int64 `yaml:"fsize"`
}

type NetworkSpec struct {
	Policy         string   `yaml:"policy"`
	DNSServers     []string `yaml:"dns_servers"`
	AllowedDomains []string `yaml:"allowed_domains"`
	BlockedPorts   []string `yaml:"blocked_ports"`
}

type FilesystemSpec struct {
	MountOptions []string `yaml:"mount_options"`
	AllowedPaths []string `yaml:"allowed_paths"`
	BlockedPaths []string `yaml:"blocked_paths"`
}

type PermissionsSpec struct {
	Storage StorageSpec `yaml:"storage"`
}

type StorageSpec struct {
	Allow []StoragePermission `yaml:"allow"`
}

// AccessType is a storage access capability.
type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
)

// StoragePermission grants access to a resource URI. URIs with the fs://
// scheme are translated into bind mounts; other schemes are passed over by
// the mount builder.
type StoragePermission struct {
	URI    string       `yaml:"uri"`
	Access []AccessType `yaml:"access"`
}

// CanWrite reports whether the permission's access set includes write.
func (p StoragePermission) CanWrite() bool {
	for _, a := range p.Access {
		if a == AccessWrite {
			return true
		}
	}
	return false
}

type RuntimeSpec struct {
	// Timeout and MaxRestartAttempts are carried as metadata; this layer
	// never starts a timer or restarts the child.
	Timeout              string         `yaml:"timeout"`
	MaxRestartAttempts   int            `yaml:"max_restart_attempts"`
	EnvironmentWhitelist []string       `yaml:"environment_whitelist"`
	SignalHandling       SignalHandling `yaml:"signal_handling"`
}

type SignalHandling struct {
	GracefulShutdownTimeout string `yaml:"graceful_shutdown_timeout"`
	ForceKillTimeout        string `yaml:"force_kill_timeout"`
}

type AuditSpec struct {
	LogLevel         string `yaml:"log_level"`
	LogCommands      bool   `yaml:"log_commands"`
	LogNetworkAccess bool   `yaml:"log_network_access"`
	LogFileAccess    bool   `yaml:"log_file_access"`
}

type FalcoSpec struct {
	Enabled bool           `yaml:"enabled"`
	Rules   []FalcoRuleSet `yaml:"rules"`
}

// FalcoRuleSet is a named group of intrusion-detection rules. RuleContent,
// when set, is emitted verbatim and the structured Rules are ignored.
type FalcoRuleSet struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Enabled     bool        `yaml:"enabled"`
	Rules       []FalcoRule `yaml:"rules"`
	RuleContent string      `yaml:"rule_content"`
}

type FalcoRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Condition   string `yaml:"condition"`
	Output      string `yaml:"output"`
	Priority    string `yaml:"priority"`
	Action      string `yaml:"action"`
}

// MonitorEnabled reports whether Falco monitoring is switched on. Safe on a
// nil document.
func (d *Document) MonitorEnabled() bool {
	return d != nil && d.Spec.Falco.Enabled
}

// Resolved is the normalized view of a Document: human-readable limit and
// duration strings parsed into concrete values in a single pass, so callers
// never repeat the string handling. Zero values mean "not set".
type Resolved struct {
	MemoryBytes             int64
	Timeout                 time.Duration
	GracefulShutdownTimeout time.Duration
	ForceKillTimeout        time.Duration
	MonitorEnabled          bool
	EnvironmentWhitelist    []string
}

// Resolve normalizes the document. A malformed limit or duration string is
// reported here, at load time, instead of being silently inert.
func (d *Document) Resolve() (*Resolved, error) {
	if d == nil {
		return &Resolved{}, nil
	}

	r := &Resolved{
		MonitorEnabled:       d.MonitorEnabled(),
		EnvironmentWhitelist: append([]string(nil), d.Spec.Runtime.EnvironmentWhitelist...),
	}

	if s := d.Spec.Docker.MemoryLimit; s != "" {
		bytes, err := units.RAMInBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid docker.memory_limit %q: %w", s, err)
		}
		r.MemoryBytes = bytes
	}

	for _, f := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"runtime.timeout", d.Spec.Runtime.Timeout, &r.Timeout},
		{"runtime.signal_handling.graceful_shutdown_timeout", d.Spec.Runtime.SignalHandling.GracefulShutdownTimeout, &r.GracefulShutdownTimeout},
		{"runtime.signal_handling.force_kill_timeout", d.Spec.Runtime.SignalHandling.ForceKillTimeout, &r.ForceKillTimeout},
	} {
		if f.value == "" {
			continue
		}
		dur, err := time.ParseDuration(f.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		*f.dst = dur
	}

	return r, nil
}
