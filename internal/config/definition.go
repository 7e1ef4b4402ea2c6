// Package config holds the launcher's service definitions and the
// configuration bags consumed by the process, health and log managers.
package config

import "context"

// ServiceKind distinguishes services the launcher spawns itself from
// services that are externally managed (e.g. a container stack).
type ServiceKind string

const (
	// KindManaged services are spawned directly from Program/Args.
	KindManaged ServiceKind = "managed"
	// KindDetached services delegate start/stop/health to a Lifecycle.
	KindDetached ServiceKind = "detached"
)

// Lifecycle supplies custom start/stop/health implementations for detached
// services. Implementations live outside this package and are attached by
// the composition root.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, graceful bool) error
	CheckHealth(ctx context.Context) error
}

// ServiceDefinition describes one manageable service. It is built once at
// startup and read-only afterwards.
type ServiceDefinition struct {
	// Key uniquely identifies the service ("db", "backend", ...).
	Key string `toml:"-" json:"key"`

	// Title is the human-readable name shown in UIs.
	Title string `toml:"title" json:"title"`

	// Program, Args, Dir and Env describe how to spawn a managed service.
	Program string            `toml:"program" json:"program,omitempty"`
	Args    []string          `toml:"args" json:"args,omitempty"`
	Dir     string            `toml:"dir" json:"dir,omitempty"`
	Env     map[string]string `toml:"env" json:"env,omitempty"`

	// URL is the address the service binds once up; used for TCP health
	// probes and external-instance detection.
	URL string `toml:"url" json:"url,omitempty"`

	// HealthURL is an HTTP endpoint probed in preference to URL.
	HealthURL string `toml:"health_url" json:"health_url,omitempty"`

	// RequiredTool names an executable that must resolve on PATH before
	// the service may start.
	RequiredTool string `toml:"required_tool" json:"required_tool,omitempty"`

	// HealthGraceAttempts is the number of initial probe failures tolerated
	// while the service is still warming up.
	HealthGraceAttempts int `toml:"health_grace_attempts" json:"health_grace_attempts,omitempty"`

	// DependsOn lists service keys that must be started first.
	DependsOn []string `toml:"depends_on" json:"depends_on,omitempty"`

	// Kind selects managed or detached handling. Empty means managed.
	Kind ServiceKind `toml:"kind" json:"kind,omitempty"`

	// ComposeFile and ComposeService locate a docker-compose backed
	// detached service. The composition root turns them into a Lifecycle.
	ComposeFile    string `toml:"compose_file" json:"compose_file,omitempty"`
	ComposeService string `toml:"compose_service" json:"compose_service,omitempty"`

	// Lifecycle is the custom implementation for detached services.
	// Nil for managed services.
	Lifecycle Lifecycle `toml:"-" json:"-"`
}

// IsDetached reports whether the service is externally managed.
func (d *ServiceDefinition) IsDetached() bool {
	return d.Kind == KindDetached
}

// DisplayName returns the title, falling back to the key.
func (d *ServiceDefinition) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Key
}
