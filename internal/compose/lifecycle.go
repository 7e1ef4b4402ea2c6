package compose

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Lifecycle starts, stops and health-checks one docker-compose service. It
// implements config.Lifecycle for detached service definitions.
type Lifecycle struct {
	composeFile string
	service     string
}

// NewLifecycle validates the compose file and returns a lifecycle bound to
// one of its services.
func NewLifecycle(composeFile, service string) (*Lifecycle, error) {
	file, err := ParseFile(composeFile)
	if err != nil {
		return nil, err
	}
	if !file.HasService(service) {
		return nil, fmt.Errorf("no service %q in %s", service, composeFile)
	}
	return &Lifecycle{composeFile: composeFile, service: service}, nil
}

// Start brings the compose service up detached.
func (l *Lifecycle) Start(ctx context.Context) error {
	args := []string{"compose", "-f", l.composeFile, "up", "-d", l.service}
	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to start compose service: %w, output: %s", err, string(output))
	}
	return nil
}

// Stop stops the compose service; graceful=false kills it instead.
func (l *Lifecycle) Stop(ctx context.Context, graceful bool) error {
	verb := "stop"
	if !graceful {
		verb = "kill"
	}
	args := []string{"compose", "-f", l.composeFile, verb, l.service}
	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to %s compose service: %w, output: %s", verb, err, string(output))
	}
	return nil
}

// CheckHealth reports whether the compose service has a running container.
func (l *Lifecycle) CheckHealth(ctx context.Context) error {
	containerID, err := l.containerID(ctx)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "docker", "inspect", containerID, "--format", "{{.State.Running}}")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to check container status: %w, output: %s", err, string(output))
	}
	if strings.TrimSpace(string(output)) != "true" {
		return fmt.Errorf("container is not running")
	}
	return nil
}

// containerID returns the container backing the compose service.
func (l *Lifecycle) containerID(ctx context.Context) (string, error) {
	args := []string{"compose", "-f", l.composeFile, "ps", "-q", l.service}
	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to get container ID: %w, output: %s", err, string(output))
	}

	containerID := strings.TrimSpace(string(output))
	if containerID == "" {
		return "", fmt.Errorf("no container found for service %s", l.service)
	}
	return containerID, nil
}
