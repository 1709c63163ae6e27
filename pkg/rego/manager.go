package rego

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

const defaultEndpoint = "http://localhost:8181"

// Manager drives the optional OPA integration: it probes for the opa binary,
// renders docker arguments for an OPA sidecar sharing the session's network
// namespace, and uploads generated Rego modules to the sidecar's REST API.
type Manager struct {
	Enabled  bool
	Endpoint string

	client *http.Client
}

// NewManager creates a manager. When enabled is false every operation is a
// no-op so call sites need no branching.
func NewManager(enabled bool) *Manager {
	return &Manager{
		Enabled:  enabled,
		Endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Available reports whether the opa binary can be invoked on this host.
func (m *Manager) Available() bool {
	if !m.Enabled {
		return false
	}
	if _, err := exec.LookPath("opa"); err != nil {
		return false
	}
	return exec.Command("opa", "version").Run() == nil
}

// SidecarArgs renders the docker invocation for an OPA sidecar attached to
// the named session container's network namespace.
func (m *Manager) SidecarArgs(containerName string) []string {
	if !m.Enabled {
		return nil
	}
	return []string{
		"run",
		"-d",
		"--name", containerName + "-opa",
		"--network=container:" + containerName,
		"-p", "8181:8181",
		"openpolicyagent/opa:latest",
		"run",
		"--server",
		"--log-level=debug",
	}
}

// UploadPolicy PUTs a Rego module to the OPA policy API under the given id.
func (m *Manager) UploadPolicy(ctx context.Context, id, module string) error {
	if !m.Enabled {
		return nil
	}

	url := fmt.Sprintf("%s/v1/policies/%s", m.Endpoint, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(module))
	if err != nil {
		return fmt.Errorf("failed to build OPA upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload policy to OPA: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("OPA rejected policy %s: status %d: %s", id, resp.StatusCode, string(body))
	}

	return nil
}
