package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Handle is a started engine child process.
type Handle interface {
	// Wait blocks until the child exits and returns its exit code.
	Wait() (int, error)
}

// Engine abstracts the container engine surface the executor needs: an
// availability probe, a foreground run, and a best-effort stop by container
// name.
type Engine interface {
	Available(ctx context.Context) error
	Start(args []string) (Handle, error)
	Stop(ctx context.Context, name string) error
}

// DockerEngine drives Docker. Foreground runs go through the docker CLI so
// the session inherits the caller's stdio and terminal; the availability
// probe and the stop request use the engine API directly.
type DockerEngine struct {
	binary string
	cli    *client.Client
}

// NewDockerEngine creates a Docker engine handle. Construction does not
// require a reachable daemon; Available reports that separately.
func NewDockerEngine() (*DockerEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerEngine{binary: "docker", cli: cli}, nil
}

// Available verifies that the docker binary exists and the daemon answers a
// ping.
func (e *DockerEngine) Available(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return NewEngineUnavailableError(e.binary, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := e.cli.Ping(ctx); err != nil {
		return NewEngineUnavailableError(e.binary, err)
	}
	return nil
}

// Start spawns the docker CLI with the given arguments, wired to the
// caller's stdio.
func (e *DockerEngine) Start(args []string) (Handle, error) {
	cmd := exec.Command(e.binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processHandle{cmd: cmd}, nil
}

// Stop requests a stop of the named container. Used only for cleanup; the
// caller discards the error.
func (e *DockerEngine) Stop(ctx context.Context, name string) error {
	timeout := 10
	return e.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout})
}

type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
