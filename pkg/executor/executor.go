// Package executor owns the container session lifecycle: invocation
// assembly, spawn, the race between child completion and an interrupt
// signal, and best-effort cleanup. One Executor serves exactly one session
// and is never reused.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/semcp/semcp/pkg/falco"
	"github.com/semcp/semcp/pkg/policy"
	"github.com/semcp/semcp/pkg/runner"
)

// InterruptExitCode is the process exit code after an interrupt, matching
// shell convention for SIGINT.
const InterruptExitCode = 130

const stopTimeout = 10 * time.Second

// Session states. The only transitions are Created → Running →
// {Exited, Interrupted}; there is no way back to Created and no retry.
type state int

const (
	stateCreated state = iota
	stateRunning
	stateDone
)

// Executor composes a policy, a runner and an engine into one container
// session.
type Executor struct {
	tool          string
	image         string
	verbose       bool
	policy        *policy.Document
	falcoEnabled  bool
	containerName string

	engine  Engine
	rules   *falco.Generator
	logger  *slog.Logger
	signals chan os.Signal
	isTTY   func() bool
	state   state

	pid func() int
	now func() time.Time
}

// Option customizes an Executor. The clock, process identity and signal
// channel are injectable so tests get deterministic names and a drivable
// interrupt path.
type Option func(*Executor)

// WithEngine replaces the container engine.
func WithEngine(e Engine) Option {
	return func(x *Executor) { x.engine = e }
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Executor) { x.logger = l }
}

// WithFalco overrides the policy-derived monitoring flag.
func WithFalco(enabled bool) Option {
	return func(x *Executor) { x.falcoEnabled = enabled }
}

// WithRuleGenerator replaces the Falco rule-file generator.
func WithRuleGenerator(g *falco.Generator) Option {
	return func(x *Executor) { x.rules = g }
}

// WithSignals replaces the interrupt source.
func WithSignals(ch chan os.Signal) Option {
	return func(x *Executor) { x.signals = ch }
}

// WithPID replaces the process identity source.
func WithPID(pid func() int) Option {
	return func(x *Executor) { x.pid = pid }
}

// WithClock replaces the clock used for unique naming.
func WithClock(now func() time.Time) Option {
	return func(x *Executor) { x.now = now }
}

// New creates an executor bound to one future session. The container name is
// derived from the tool name, the process identity and a clock reading, so
// two executors created in the same process never collide.
func New(tool, image string, verbose bool, doc *policy.Document, opts ...Option) (*Executor, error) {
	e := &Executor{
		tool:         tool,
		image:        image,
		verbose:      verbose,
		policy:       doc,
		falcoEnabled: doc.MonitorEnabled(),
		rules:        falco.NewGenerator(tool),
		pid:          os.Getpid,
		now:          time.Now,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if e.engine == nil {
		engine, err := NewDockerEngine()
		if err != nil {
			return nil, err
		}
		e.engine = engine
	}

	e.containerName = fmt.Sprintf("%s-%d-%d", tool, e.pid(), e.now().UnixNano())
	return e, nil
}

// ContainerName returns the session's unique container name.
func (e *Executor) ContainerName() string { return e.containerName }

// Image returns the image reference the session will run.
func (e *Executor) Image() string { return e.image }

// EngineAvailable probes the container engine.
func (e *Executor) EngineAvailable(ctx context.Context) error {
	return e.engine.Available(ctx)
}

// DockerArgs assembles the complete ordered invocation: baseline flags,
// the terminal flag when the transport needs one, monitoring labels,
// policy-derived arguments, runner extras, the image, then the in-container
// command line. The ordering is part of the external contract.
func (e *Executor) DockerArgs(r runner.Runner, cmdArgs []string, transport runner.Transport) ([]string, error) {
	args := []string{"run", "--rm", "-i", "--name", e.containerName}

	if r.RequiresTTY(transport) {
		if !e.isTTY() {
			e.logger.Warn("transport requires a terminal but stdin is not one",
				"transport", string(transport))
		}
		args = append(args, "-t")
	}

	if e.falcoEnabled {
		rulePath, err := e.rules.WriteRuleFile(e.policy)
		if err != nil {
			return nil, err
		}
		if rulePath != "" {
			args = append(args,
				"--label", "falco.rules.file="+rulePath,
				"--label", "io.kubernetes.pod.namespace=falco-monitored",
			)
			e.logger.Debug("falco monitoring enabled", "rules", rulePath)
		}
	}

	args = append(args, e.policy.DockerArgs()...)
	args = append(args, r.ExtraDockerArgs...)
	args = append(args, e.image)
	args = append(args, cmdArgs...)
	return args, nil
}

type waitResult struct {
	code int
	err  error
}

// Run executes one containerized session in the foreground and returns the
// exit code to propagate. A normal child exit returns the child's own code
// unchanged; an interrupt issues exactly one best-effort stop request and
// returns InterruptExitCode.
func (e *Executor) Run(ctx context.Context, r runner.Runner, flags, args []string) (int, error) {
	if e.state != stateCreated {
		return 1, fmt.Errorf("executor for session %s already ran", e.containerName)
	}

	var pkg string
	if len(args) > 0 {
		pkg = args[0]
	}
	transport := r.DetectTransport(pkg)
	cmdArgs := r.CommandArgs(flags, args)

	dockerArgs, err := e.DockerArgs(r, cmdArgs, transport)
	if err != nil {
		return 1, err
	}

	e.logger.Debug("running container engine", "cmd", "docker "+strings.Join(dockerArgs, " "))

	handle, err := e.engine.Start(dockerArgs)
	if err != nil {
		return 1, &SpawnError{Cause: err}
	}
	e.state = stateRunning
	defer func() { e.state = stateDone }()

	sigCh := e.signals
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := handle.Wait()
		waitCh <- waitResult{code: code, err: err}
	}()

	select {
	case res := <-waitCh:
		if res.err != nil {
			return 1, &WaitError{Cause: res.err}
		}
		return res.code, nil
	case <-sigCh:
		e.logger.Debug("interrupt received, stopping container", "name", e.containerName)
		e.cleanup()
		return InterruptExitCode, nil
	case <-ctx.Done():
		e.cleanup()
		return InterruptExitCode, nil
	}
}

// cleanup issues the stop request for the session container. Fire and
// forget: the outcome is never surfaced and never blocks shutdown.
func (e *Executor) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = e.engine.Stop(ctx, e.containerName)
}

// Fallback runs the wrapped tool directly on the host, bypassing
// containerization and policy enforcement. Only permitted when the runner
// declares fallback support.
func (e *Executor) Fallback(r runner.Runner, flags, args []string) (int, error) {
	if !r.SupportsFallback {
		return 1, &FallbackUnsupportedError{Command: r.Command}
	}

	e.logger.Debug("falling back to host execution", "command", r.Command)

	cmd := exec.Command(r.Command, append(append([]string{}, flags...), args...)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, fmt.Errorf("failed to execute %s: %w", r.Command, err)
}
