package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcp/semcp/pkg/falco"
	"github.com/semcp/semcp/pkg/policy"
	"github.com/semcp/semcp/pkg/runner"
)

type fakeHandle struct {
	exitCode int
	waitErr  error
	release  chan struct{} // when set, Wait blocks until closed
}

func (h *fakeHandle) Wait() (int, error) {
	if h.release != nil {
		<-h.release
	}
	return h.exitCode, h.waitErr
}

type fakeEngine struct {
	availableErr error
	startErr     error
	handle       *fakeHandle

	startArgs []string
	stopCalls atomic.Int32
	stopName  string
}

func (f *fakeEngine) Available(ctx context.Context) error { return f.availableErr }

func (f *fakeEngine) Start(args []string) (Handle, error) {
	f.startArgs = args
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.handle, nil
}

func (f *fakeEngine) Stop(ctx context.Context, name string) error {
	f.stopCalls.Add(1)
	f.stopName = name
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, doc *policy.Document, engine Engine, opts ...Option) *Executor {
	t.Helper()
	base := []Option{
		WithEngine(engine),
		WithLogger(quietLogger()),
		WithPID(func() int { return 1234 }),
		WithClock(func() time.Time { return time.Unix(0, 987654321) }),
		WithRuleGenerator(&falco.Generator{
			Prefix:  "snpx",
			TempDir: t.TempDir(),
			PID:     func() int { return 1234 },
		}),
	}
	e, err := New("snpx", "node:24-alpine", false, doc, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func TestContainerNameUniqueness(t *testing.T) {
	engine := &fakeEngine{}
	var tick int64
	clock := func() time.Time {
		tick++
		return time.Unix(0, tick)
	}

	a := newTestExecutor(t, nil, engine, WithClock(clock))
	b := newTestExecutor(t, nil, engine, WithClock(clock))

	assert.NotEqual(t, a.ContainerName(), b.ContainerName())
	assert.Contains(t, a.ContainerName(), "snpx-1234-")
}

func TestDockerArgsOrdering(t *testing.T) {
	doc, err := policy.Load("../policy/testdata/policy.yaml")
	require.NoError(t, err)
	doc.Spec.Falco.Enabled = false

	e := newTestExecutor(t, doc, &fakeEngine{})
	npx := runner.NPX()
	cmdArgs := npx.CommandArgs([]string{"-y"}, []string{"cowsay", "hello"})

	args, err := e.DockerArgs(npx, cmdArgs, runner.TransportStdio)
	require.NoError(t, err)

	expected := []string{
		"run", "--rm", "-i", "--name", e.ContainerName(),
		"-v", "/tmp/mcp-filesystem:/tmp/mcp-filesystem:ro",
		"-v", "/var/cache/semcp:/var/cache/semcp:rw",
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"--cap-add", "SETUID",
		"node:24-alpine",
		"npx", "-y", "cowsay", "hello",
	}
	assert.Equal(t, expected, args)
}

func TestDockerArgsTTY(t *testing.T) {
	e := newTestExecutor(t, nil, &fakeEngine{})
	npx := runner.NPX()

	stdio, err := e.DockerArgs(npx, []string{"npx"}, runner.TransportStdio)
	require.NoError(t, err)
	assert.NotContains(t, stdio, "-t")

	http, err := e.DockerArgs(npx, []string{"npx"}, runner.TransportHTTP)
	require.NoError(t, err)
	assert.Contains(t, http, "-t")

	sse, err := e.DockerArgs(npx, []string{"npx"}, runner.TransportSSE)
	require.NoError(t, err)
	assert.Contains(t, sse, "-t")
}

func TestDockerArgsFalcoLabels(t *testing.T) {
	doc := &policy.Document{}
	doc.Spec.Falco = policy.FalcoSpec{
		Enabled: true,
		Rules: []policy.FalcoRuleSet{{
			Name:    "set",
			Enabled: true,
			Rules:   []policy.FalcoRule{{Name: "r", Condition: "evt.type = execve"}},
		}},
	}

	e := newTestExecutor(t, doc, &fakeEngine{})
	args, err := e.DockerArgs(runner.NPX(), []string{"npx"}, runner.TransportStdio)
	require.NoError(t, err)

	var labels []string
	for i, a := range args {
		if a == "--label" {
			labels = append(labels, args[i+1])
		}
	}
	require.Len(t, labels, 2)
	assert.Contains(t, labels[0], "falco.rules.file=")
	assert.Contains(t, labels[0], "snpx-falco-rules-1234.yaml")
	assert.Equal(t, "io.kubernetes.pod.namespace=falco-monitored", labels[1])
}

func TestDockerArgsNoPolicy(t *testing.T) {
	e := newTestExecutor(t, nil, &fakeEngine{})
	args, err := e.DockerArgs(runner.NPX(), []string{"npx"}, runner.TransportStdio)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run", "--rm", "-i", "--name", e.ContainerName(),
		"node:24-alpine",
		"npx",
	}, args)
}

func TestRunPropagatesChildExitCode(t *testing.T) {
	for _, code := range []int{0, 3, 127} {
		engine := &fakeEngine{handle: &fakeHandle{exitCode: code}}
		e := newTestExecutor(t, nil, engine)

		got, err := e.Run(context.Background(), runner.NPX(), []string{"-y"}, []string{"cowsay"})
		require.NoError(t, err)
		assert.Equal(t, code, got)
		assert.Zero(t, engine.stopCalls.Load())
	}
}

func TestRunSpawnFailure(t *testing.T) {
	engine := &fakeEngine{startErr: errors.New("fork failed")}
	e := newTestExecutor(t, nil, engine)

	code, err := e.Run(context.Background(), runner.NPX(), nil, []string{"cowsay"})
	assert.Equal(t, 1, code)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
}

func TestRunWaitFailure(t *testing.T) {
	engine := &fakeEngine{handle: &fakeHandle{exitCode: -1, waitErr: errors.New("wait4 failed")}}
	e := newTestExecutor(t, nil, engine)

	code, err := e.Run(context.Background(), runner.NPX(), nil, []string{"cowsay"})
	assert.Equal(t, 1, code)

	var waitErr *WaitError
	require.True(t, errors.As(err, &waitErr))
}

func TestRunInterrupt(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	engine := &fakeEngine{handle: &fakeHandle{release: release}}
	sigCh := make(chan os.Signal, 1)
	e := newTestExecutor(t, nil, engine, WithSignals(sigCh))

	go func() { sigCh <- os.Interrupt }()

	code, err := e.Run(context.Background(), runner.NPX(), nil, []string{"cowsay"})
	require.NoError(t, err)
	assert.Equal(t, InterruptExitCode, code)

	assert.Equal(t, int32(1), engine.stopCalls.Load(), "exactly one stop request")
	assert.Equal(t, e.ContainerName(), engine.stopName)
}

func TestRunRefusesReuse(t *testing.T) {
	engine := &fakeEngine{handle: &fakeHandle{}}
	e := newTestExecutor(t, nil, engine)

	_, err := e.Run(context.Background(), runner.NPX(), nil, []string{"cowsay"})
	require.NoError(t, err)

	code, err := e.Run(context.Background(), runner.NPX(), nil, []string{"cowsay"})
	assert.Equal(t, 1, code)
	assert.Error(t, err)
}

func TestFallbackUnsupported(t *testing.T) {
	e := newTestExecutor(t, nil, &fakeEngine{})

	r := runner.NPX()
	r.SupportsFallback = false

	code, err := e.Fallback(r, nil, []string{"cowsay"})
	assert.Equal(t, 1, code)

	var fbErr *FallbackUnsupportedError
	require.True(t, errors.As(err, &fbErr))
	assert.Equal(t, "npx", fbErr.Command)
}

func TestFallbackRunsHostCommand(t *testing.T) {
	e := newTestExecutor(t, nil, &fakeEngine{})

	r := runner.Runner{
		Command:          "true",
		DetectTransport:  func(string) runner.Transport { return runner.TransportStdio },
		SupportsFallback: true,
	}

	code, err := e.Fallback(r, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestFallbackPropagatesExitCode(t *testing.T) {
	e := newTestExecutor(t, nil, &fakeEngine{})

	r := runner.Runner{
		Command:          "false",
		DetectTransport:  func(string) runner.Transport { return runner.TransportStdio },
		SupportsFallback: true,
	}

	code, err := e.Fallback(r, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}
