package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresTTY(t *testing.T) {
	for _, r := range []Runner{NPX(), UVX()} {
		assert.False(t, r.RequiresTTY(TransportStdio))
		assert.True(t, r.RequiresTTY(TransportHTTP))
		assert.True(t, r.RequiresTTY(TransportSSE))
	}
}

func TestCommandArgs(t *testing.T) {
	npx := NPX()
	args := npx.CommandArgs([]string{"-y"}, []string{"cowsay", "hello"})
	assert.Equal(t, []string{"npx", "-y", "cowsay", "hello"}, args)

	uvx := UVX()
	args = uvx.CommandArgs(nil, []string{"ruff", "check", "."})
	assert.Equal(t, []string{"uvx", "ruff", "check", "."}, args)
}

func TestDetectTransport(t *testing.T) {
	npx := NPX()
	assert.Equal(t, TransportStdio, npx.DetectTransport("@modelcontextprotocol/server-sequential-thinking"))
	assert.Equal(t, TransportStdio, npx.DetectTransport("some-other-package"))
	assert.Equal(t, TransportStdio, npx.DetectTransport(""))
}

func TestShippedVariants(t *testing.T) {
	npx := NPX()
	assert.Equal(t, "npx", npx.Command)
	assert.Equal(t, NodeAlpine, npx.DefaultImage)
	assert.Equal(t, []string{"-y"}, npx.DefaultFlags)
	assert.True(t, npx.SupportsFallback)

	uvx := UVX()
	assert.Equal(t, "uvx", uvx.Command)
	assert.Equal(t, PythonAlpine, uvx.DefaultImage)
	assert.Empty(t, uvx.DefaultFlags)
	assert.True(t, uvx.SupportsFallback)
}
