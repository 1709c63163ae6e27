// Package runner describes the wrapped tool variants. A Runner is a plain
// capability record: the shipped variants differ only in field values, never
// in control flow.
package runner

// Transport is the communication channel class the wrapped tool is expected
// to use. It decides whether the container gets an interactive terminal.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// Runner describes one wrapped tool ecosystem.
type Runner struct {
	// Command is the wrapped executable inside the container (and on the
	// host when falling back).
	Command string

	// DefaultImage is used when the caller picks no image.
	DefaultImage string

	// DefaultFlags are prepended to the wrapped command when the caller
	// supplies no flags of their own.
	DefaultFlags []string

	// DetectTransport classifies a package name into a Transport.
	DetectTransport func(pkg string) Transport

	// ExtraDockerArgs are engine arguments specific to this variant,
	// appended after the policy-derived arguments.
	ExtraDockerArgs []string

	// SupportsFallback permits direct host execution when the container
	// engine is unavailable.
	SupportsFallback bool
}

// RequiresTTY reports whether the transport needs an interactive terminal.
// Stdio never does; http and sse always do.
func (r Runner) RequiresTTY(t Transport) bool {
	return t != TransportStdio
}

// CommandArgs assembles the in-container command line: the wrapped command,
// its flags, then the pass-through arguments, in that order.
func (r Runner) CommandArgs(flags, args []string) []string {
	cmdArgs := make([]string, 0, 1+len(flags)+len(args))
	cmdArgs = append(cmdArgs, r.Command)
	cmdArgs = append(cmdArgs, flags...)
	cmdArgs = append(cmdArgs, args...)
	return cmdArgs
}

// stdioTransport classifies every package as stdio.
// TODO: classify http/sse servers once package naming conventions settle.
func stdioTransport(string) Transport { return TransportStdio }

// NPX returns the Node-ecosystem runner wrapping npx.
func NPX() Runner {
	return Runner{
		Command:          "npx",
		DefaultImage:     NodeRecommended,
		DefaultFlags:     []string{"-y"},
		DetectTransport:  stdioTransport,
		SupportsFallback: true,
	}
}

// UVX returns the Python-ecosystem runner wrapping uvx.
func UVX() Runner {
	return Runner{
		Command:          "uvx",
		DefaultImage:     PythonRecommended,
		DetectTransport:  stdioTransport,
		SupportsFallback: true,
	}
}
