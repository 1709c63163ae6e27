// Package falco renders the policy's monitor section into a Falco rule file
// consumed by a monitoring sidecar. The file is referenced by a container
// label and never read back.
package falco

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/semcp/semcp/pkg/policy"
)

// WriteError indicates that the rendered rule file could not be persisted.
// It is fatal: launching a monitored container without its rules would
// silently disable monitoring.
type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write falco rule file %s: %v", e.Path, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Generator renders rule files to process-unique paths. TempDir and PID are
// injectable so tests get deterministic paths; the zero value is not usable,
// construct with NewGenerator.
type Generator struct {
	// Prefix names the wrapping tool and becomes part of the file name.
	Prefix  string
	TempDir string
	PID     func() int
}

// NewGenerator creates a generator with platform defaults.
func NewGenerator(prefix string) *Generator {
	return &Generator{
		Prefix:  prefix,
		TempDir: os.TempDir(),
		PID:     os.Getpid,
	}
}

// RulePath returns the process-unique path the rule file is written to.
func (g *Generator) RulePath() string {
	return filepath.Join(g.TempDir, fmt.Sprintf("%s-falco-rules-%d.yaml", g.Prefix, g.PID()))
}

// WriteRuleFile renders every enabled rule-set of the document and persists
// the result. It returns the empty string, without error, when monitoring is
// disabled or no enabled rule-set has content: no file is produced in that
// case.
func (g *Generator) WriteRuleFile(doc *policy.Document) (string, error) {
	content, ok := Render(doc)
	if !ok {
		return "", nil
	}

	path := g.RulePath()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", &WriteError{Path: path, Cause: err}
	}
	return path, nil
}

// Render produces the rule file text. The second return value is false when
// there is nothing to monitor.
func Render(doc *policy.Document) (string, bool) {
	if !doc.MonitorEnabled() {
		return "", false
	}

	var b strings.Builder
	wrote := false

	for _, set := range doc.Spec.Falco.Rules {
		if !set.Enabled {
			continue
		}

		if set.RuleContent != "" {
			b.WriteString(set.RuleContent)
			if !strings.HasSuffix(set.RuleContent, "\n") {
				b.WriteByte('\n')
			}
			wrote = true
			continue
		}

		for _, rule := range set.Rules {
			fmt.Fprintf(&b, "- rule: %s\n", rule.Name)
			if rule.Description != "" {
				fmt.Fprintf(&b, "  desc: %s\n", rule.Description)
			}
			fmt.Fprintf(&b, "  condition: %s\n", rule.Condition)
			if rule.Output != "" {
				fmt.Fprintf(&b, "  output: %s\n", rule.Output)
			}
			if rule.Priority != "" {
				fmt.Fprintf(&b, "  priority: %s\n", rule.Priority)
			}
			if rule.Action != "" {
				fmt.Fprintf(&b, "  action: %s\n", rule.Action)
			}
			b.WriteByte('\n')
			wrote = true
		}
	}

	if !wrote {
		return "", false
	}
	return "# Falco rules generated by semcp\n" + b.String(), true
}
