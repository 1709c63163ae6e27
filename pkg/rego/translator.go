// Package rego translates security policy documents into Rego source for an
// external Open Policy Agent. The generated text is handed over as-is and is
// never parsed or evaluated by this program.
package rego

import (
	"fmt"
	"strings"

	"github.com/semcp/semcp/pkg/policy"
)

// Translate renders the policy document as a Rego module with a fixed
// structure: package header, filesystem predicates, network predicates, then
// the shared helpers, each defined exactly once. List literals are
// interpolated verbatim in source order, so identical documents produce
// byte-identical output.
func Translate(doc *policy.Document) string {
	var b strings.Builder

	b.WriteString("package semcp.policy\n\n")
	b.WriteString("# Auto-generated from the security policy document\n\n")

	b.WriteString("# Filesystem policies\n")
	writePathPredicate(&b, "allow_filesystem_access", "allowed_paths", pathList(doc, true))
	writePathPredicate(&b, "deny_filesystem_access", "blocked_paths", pathList(doc, false))

	b.WriteString("# Network policies\n")
	b.WriteString("allow_network_access(domain) {\n")
	writeStringList(&b, "allowed_domains", networkList(doc).AllowedDomains)
	b.WriteString("    domain_matches(domain, allowed_domains)\n")
	b.WriteString("}\n\n")

	b.WriteString("deny_network_port(port) {\n")
	writeStringList(&b, "blocked_ports", networkList(doc).BlockedPorts)
	b.WriteString("    port == blocked_ports[_]\n")
	b.WriteString("}\n\n")

	b.WriteString("# Helper functions\n")
	b.WriteString("startswith_any(str, prefixes) {\n")
	b.WriteString("    startswith(str, prefixes[_])\n")
	b.WriteString("}\n\n")
	b.WriteString("domain_matches(domain, allowed) {\n")
	b.WriteString("    allowed[_] == domain\n")
	b.WriteString("}\n")
	b.WriteString("domain_matches(domain, allowed) {\n")
	b.WriteString("    endswith(domain, concat(\".\", allowed[_]))\n")
	b.WriteString("}\n")

	return b.String()
}

func pathList(doc *policy.Document, allowed bool) []string {
	if doc == nil {
		return nil
	}
	if allowed {
		return doc.Spec.Filesystem.AllowedPaths
	}
	return doc.Spec.Filesystem.BlockedPaths
}

func networkList(doc *policy.Document) policy.NetworkSpec {
	if doc == nil {
		return policy.NetworkSpec{}
	}
	return doc.Spec.Network
}

func writePathPredicate(b *strings.Builder, name, listName string, paths []string) {
	fmt.Fprintf(b, "%s(path) {\n", name)
	writeStringList(b, listName, paths)
	fmt.Fprintf(b, "    startswith_any(path, %s)\n", listName)
	b.WriteString("}\n\n")
}

func writeStringList(b *strings.Builder, name string, values []string) {
	fmt.Fprintf(b, "    %s = [\n", name)
	for _, v := range values {
		fmt.Fprintf(b, "        %q,\n", v)
	}
	b.WriteString("    ]\n")
}
