package runner

// Image variants for the two ecosystems. Alpine builds are the recommended
// default for their size.
const (
	NodeAlpine     = "node:24-alpine"
	NodeSlim       = "node:24-slim"
	NodeStandard   = "node:24"
	NodeDistroless = "gcr.io/distroless/nodejs24-debian12"

	PythonAlpine   = "ghcr.io/astral-sh/uv:python3.12-alpine"
	PythonSlim     = "ghcr.io/astral-sh/uv:python3.12-bookworm-slim"
	PythonStandard = "ghcr.io/astral-sh/uv:python3.12-bookworm"

	NodeRecommended   = NodeAlpine
	PythonRecommended = PythonAlpine
)
