// Command suvx is a containerized replacement for uvx: the requested Python
// tool runs inside a policy-constrained Docker container instead of on the
// host.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/semcp/semcp/pkg/executor"
	"github.com/semcp/semcp/pkg/policy"
	"github.com/semcp/semcp/pkg/rego"
	"github.com/semcp/semcp/pkg/runner"
)

const tool = "suvx"

var version = "dev"

type options struct {
	verbose  bool
	image    string
	alpine   bool
	slim     bool
	standard bool

	python        string
	fromPackage   string
	withPackages  []string
	withEditable  []string
	index         string
	indexURL      string
	extraIndexURL []string
	findLinks     []string
	noIndex       bool
	prerelease    bool
	upgrade       bool
	reinstall     bool
	noDeps        bool

	policyPath string
	falco      bool
	opa        bool
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "suvx [flags] <package> [args...]",
		Short:   "A containerized replacement for uvx",
		Version: version,
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(run(cmd.Context(), opts, args))
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false) // flags after the package belong to the package
	flags.BoolVar(&opts.verbose, "verbose", false, "Use verbose output")
	flags.StringVar(&opts.image, "image", "", "Docker image to use (default: "+runner.PythonRecommended+")")
	flags.BoolVar(&opts.alpine, "alpine", false, "Use Alpine image (~200MB)")
	flags.BoolVar(&opts.slim, "slim", false, "Use slim image (~300MB)")
	flags.BoolVar(&opts.standard, "standard", false, "Use standard image (~1GB)")
	flags.StringVarP(&opts.python, "python", "p", "", "Python interpreter to use")
	flags.StringVar(&opts.fromPackage, "from", "", "Install the command from a different package")
	flags.StringSliceVar(&opts.withPackages, "with", nil, "Install additional packages alongside the main package")
	flags.StringSliceVar(&opts.withEditable, "with-editable", nil, "Install additional packages in editable mode")
	flags.StringVar(&opts.index, "index", "", "Base URL of Python package index")
	flags.StringVar(&opts.indexURL, "index-url", "", "Base URL of Python package index")
	flags.StringSliceVar(&opts.extraIndexURL, "extra-index-url", nil, "Extra URLs of package indexes")
	flags.StringSliceVar(&opts.findLinks, "find-links", nil, "Additional sources for packages")
	flags.BoolVar(&opts.noIndex, "no-index", false, "Ignore package index, only use find-links")
	flags.BoolVar(&opts.prerelease, "prerelease", false, "Allow pre-release versions")
	flags.BoolVar(&opts.upgrade, "upgrade", false, "Allow package upgrades")
	flags.BoolVar(&opts.reinstall, "force-reinstall", false, "Force reinstall packages")
	flags.BoolVar(&opts.noDeps, "no-deps", false, "Don't install dependencies")
	flags.StringVar(&opts.policyPath, "policy", "", "Path to policy file")
	flags.BoolVar(&opts.falco, "falco", false, "Force-enable Falco monitoring")
	flags.BoolVar(&opts.opa, "opa", false, "Upload the translated policy to a local OPA server")

	viper.SetEnvPrefix(tool)
	viper.AutomaticEnv()
	for _, key := range []string{"verbose", "image", "policy"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func determineImage(opts *options) string {
	switch {
	case viper.GetString("image") != "":
		return viper.GetString("image")
	case opts.alpine:
		return runner.PythonAlpine
	case opts.slim:
		return runner.PythonSlim
	case opts.standard:
		return runner.PythonStandard
	default:
		return runner.PythonRecommended
	}
}

func buildUvxFlags(opts *options) []string {
	var flags []string

	if opts.python != "" {
		flags = append(flags, "--python", opts.python)
	}
	if opts.fromPackage != "" {
		flags = append(flags, "--from", opts.fromPackage)
	}
	for _, pkg := range opts.withPackages {
		flags = append(flags, "--with", pkg)
	}
	for _, pkg := range opts.withEditable {
		flags = append(flags, "--with-editable", pkg)
	}
	if opts.index != "" {
		flags = append(flags, "--index", opts.index)
	}
	if opts.indexURL != "" {
		flags = append(flags, "--index-url", opts.indexURL)
	}
	for _, url := range opts.extraIndexURL {
		flags = append(flags, "--extra-index-url", url)
	}
	for _, link := range opts.findLinks {
		flags = append(flags, "--find-links", link)
	}
	if opts.noIndex {
		flags = append(flags, "--no-index")
	}
	if opts.prerelease {
		flags = append(flags, "--prerelease", "allow")
	}
	if opts.upgrade {
		flags = append(flags, "--upgrade")
	}
	if opts.reinstall {
		flags = append(flags, "--force-reinstall")
	}
	if opts.noDeps {
		flags = append(flags, "--no-deps")
	}

	return flags
}

func run(ctx context.Context, opts *options, args []string) int {
	verbose := viper.GetBool("verbose") || opts.verbose
	image := determineImage(opts)

	if verbose {
		fmt.Fprintf(os.Stderr, "Using Docker image: %s\n", image)
	}

	doc, err := loadPolicy(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := doc.Resolve(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	execOpts := []executor.Option{}
	if opts.falco {
		execOpts = append(execOpts, executor.WithFalco(true))
	}

	exe, err := executor.New(tool, image, verbose, doc, execOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	uvx := runner.UVX()
	uvxFlags := buildUvxFlags(opts)

	if err := exe.EngineAvailable(ctx); err != nil {
		var unavailable *executor.EngineUnavailableError
		if errors.As(err, &unavailable) && uvx.SupportsFallback {
			if verbose {
				fmt.Fprintln(os.Stderr, "Docker is not available, falling back to host uvx")
			}
			return exitOf(exe.Fallback(uvx, uvxFlags, args))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "suvx requires Docker to be installed and running")
		return 1
	}

	if opts.opa {
		uploadPolicy(ctx, doc, verbose)
	}

	return exitOf(exe.Run(ctx, uvx, uvxFlags, args))
}

func loadPolicy(verbose bool) (*policy.Document, error) {
	if path := viper.GetString("policy"); path != "" {
		if verbose {
			fmt.Fprintf(os.Stderr, "Loading policy from: %s\n", path)
		}
		return policy.Load(path)
	}

	doc, path, err := policy.Locate(tool)
	if err != nil {
		return nil, err
	}
	if verbose && path != "" {
		fmt.Fprintf(os.Stderr, "Loaded policy from: %s\n", path)
	}
	return doc, nil
}

func uploadPolicy(ctx context.Context, doc *policy.Document, verbose bool) {
	mgr := rego.NewManager(true)
	if !mgr.Available() {
		fmt.Fprintln(os.Stderr, "Warning: opa binary not found, skipping policy upload")
		return
	}
	if err := mgr.UploadPolicy(ctx, tool, rego.Translate(doc)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if verbose {
		fmt.Fprintln(os.Stderr, "Policy uploaded to OPA")
	}
}

func exitOf(code int, err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return code
}
