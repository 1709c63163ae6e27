// Command snpx is a containerized replacement for npx: the requested package
// runs inside a policy-constrained Docker container instead of on the host.
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

const tool = "snpx"

var version = "dev"

type options struct {
	verbose    bool
	image      string
	alpine     bool
	slim       bool
	standard   bool
	distroless bool

	yes            bool
	pkg            string
	call           string
	noInstall      bool
	ignoreExisting bool
	quiet          bool
	shell          string

	policyPath string
	falco      bool
	opa        bool
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:     "snpx [flags] <package> [args...]",
		Short:   "A containerized replacement for npx",
		Version: version,
		Args:    cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(run(cmd.Context(), opts, args))
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false) // flags after the package belong to the package
	flags.BoolVar(&opts.verbose, "verbose", false, "Use verbose output")
	flags.StringVar(&opts.image, "image", "", "Docker image to use (default: "+runner.NodeRecommended+")")
	flags.BoolVar(&opts.alpine, "alpine", false, "Use Alpine image (~180MB)")
	flags.BoolVar(&opts.slim, "slim", false, "Use slim image (~250MB)")
	flags.BoolVar(&opts.standard, "standard", false, "Use standard image (~1.1GB)")
	flags.BoolVar(&opts.distroless, "distroless", false, "Use distroless image (~200MB)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Automatically answer yes when prompted")
	flags.StringVarP(&opts.pkg, "package", "p", "", "Package to execute from")
	flags.StringVarP(&opts.call, "call", "c", "", "Execute the command in a shell")
	flags.BoolVar(&opts.noInstall, "no-install", false, "Skip package installation")
	flags.BoolVar(&opts.ignoreExisting, "ignore-existing", false, "Ignore existing commands")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress npm logs")
	flags.StringVar(&opts.shell, "shell", "", "Use custom shell")
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
		return runner.NodeAlpine
	case opts.slim:
		return runner.NodeSlim
	case opts.standard:
		return runner.NodeStandard
	case opts.distroless:
		return runner.NodeDistroless
	default:
		return runner.NodeRecommended
	}
}

func buildNpxFlags(opts *options) []string {
	var flags []string

	if opts.yes || !opts.noInstall {
		flags = append(flags, "-y")
	}
	if opts.pkg != "" {
		flags = append(flags, "-p", opts.pkg)
	}
	if opts.call != "" {
		flags = append(flags, "-c", opts.call)
	}
	if opts.noInstall {
		flags = append(flags, "--no-install")
	}
	if opts.ignoreExisting {
		flags = append(flags, "--ignore-existing")
	}
	if opts.quiet {
		flags = append(flags, "-q")
	}
	if opts.shell != "" {
		flags = append(flags, "--shell", opts.shell)
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

	npx := runner.NPX()
	npxFlags := buildNpxFlags(opts)

	if err := exe.EngineAvailable(ctx); err != nil {
		var unavailable *executor.EngineUnavailableError
		if errors.As(err, &unavailable) && npx.SupportsFallback {
			if verbose {
				fmt.Fprintln(os.Stderr, "Docker is not available, falling back to host npx")
			}
			return exitOf(exe.Fallback(npx, npxFlags, args))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "snpx requires Docker to be installed and running")
		return 1
	}

	if opts.opa {
		uploadPolicy(ctx, doc, verbose)
	}

	return exitOf(exe.Run(ctx, npx, npxFlags, args))
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
