package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"create-uix-app/internal/config"
	"create-uix-app/internal/console"
	"create-uix-app/internal/fetch"
	"create-uix-app/internal/install"
	"create-uix-app/internal/logging"
	"create-uix-app/internal/scaffold"
	"create-uix-app/internal/variant"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	workDir    string
	variants   map[variant.Variant]*bool
}

// newRootCmd builds the command for the capability set in cfg. Only the flags
// of enabled variants are registered.
func newRootCmd(cfg *config.Config, stdout, stderr io.Writer) (*cobra.Command, error) {
	caps, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	urls, err := cfg.TemplateURLs()
	if err != nil {
		return nil, err
	}

	opts := &rootOptions{variants: map[variant.Variant]*bool{}}

	rootCmd := &cobra.Command{
		Use:   "create-uix-app <project-name>",
		Short: "Create a new UIx project from a starter template",
		Long: `create-uix-app downloads a UIx starter template from
https://github.com/pitch-io/uix-starter, unpacks it into a directory named
after the project, rewrites the project name into the template's files and
installs its dependencies.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectName := ""
			if len(args) > 0 {
				projectName = args[0]
			}

			flags := variant.Flags{}
			for v, set := range opts.variants {
				flags[v] = *set
			}

			logger := logging.New(opts.logLevel, opts.logFormat, stderr)
			ctx := logging.WithLogger(cmd.Context(), logger)

			s := &scaffold.Scaffolder{
				Resolver:  variant.Resolver{Capabilities: caps, URLs: urls},
				Fetcher:   fetch.New(),
				Installer: install.New(cfg.Install, stdout, stderr),
				Console:   console.New(stdout),
			}

			_, err := s.Run(ctx, scaffold.Request{ProjectName: projectName, Flags: flags, WorkDir: opts.workDir})
			if errors.Is(err, variant.ErrShowHelp) {
				return cmd.Help()
			}
			return err
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", cfg.Log.Level, "Diagnostic log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", cfg.Log.Format, "Diagnostic log format: text or json")
	rootCmd.Flags().StringVar(&opts.workDir, "cwd", "", "Directory to create the project in (default current directory)")

	for _, v := range caps.Flags() {
		set := new(bool)
		rootCmd.Flags().BoolVar(set, v.String(), false, variant.Lookup(v).Usage)
		opts.variants[v] = set
	}

	return rootCmd, nil
}

// configFlag finds --config ahead of flag parsing, since the config decides
// which flags exist.
func configFlag(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig(configFlag(args))
	if err != nil {
		return err
	}

	rootCmd, err := newRootCmd(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
