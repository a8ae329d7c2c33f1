package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/config"
	"github.com/stelligent/mu-formula/internal/fetch"
	"github.com/stelligent/mu-formula/internal/install"
	"github.com/stelligent/mu-formula/internal/logging"
	"github.com/stelligent/mu-formula/internal/receipt"
	"github.com/stelligent/mu-formula/internal/runner"
)

// app carries state shared by all subcommands for one invocation.
type app struct {
	verbosity  int
	configFile string

	cfg         *config.Config
	formulaPath string
	formula     *formula.Formula
	log         zerolog.Logger
}

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"formula":   "formula",
	"bin-dir":   "bin_dir",
	"state-dir": "state_dir",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "mu-formula",
		Short: "Install and maintain the mu CLI release formula",
		Long: `mu-formula resolves the mu release for this platform and channel,
verifies its sha256, installs it as mu-cli and smoke-tests it with --version.

It also keeps the formula itself in shape: lint, verify the recorded
checksums against the published assets, cut new releases with bump and
render the Homebrew Ruby formula.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.log = logging.Setup(a.verbosity, cmd.ErrOrStderr())
			a.log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	flags.StringVar(&a.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mu-formula/config.toml)")
	flags.String("formula", "", "formula manifest (.toml, .yaml); default is the embedded mu-cli formula")
	flags.String("bin-dir", "", "directory the mu-cli binary is installed to")
	flags.String("state-dir", "", "directory for receipts and downloads")

	root.AddCommand(
		newResolveCmd(a),
		newInstallCmd(a),
		newUpgradeCmd(a),
		newUninstallCmd(a),
		newTestCmd(a),
		newInfoCmd(a),
		newLintCmd(a),
		newVerifyCmd(a),
		newRenderCmd(a),
		newBumpCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves configuration and the formula. Explicitly set flags win
// over the environment and the config file.
func (a *app) load(cmd *cobra.Command) error {
	overrides := map[string]any{}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	cfg, path, err := config.Load(config.LoadOptions{ConfigFile: a.configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	if path != "" {
		a.log.Debug().Str("path", path).Msg("Loaded config file")
	}
	a.cfg = cfg

	if cfg.Formula == "" {
		a.formula = formula.Default()
		return nil
	}
	f, err := formula.Load(cfg.Formula)
	if err != nil {
		return err
	}
	a.formula = f
	a.formulaPath = cfg.Formula
	return nil
}

// channel picks --devel over the configured channel.
func (a *app) channel(devel bool) (formula.Channel, error) {
	if ch := formula.ChannelFor(devel); ch != formula.DefaultChannel {
		return ch, nil
	}
	ch, err := formula.ParseChannel(a.cfg.Channel)
	if err != nil {
		return "", fmt.Errorf("config channel: %w", err)
	}
	return ch, nil
}

func (a *app) runner() *runner.Runner {
	log := logging.Logger("runner")
	return &runner.Runner{
		Formula: a.formula,
		Fetcher: fetch.New(
			fetch.WithRetries(a.cfg.Retries),
			fetch.WithMaxDownloadSize(a.cfg.MaxDownloadSize),
			fetch.WithGitHubToken(a.cfg.GitHubToken),
			fetch.WithLogger(logging.Logr(logging.Logger("fetch"))),
		),
		Installer:   install.New(a.cfg.BinDir, install.WithLockDir(a.cfg.StateDir)),
		Receipts:    receipt.NewStore(a.cfg.ReceiptDir()),
		DownloadDir: a.cfg.DownloadDir(),
		Log:         log,
	}
}
