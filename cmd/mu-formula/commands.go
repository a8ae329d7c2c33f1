package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/runner"
)

// defaultURLTemplate is where mu publishes release assets.
const defaultURLTemplate = "https://github.com/stelligent/mu/releases/download/{{version}}/mu-{{goos}}-{{arch}}"

// targetFlags are shared by the commands that pick a release.
type targetFlags struct {
	devel bool
	os    string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&t.devel, "devel", false, "use the devel channel instead of stable")
	cmd.Flags().StringVar(&t.os, "os", "", "target OS (macos, linux); default is the host")
}

func (t *targetFlags) options(a *app) (runner.Options, error) {
	ch, err := a.channel(t.devel)
	if err != nil {
		return runner.Options{}, err
	}
	var target formula.OS
	if t.os != "" {
		if target, err = formula.ParseOS(t.os); err != nil {
			return runner.Options{}, err
		}
	}
	return runner.Options{OS: target, Channel: ch}, nil
}

func newResolveCmd(a *app) *cobra.Command {
	var t targetFlags
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the artifact selected for a platform and channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := t.options(a)
			if err != nil {
				return err
			}
			res, err := a.runner().Resolve(opts)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "formula:\t%s\n", res.Formula)
			fmt.Fprintf(w, "channel:\t%s\n", res.Channel)
			fmt.Fprintf(w, "version:\t%s\n", res.Version)
			fmt.Fprintf(w, "os:\t%s\n", res.OS)
			fmt.Fprintf(w, "url:\t%s\n", res.Artifact.URL)
			fmt.Fprintf(w, "sha256:\t%s\n", res.Artifact.SHA256)
			fmt.Fprintf(w, "binary:\t%s\n", res.Binary)
			fmt.Fprintf(w, "host:\t%s/%s\n", formula.HostOS(), formula.HostArch())
			return w.Flush()
		},
	}
	t.register(cmd)
	return cmd
}

func newInstallCmd(a *app) *cobra.Command {
	var (
		t        targetFlags
		force    bool
		skipTest bool
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install mu-cli",
		Long: `Install downloads the mu release for this platform, verifies its sha256,
places it as mu-cli in the bin directory and runs "mu-cli --version".

A failing self-test is reported but the install is kept; pass --strict to
exit non-zero in that case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := t.options(a)
			if err != nil {
				return err
			}
			opts.Force = force
			opts.SkipTest = skipTest
			rep, err := a.runner().Install(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printReport(cmd, rep, strict)
		},
	}
	t.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "reinstall even if the same release is installed")
	cmd.Flags().BoolVar(&skipTest, "skip-test", false, "do not run the self-test after installing")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the self-test fails")
	return cmd
}

func newUpgradeCmd(a *app) *cobra.Command {
	var (
		devel  bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Reinstall mu-cli if the formula points at a different release",
		Long: `Upgrade reinstalls mu-cli when the formula now resolves to a different
artifact than the one recorded at install time.

Unlike install, upgrade ignores the configured channel: it stays on the
channel and OS recorded in the install receipt, so an upgrade never switches
a devel install back to stable. Pass --devel to move to the devel channel,
or run install to pick a channel explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts runner.Options
			if devel {
				opts.Channel = formula.Devel
			}
			rep, err := a.runner().Upgrade(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printReport(cmd, rep, strict)
		},
	}
	cmd.Flags().BoolVar(&devel, "devel", false, "switch to the devel channel")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the self-test fails")
	return cmd
}

func printReport(cmd *cobra.Command, rep runner.Report, strict bool) error {
	out := cmd.OutOrStdout()
	res := rep.Resolved
	if rep.Skipped {
		fmt.Fprintf(out, "%s %s (%s) is already installed at %s\n", res.Formula, res.Version, res.Channel, rep.Path)
		return nil
	}
	fmt.Fprintf(out, "installed %s %s (%s, %s) to %s\n", res.Formula, res.Version, res.Channel, res.OS, rep.Path)
	switch {
	case rep.TestErr != nil && strict:
		return rep.TestErr
	case rep.TestErr != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", rep.TestErr)
	case rep.Version != "":
		fmt.Fprintf(out, "self-test: %s\n", rep.Version)
	}
	return nil
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove mu-cli and its install receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.runner().Uninstall(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s\n", a.formula.Name)
			return nil
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: `Run "mu-cli --version" against the installed binary`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.runner().Test(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Version())
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the formula and what is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.runner().Info()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s:\t%s\n", info.Name, info.Desc)
			fmt.Fprintf(w, "homepage:\t%s\n", info.Homepage)
			for _, ch := range releaseChannels(info.Releases) {
				fmt.Fprintf(w, "%s:\t%s\n", ch, info.Releases[ch])
			}
			if info.Installed == nil {
				fmt.Fprintf(w, "installed:\tno (%s)\n", info.Path)
				return w.Flush()
			}
			rc := info.Installed
			fmt.Fprintf(w, "installed:\t%s (%s, %s) at %s\n", rc.Version, rc.Channel, rc.OS, rc.Path)
			fmt.Fprintf(w, "installed at:\t%s\n", rc.InstalledAt.Format("2006-01-02 15:04:05 MST"))
			if info.Modified {
				fmt.Fprintf(w, "warning:\t%s is missing or changed since install; run install --force\n", rc.Path)
			}
			return w.Flush()
		},
	}
}

func releaseChannels(m map[formula.Channel]string) []formula.Channel {
	chs := make([]formula.Channel, 0, len(m))
	for ch := range m {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool {
		// stable first
		if (chs[i] == formula.Stable) != (chs[j] == formula.Stable) {
			return chs[i] == formula.Stable
		}
		return chs[i] < chs[j]
	})
	return chs
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the formula and report warnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The formula was validated on load.
			warnings := a.formula.Lint()
			for _, w := range warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
			}
			if len(warnings) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", a.formula.Name)
			}
			return nil
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every recorded sha256 against the published asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks, err := a.runner().VerifyAll(cmd.Context())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, c := range checks {
				status := "ok"
				if !c.OK() {
					status = "FAIL"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Channel, c.OS, status, c.URL)
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
			return err
		},
	}
}

func newRenderCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the Homebrew Ruby formula",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" || output == "-" {
				return a.formula.RenderRuby(cmd.OutOrStdout())
			}
			var sb strings.Builder
			if err := a.formula.RenderRuby(&sb); err != nil {
				return err
			}
			if err := os.WriteFile(output, []byte(sb.String()), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.log.Info().Str("path", output).Msg("Rendered formula")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newBumpCmd(a *app) *cobra.Command {
	var (
		urlTemplate string
		arch        string
	)
	cmd := &cobra.Command{
		Use:   "bump <channel> <version>",
		Short: "Cut a release: digest the published assets and update the formula",
		Long: `Bump expands the URL template for each supported OS, downloads the assets,
records their sha256 and replaces the channel's release.

The updated formula is written back to --formula when one is given,
otherwise it is printed to stdout as TOML.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := formula.ParseChannel(args[0])
			if err != nil {
				return err
			}
			rel, err := a.runner().Bump(cmd.Context(), runner.BumpOptions{
				Version:     args[1],
				URLTemplate: urlTemplate,
				Arch:        arch,
			})
			if err != nil {
				return err
			}
			a.formula.SetRelease(ch, rel)
			if err := a.formula.Validate(); err != nil {
				return err
			}
			for _, w := range a.formula.Lint() {
				a.log.Warn().Msg(w)
			}
			if a.formulaPath == "" {
				data, err := a.formula.Marshal(formula.TOML)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := a.formula.Save(a.formulaPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s is now %s\n", a.formulaPath, ch, rel.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&urlTemplate, "url-template", defaultURLTemplate,
		"asset URL; {{version}}, {{os}}, {{goos}} and {{arch}} are expanded")
	cmd.Flags().StringVar(&arch, "arch", "amd64", "architecture of the published assets")
	return cmd
}
