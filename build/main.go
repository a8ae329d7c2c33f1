// Command build holds the repository's own maintenance tasks.
//
//	go run ./build -h
//	go run ./build formula
package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/goyek/goyek/v3"
	"github.com/goyek/x/boot"
	"github.com/rs/zerolog"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/fetch"
	"github.com/stelligent/mu-formula/internal/runner"
)

// rubyFormula is the file the Homebrew tap publishes.
var rubyFormula = filepath.Join("homebrew", "mu-cli.rb")

var lint = goyek.Define(goyek.Task{
	Name:  "lint",
	Usage: "validate the embedded formula",
	Action: func(a *goyek.A) {
		f := formula.Default()
		if err := f.Validate(); err != nil {
			a.Fatal(err)
		}
		for _, w := range f.Lint() {
			a.Log("warning: " + w)
		}
	},
})

var render = goyek.Define(goyek.Task{
	Name:  "formula",
	Usage: "render " + rubyFormula + " from the embedded formula",
	Deps:  goyek.Deps{lint},
	Action: func(a *goyek.A) {
		var buf bytes.Buffer
		if err := formula.Default().RenderRuby(&buf); err != nil {
			a.Fatalf("render: %v", err)
		}
		if old, err := os.ReadFile(rubyFormula); err == nil && bytes.Equal(old, buf.Bytes()) {
			a.Log("up to date")
			return
		}
		if err := os.MkdirAll(filepath.Dir(rubyFormula), 0o755); err != nil {
			a.Fatal(err)
		}
		if err := os.WriteFile(rubyFormula, buf.Bytes(), 0o644); err != nil {
			a.Fatalf("write %s: %v", rubyFormula, err)
		}
		a.Logf("wrote %s", rubyFormula)
	},
})

var verify = goyek.Define(goyek.Task{
	Name:  "verify",
	Usage: "check every recorded sha256 against the published assets",
	Action: func(a *goyek.A) {
		r := &runner.Runner{
			Formula: formula.Default(),
			Fetcher: fetch.New(fetch.WithGitHubToken(os.Getenv("GITHUB_TOKEN"))),
			Log:     zerolog.Nop(),
		}
		checks, err := r.VerifyAll(a.Context())
		for _, c := range checks {
			status := "ok"
			if !c.OK() {
				status = "FAIL"
			}
			a.Logf("%s/%s %s %s", c.Channel, c.OS, status, c.URL)
		}
		if err != nil {
			a.Fatal(err)
		}
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "go test -race ./...",
	Action: func(a *goyek.A) {
		cmd := exec.CommandContext(a.Context(), "go", "test", "-race", "./...")
		cmd.Stdout = a.Output()
		cmd.Stderr = a.Output()
		if err := cmd.Run(); err != nil {
			a.Fatalf("go test: %v", err)
		}
	},
})

var all = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "lint, test and render the formula",
	Deps:  goyek.Deps{lint, test, render},
})

func main() {
	goyek.SetDefault(all)
	boot.Main()
}
