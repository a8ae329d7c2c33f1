package formula

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode"
)

// rubyTemplate renders a Homebrew formula. The trailing comments are markers
// the release Makefile substitutes lines by; keep them stable.
const rubyTemplate = `# Some comments are needed for the Makefile to substitute lines, do not remove!
class {{ .Class }} < Formula
  desc {{ quote .Desc }}
  homepage {{ quote .Homepage }}
{{- with .Stable }}
{{ template "platforms" . }}
  version {{ quote .Version }} # The {{ .Marker }} version
{{- end }}
{{- with .Devel }}
  devel do
{{ template "platforms" . }}
    version {{ quote .Version }} # The {{ .Marker }} version
  end
{{- end }}
{{- if .Bottle }}

  bottle :{{ .Bottle }}
{{- end }}

  def install
{{- range $i, $p := .Install }}
    {{ if eq $i 0 }}if{{ else }}elsif{{ end }} {{ $p.Predicate }}
      bin.install {{ quote $p.Asset }}
      mv "#{bin}/{{ $p.Asset }}", "#{bin}/{{ $.Binary }}"
{{- end }}
    end
  end

  test do
    system "#{bin}/{{ .Binary }}", "--version"
  end
end
{{- define "platforms" }}
{{- range $i, $p := .Platforms }}{{ $.Indent }}{{ if eq $i 0 }}if{{ else }}elsif{{ end }} {{ $p.Predicate }}
{{ $.Indent }}  url {{ quote $p.URL }} # The {{ $p.Label }} {{ $p.Marker }} url
{{ $.Indent }}  sha256 {{ quote $p.SHA256 }} # The {{ $p.Label }} {{ $p.Marker }} sha256sum
{{ end }}{{ .Indent }}end
{{- end }}
`

var rubyTmpl = template.Must(template.New("formula").
	Funcs(template.FuncMap{"quote": rubyQuote}).
	Parse(rubyTemplate))

type rubyPlatform struct {
	Predicate string
	Label     string
	Marker    string
	URL       string
	SHA256    string
	Asset     string
}

type rubyRelease struct {
	Indent    string
	Marker    string
	Version   string
	Platforms []rubyPlatform
}

type rubyData struct {
	Class    string
	Desc     string
	Homepage string
	Binary   string
	Bottle   string
	Stable   *rubyRelease
	Devel    *rubyRelease
	Install  []rubyPlatform
}

// RenderRuby writes f as a Homebrew Ruby formula.
// The install step uses the stable release's asset names.
func (f *Formula) RenderRuby(w io.Writer) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	data := rubyData{
		Class:    RubyClassName(f.Name),
		Desc:     f.Desc,
		Homepage: f.Homepage,
		Binary:   f.Binary,
		Bottle:   f.Bottle,
	}
	if rel, ok := f.Releases[Stable]; ok {
		data.Stable = newRubyRelease(rel, "  ", "master")
		data.Install = data.Stable.Platforms
	}
	if rel, ok := f.Releases[Devel]; ok {
		data.Devel = newRubyRelease(rel, "    ", "develop")
	}
	if err := rubyTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render formula: %w", err)
	}
	return nil
}

func newRubyRelease(rel Release, indent, marker string) *rubyRelease {
	out := &rubyRelease{Indent: indent, Marker: marker, Version: rel.Version}
	for _, os := range SupportedOS() {
		a, ok := rel.Artifacts[os]
		if !ok {
			continue
		}
		out.Platforms = append(out.Platforms, rubyPlatform{
			Predicate: rubyPredicate(os),
			Label:     rubyLabel(os),
			Marker:    marker,
			URL:       a.URL,
			SHA256:    a.SHA256,
			Asset:     a.AssetName(),
		})
	}
	return out
}

func rubyPredicate(os OS) string {
	if os == MacOS {
		return "OS.mac?"
	}
	return "OS.linux?"
}

func rubyLabel(os OS) string {
	if os == MacOS {
		return "MacOS"
	}
	return "Linux"
}

// RubyClassName converts a formula name into the Ruby class Homebrew expects.
//
//	mu-cli  -> MuCli
//	foo_bar -> FooBar
func RubyClassName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '-' || r == '_' || r == '.' || r == '@' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rubyQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#{`, `\#{`)
	return `"` + r.Replace(s) + `"`
}
