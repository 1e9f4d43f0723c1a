// Package districts ships the state/district reference list the dashboard
// offers in its pickers. The upstream API has no endpoint for enumerating
// districts, so the list is embedded at build time.
package districts

import (
	_ "embed"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed districts.yaml
var raw []byte

type file struct {
	States []struct {
		Name      string   `yaml:"name"`
		Districts []string `yaml:"districts"`
	} `yaml:"states"`
}

var byState map[string][]string

func init() {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		panic(eris.Wrap(err, "districts: parse embedded list"))
	}
	byState = make(map[string][]string, len(f.States))
	for _, s := range f.States {
		byState[strings.ToLower(s.Name)] = s.Districts
	}
}

// States returns the known state names, sorted.
func States() []string {
	out := make([]string, 0, len(byState))
	for s := range byState {
		out = append(out, canonical(s))
	}
	sort.Strings(out)
	return out
}

// List returns the districts of a state. The lookup is case-insensitive; an
// unknown state returns nil.
func List(state string) []string {
	ds := byState[strings.ToLower(strings.TrimSpace(state))]
	if ds == nil {
		return nil
	}
	out := make([]string, len(ds))
	copy(out, ds)
	return out
}

// Known reports whether a state is in the embedded list.
func Known(state string) bool {
	_, ok := byState[strings.ToLower(strings.TrimSpace(state))]
	return ok
}

func canonical(lower string) string {
	words := strings.Fields(lower)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
