/*
Package keywords holds the relevance keyword lists and category term-sets.

The data is loaded once at startup, from the embedded defaults or from a
user-supplied YAML file with the same layout, and is read-only afterwards.
*/
package keywords

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shanehull/grantwatch/internal/types"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrUnknownCategory = errors.New("unknown category")

type file struct {
	Sources         map[string][]string `yaml:"sources"`
	Categories      map[string][]string `yaml:"categories"`
	BizinfoHashtags []string            `yaml:"bizinfo_hashtags"`
}

type Taxonomy struct {
	sources    map[string][]string
	categories map[types.Category][]string
	hashtags   []string
}

// Default returns the embedded taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded keywords are invalid: %v", err))
	}
	return t
}

// Load reads a taxonomy file. An empty path yields the embedded defaults.
func Load(path string) (*Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid keywords file %s: %w", path, err)
	}
	return t, nil
}

func Parse(data []byte) (*Taxonomy, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	t := &Taxonomy{
		sources:    make(map[string][]string, len(f.Sources)),
		categories: make(map[types.Category][]string, len(types.Categories)),
		hashtags:   clean(f.BizinfoHashtags),
	}
	for name, kws := range f.Sources {
		t.sources[name] = clean(kws)
	}
	for key, terms := range f.Categories {
		c, ok := types.ParseCategory(key)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownCategory, key)
		}
		t.categories[c] = clean(terms)
	}
	return t, nil
}

// Source returns the relevance keywords for a source.
func (t *Taxonomy) Source(name string) []string {
	return append([]string(nil), t.sources[name]...)
}

// Terms returns the term-set of a category.
func (t *Taxonomy) Terms(c types.Category) []string {
	return append([]string(nil), t.categories[c]...)
}

// Hashtags is the server-side tag filter sent to the Bizinfo API.
func (t *Taxonomy) Hashtags() []string {
	return append([]string(nil), t.hashtags...)
}

// SourceNames lists the sources that have keywords, sorted.
func (t *Taxonomy) SourceNames() []string {
	names := make([]string, 0, len(t.sources))
	for name := range t.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clean(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
