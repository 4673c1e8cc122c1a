// Package pricing holds the static per-provider, per-model price table used to
// cost provider calls.
package pricing

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultPrices []byte

// Rate is the price of one model. Token prices are per million tokens.
type Rate struct {
	Input    float64 `yaml:"input"`
	Output   float64 `yaml:"output"`
	PerQuery float64 `yaml:"per_query"`
}

// Table maps provider name to model id to Rate.
type Table struct {
	rates map[string]map[string]Rate
}

// Default returns the embedded price table.
func Default() *Table {
	t, err := Parse(defaultPrices)
	if err != nil {
		panic(eris.Wrap(err, "pricing: embedded table"))
	}
	return t
}

// Parse decodes a YAML price table.
func Parse(data []byte) (*Table, error) {
	var rates map[string]map[string]Rate
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return nil, eris.Wrap(err, "pricing: parse table")
	}
	t := &Table{rates: make(map[string]map[string]Rate, len(rates))}
	for provider, models := range rates {
		for model, r := range models {
			if r.Input < 0 || r.Output < 0 || r.PerQuery < 0 {
				return nil, eris.Errorf("pricing: %s/%s: negative price", provider, model)
			}
			t.set(provider, model, r)
		}
	}
	return t, nil
}

// Load returns the default table overlaid with the entries of path. An empty
// path returns the default table.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pricing: read %s", path)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for provider, models := range override.rates {
		for model, r := range models {
			t.set(provider, model, r)
		}
	}
	return t, nil
}

func (t *Table) set(provider, model string, r Rate) {
	p := strings.ToLower(provider)
	if t.rates[p] == nil {
		t.rates[p] = make(map[string]Rate)
	}
	t.rates[p][strings.ToLower(model)] = r
}

// Lookup returns the rate for a provider model. Dated model ids such as
// "gpt-4o-2024-08-06" fall back to the longest listed prefix.
func (t *Table) Lookup(provider, model string) (Rate, bool) {
	if t == nil {
		return Rate{}, false
	}
	models := t.rates[strings.ToLower(provider)]
	if models == nil {
		return Rate{}, false
	}
	m := strings.ToLower(model)
	if r, ok := models[m]; ok {
		return r, true
	}
	best := ""
	for id := range models {
		if strings.HasPrefix(m, id+"-") && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return Rate{}, false
	}
	return models[best], true
}

// Cost computes the price of one call. Unknown models cost 0.
func (t *Table) Cost(provider, model string, tokensIn, tokensOut int) float64 {
	r, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	cost := r.PerQuery
	cost += float64(max(tokensIn, 0)) / 1e6 * r.Input
	cost += float64(max(tokensOut, 0)) / 1e6 * r.Output
	return cost
}
