// Package strategy holds the built-in trading strategies and the
// registry the config layer and API resolve names through.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"niftybt/backtest"
	"niftybt/options"
)

// ErrUnknown is returned by New for a name nothing registered.
var ErrUnknown = errors.New("strategy: unknown strategy")

// Deps carries the shared services a strategy may need. Premiums is
// nil for underlying-only strategies.
type Deps struct {
	Premiums *options.Source
}

// Factory builds a fresh strategy from loosely-typed params, as they
// arrive from YAML config or a JSON API request.
type Factory func(params map[string]any, deps Deps) (backtest.Strategy, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a strategy available by name. Called from init;
// panics on duplicates because that is a programming error.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic("strategy: duplicate registration of " + name)
	}
	factories[name] = f
}

// New resolves a registered name and builds a strategy instance.
func New(name string, params map[string]any, deps Deps) (backtest.Strategy, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return f(params, deps)
}

// Names lists registered strategies, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// decodeParams maps loose params onto a typed struct via a YAML
// round-trip, so one set of struct tags serves config files and API
// payloads alike.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
