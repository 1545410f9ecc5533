// Package registry enumerates the available source crawlers. Each crawler
// package registers a factory from its init function, so adding a source
// never requires editing a central list; importing the crawlers package
// is enough. This is the startup-time equivalent of scanning a plugin
// directory.
package registry

import (
	"sort"
	"sync"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/fetch"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Deps are the shared technical dependencies injected into every crawler.
type Deps struct {
	Fetcher  fetch.Fetcher
	Renderer fetch.Renderer
	Detector *fetch.ScriptDetector
	Feeds    *gofeed.Parser
	Clock    techwatch.Clock
	Logger   *zap.Logger
}

// Factory builds one crawler instance from the shared dependencies.
type Factory func(deps Deps) (techwatch.Crawler, error)

type registration struct {
	name    string
	factory Factory
}

var (
	mu         sync.Mutex
	registered []registration
	byName     = map[string]struct{}{}
	collisions []string
)

// Register records a crawler factory under its source name. Meant to be
// called from init. When two factories claim the same source name the
// first registration wins; the collision is reported when Build runs.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := byName[name]; dup {
		collisions = append(collisions, name)
		return
	}
	byName[name] = struct{}{}
	registered = append(registered, registration{name: name, factory: factory})
}

// Build instantiates every registered crawler with the given dependencies.
// A factory that fails is skipped with a warning; one broken source must
// not take discovery down with it.
func Build(deps Deps) map[string]techwatch.Crawler {
	mu.Lock()
	regs := make([]registration, len(registered))
	copy(regs, registered)
	dups := make([]string, len(collisions))
	copy(dups, collisions)
	mu.Unlock()

	for _, name := range dups {
		deps.Logger.Warn("duplicate crawler source name, keeping first registration",
			zap.String("source", name))
	}

	crawlers := make(map[string]techwatch.Crawler, len(regs))
	for _, reg := range regs {
		c, err := reg.factory(deps)
		if err != nil {
			deps.Logger.Warn("skipping crawler that failed to initialize",
				zap.String("source", reg.name), zap.Error(err))
			continue
		}
		if c.SourceName() != reg.name {
			deps.Logger.Warn("crawler source name does not match its registration, keeping registered name",
				zap.String("registered", reg.name), zap.String("reported", c.SourceName()))
		}
		crawlers[reg.name] = c
	}
	return crawlers
}

// Sources returns the registered source names, sorted.
func Sources() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(registered))
	for _, reg := range registered {
		names = append(names, reg.name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all registrations. Only tests use it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registered = nil
	byName = map[string]struct{}{}
	collisions = nil
}
