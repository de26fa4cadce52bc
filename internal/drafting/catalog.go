package drafting

import (
	"fmt"
	"sort"
)

// Catalog stores draft providers with deterministic ordering.
type Catalog struct {
	providers map[string]Provider
	ordered   []string
}

// NewCatalog creates a deterministic provider catalog. order, when non-empty,
// fixes the fallback order; providers it does not name follow sorted by id.
func NewCatalog(providers []Provider, order ...string) (Catalog, error) {
	catalog := Catalog{providers: make(map[string]Provider, len(providers))}
	for _, provider := range providers {
		if provider == nil {
			return Catalog{}, fmt.Errorf("provider cannot be nil")
		}
		id := provider.ID()
		if id == "" {
			return Catalog{}, fmt.Errorf("provider_id is required")
		}
		if _, exists := catalog.providers[id]; exists {
			return Catalog{}, fmt.Errorf("duplicate provider_id %q", id)
		}
		catalog.providers[id] = provider
	}

	seen := make(map[string]struct{}, len(providers))
	for _, id := range order {
		if _, ok := catalog.providers[id]; !ok {
			return Catalog{}, fmt.Errorf("provider order names unregistered provider %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		catalog.ordered = append(catalog.ordered, id)
	}
	rest := make([]string, 0, len(providers))
	for id := range catalog.providers {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	catalog.ordered = append(catalog.ordered, rest...)
	return catalog, nil
}

// Provider returns a single provider by id.
func (c Catalog) Provider(id string) (Provider, bool) {
	provider, ok := c.providers[id]
	return provider, ok
}

// ProviderIDs returns provider ids in fallback order.
func (c Catalog) ProviderIDs() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Candidates returns providers in fallback order with preferred first when set.
func (c Catalog) Candidates(preferred string, maxProviders int) ([]Provider, error) {
	if len(c.ordered) == 0 {
		return nil, ErrNoProviders
	}
	if maxProviders < 1 {
		maxProviders = 5
	}

	selected := make([]string, 0, len(c.ordered))
	seen := make(map[string]struct{}, len(c.ordered))
	if preferred != "" {
		if _, exists := c.providers[preferred]; !exists {
			return nil, fmt.Errorf("preferred provider %q is not registered", preferred)
		}
		selected = append(selected, preferred)
		seen[preferred] = struct{}{}
	}
	for _, id := range c.ordered {
		if len(selected) >= maxProviders {
			break
		}
		if _, exists := seen[id]; exists {
			continue
		}
		selected = append(selected, id)
	}

	out := make([]Provider, 0, len(selected))
	for _, id := range selected {
		out = append(out, c.providers[id])
	}
	return out, nil
}
