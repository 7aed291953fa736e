package config

import (
	"cmp"
	"slices"
	"strings"
)

// providerNamespaces are loaded before every other module, in this order,
// because the session is built from them before outer surfaces start.
var providerNamespaces = []string{"backend", "store"}

// Resolve returns the module IDs from the configuration in load order:
// backends, then stores, then everything else, each group sorted by ID.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

// Split partitions ordered IDs into provider modules (backends and stores)
// and the remaining modules, preserving order.
func Split(ids []string) (providers, others []string) {
	for _, id := range ids {
		if rank(id) < len(providerNamespaces) {
			providers = append(providers, id)
		} else {
			others = append(others, id)
		}
	}
	return providers, others
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if i := slices.Index(providerNamespaces, ns); i >= 0 {
		return i
	}
	return len(providerNamespaces)
}
