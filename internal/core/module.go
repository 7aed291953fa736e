// Package core provides the module system threadline is assembled from:
// a global registry of module constructors, the provisioning lifecycle and
// a shared service table modules use to find each other.
package core

import "strings"

// ModuleID identifies a module. IDs are namespaced with dots, for example
// "backend.openai" or "store.redis".
type ModuleID string

// Namespace returns the part before the first dot ("store" for
// "store.redis"), or "" when the ID has none.
func (id ModuleID) Namespace() string {
	ns, _, ok := strings.Cut(string(id), ".")
	if !ok {
		return ""
	}
	return ns
}

// Name returns the part after the namespace ("redis" for "store.redis").
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registrable module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every registrable module.
type Module interface {
	ModuleInfo() ModuleInfo
}
