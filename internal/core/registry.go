package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// registry holds module constructors keyed by ID. Backends, stores and
// surfaces all register here from init and are instantiated on demand by
// App.LoadModules.
var registry = struct {
	sync.RWMutex
	byID map[ModuleID]ModuleInfo
}{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module constructor. It panics on an empty or
// un-namespaced ID, a nil constructor, or a duplicate ID, since these are
// programming errors in an init function.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.ID.Namespace() == "" || info.ID.Name() == "":
		panic(fmt.Sprintf("core: module ID %q must be of the form namespace.name", info.ID))
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule returns the registered module with the given ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module ordered by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one kind, e.g. "store"
// yields store.redis and store.sqlite, ordered by ID.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(id ModuleID) bool { return id.Namespace() == namespace })
}

// InNamespace reports whether id names a registered module of the given
// namespace.
func InNamespace(id, namespace string) bool {
	info, ok := GetModule(id)
	return ok && info.ID.Namespace() == namespace
}

func collect(keep func(ModuleID) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var out []ModuleInfo
	for id, info := range registry.byID {
		if keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
