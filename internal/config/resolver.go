package config

import (
	"slices"
	"strings"
)

// Resolve returns the module IDs from the configuration in load order:
// storage modules first, then everything else, each group sorted. Other
// modules resolve their dependencies through the service registry, but
// storage must exist before anything provisions against it.
func Resolve(cfg *Config) []string {
	var storage, rest []string
	for id := range cfg.Modules {
		if strings.HasPrefix(id, "storage.") {
			storage = append(storage, id)
		} else {
			rest = append(rest, id)
		}
	}
	slices.Sort(storage)
	slices.Sort(rest)
	return append(storage, rest...)
}
