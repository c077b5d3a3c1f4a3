// Package dictionary loads CAN signal dictionaries and exposes them as
// a queryable registry.
//
// A dictionary source is a file describing messages and their signals:
// either a DBC file (the subset of BO_/SG_/VAL_/BA_ records documented
// on parseDBC) or a YAML file mirroring the same structure. Build
// merges one or more sources into a single Registry, resolving signal
// name collisions either by failing or by prefixing signal names with
// their owning message name.
//
// Registries are immutable after Build. The Cache type provides a
// bounded, LRU-evicting registry cache keyed by the canonicalized
// source list and the namespacing flag; it is owned by the caller, not
// a package global.
package dictionary
