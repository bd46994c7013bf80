// Package catalog holds the read-only reference data of the network: radio
// technologies, terminal models, subscription tiers and services.
//
// # Overview
//
// A Catalog is an immutable snapshot. Entities are stored in slices owned by the
// snapshot and looked up by id, so a Terminal lists the ids of its technologies
// rather than pointing at them. Subscribers reference terminals and subscriptions
// the same way.
//
// The Store type serves the active snapshot. Reloading swaps the whole snapshot at
// once, so a caller that took a snapshot at the start of an operation sees the same
// entities until the operation ends:
//
//	store := catalog.NewStore(cat)
//	c := store.Current()
//	term, err := c.Terminal("Samsung S42plus")
//
// Catalogs are written in YAML. Default returns the built-in GreenMobil catalog and
// Watch keeps a Store in sync with a file on disk.
package catalog
