// Package core contains canonical keyring domain contracts, entities, and
// orchestration logic. Lower-level adapters must depend on this package; core
// must not depend on protocol-specific or transport-specific adapters.
package core
