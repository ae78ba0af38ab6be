// Package core contains the canonical build-health domain: entities,
// status semantics, contracts, configuration, and the error envelope.
// Lower-level adapters must depend on this package; core must not depend
// on provider-specific or storage-specific adapters.
package core
