// Package providers hosts the per-provider payload normalizers and the
// registry that selects one by provider kind at the ingestion boundary.
// Each normalizer owns the documented status-mapping table for its CI
// system and is a pure function over the raw payload.
package providers
