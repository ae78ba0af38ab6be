// Package webhooks verifies inbound push deliveries and hands their
// payloads to the ingest pipeline. Signature verification always runs
// over the raw request body, before any parsing.
package webhooks
