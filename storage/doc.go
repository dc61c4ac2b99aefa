// Package storage provides record blob storage with pluggable backends for
// the dev backbone server.
//
// Record blobs are keyed by backbone record ID within a RecordKind namespace
// (tokens, files, templates) across multiple backends:
//
//   - File system storage for local development and testing
//   - S3-compatible storage for cloud deployments
//   - IPFS node storage for decentralized deployments
//   - Vault KV v2 storage for secret-grade records
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Examples:
//
//   - file:///var/lib/idmesh/records/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://ipfs.example.com:5001/idmesh-records
//   - vault://token@vault.example.com:8200/secret/backbone
//
// # Record Envelopes
//
// Stored blobs are RecordEnvelope values. Password-protected records keep
// their payload sealed under the shared password (argon2id key derivation,
// ChaCha20-Poly1305); opening with a wrong password is indistinguishable from
// a missing record.
//
// # Multi-Backend Redundancy
//
// MultiStorageBackend aggregates several backends: stores go to every
// available backend, fetches return the first hit.
package storage
