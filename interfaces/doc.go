// Package interfaces defines core interfaces and types for the reference
// resolution system, separating contracts from implementations.
//
// # Domain Types
//
// ContentReference: the parsed form of a compact, shareable reference,
// carrying a namespace-typed object ID, a secret key, an optional identity
// suffix and optional password protection metadata.
//
// AccountContext: a read-only snapshot of a local account record.
//
// AccountItem / ResolvedObject: tagged unions for retrieval results and the
// terminal output of dispatch.
//
// # Capabilities
//
// Every external effect the resolution core performs goes through an injected
// capability: ReferenceParser, AnonymousTokenService, SessionProvider,
// AccountStore, and the interactive UIBridge (password prompt, account
// selection, file and onboarding handoffs). This keeps the dispatcher and
// retrieval loop deterministic and testable with substitutable fakes.
//
// # Storage
//
// StorageBackend stores backbone record blobs for the dev backbone server,
// keyed by record ID within a RecordKind namespace, across file, S3, IPFS and
// Vault backends.
//
// # Errors
//
// Failures are typed ResolutionError values with stable machine-readable
// codes, comparable with errors.Is and able to carry underlying causes.
package interfaces
