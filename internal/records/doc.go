// Package records stores the durable processing record for each media
// session in a local sqlite database. The store is the source of truth for
// deduplication: Claim is the single entry point through which a run may
// begin, and it guarantees at most one active run per session identifier.
package records
