// Package materials provides the course materials repository used by the
// portal: a Store contract for named blobs partitioned into categories, and
// a Service that enforces per-category upload policy on top of it.
//
// Stores are addressed by (category, name) only. The presentation layer never
// sees internal identifiers, so names are unique within a category and must be
// safe to use as a single path segment. Implementations (memory, filesystem,
// S3, MinIO) live under the storage subpackages and are checked against the
// shared storagetest suite.
package materials
