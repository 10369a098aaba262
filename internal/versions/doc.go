// Package versions maps engine increments to monotonic, human-facing
// version labels and persists them in SQLite.
//
// Engines number history their own way (reverse-delta timestamps,
// content-addressed snapshot IDs); users get a 3-digit label per
// successful backup instead. The store owns database connections,
// schema initialization, the is_latest flip on append, and the
// per-asset last-backup timestamps used to enforce the backup interval
// floor. Treat this package as the single source of truth for version
// semantics; bump schemaVersion when the schema changes.
package versions
