// Package catalog provides SQLite-backed bookkeeping for the sample corpus.
//
// Tables:
//   - labels: one row per gesture class; class_idx is assigned densely from 0
//     in registration order and never reused
//   - samples: one row per stored sample file, keyed by its sample_id
//   - exports: one row per export run, successful or not
//
// The catalog is a record of what was captured and exported. The sample
// files themselves stay authoritative: the export pipeline never reads the
// catalog.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package catalog
