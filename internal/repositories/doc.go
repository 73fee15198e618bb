// Package repositories implements SQLite persistence for the pipeline's lookup tables.
//
// Key Implementations:
//   - [FormatRuleRepository] : destination key templates keyed by landing endpoint
//   - [DataContractRepository] : raw-to-staging allow-list keyed by top-level key segment
//
// Both tables are read on every triggered invocation and written only by out-of-band loads.
package repositories
