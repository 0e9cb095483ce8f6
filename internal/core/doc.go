// Package core provides the change-detection and incremental-sync engine.
//
// The engine takes freshly read sheets, compares each one with the table
// stored for it, and writes only what changed. It has no I/O of its own:
// stores and backup facilities are passed in through [Store],
// [Snapshotter] and [BackupFacility].
//
// # Pipeline
//
// A sync run flows through five pieces, leaf first:
//
//   - [Normalizer]: canonical column names (lower-case, no accents,
//     separators collapsed to "_") and canonical values (dates as
//     YYYY-MM-DD, amounts with two decimals, trimmed text, empty as null).
//   - [KeySelector]: picks the composite key from the columns both
//     snapshots share, falling back to a shorter list when too few of the
//     preferred columns are present.
//   - [Differ]: splits rows into inserted, deleted and modified by key.
//   - [SummaryBuilder]: runs the Differ for every sheet that is not on the
//     [DenyList], short-circuiting tables that do not exist yet.
//   - [Applier]: backs up each table, then appends inserted rows and
//     replaces modified rows, one transaction per table.
//
// [Service.Run] ties them together and produces a [Report].
//
// # Failure Policy
//
// Failures stay local to one sheet. Unparseable dates and amounts become
// null. A sheet with no usable key is reported with a warning and left
// alone. A store or backup error marks that sheet failed and the run moves
// on. Only an empty input ([ErrNoInput]) or an overlapping run
// ([ErrSyncInProgress]) stops a run before it starts.
//
// # Known Limitations
//
// Duplicate keys within one snapshot multiply in the modified set: every
// new row is paired with every stored row sharing its key. Counts report
// the multiplication; the Applier writes each distinct new row once.
//
// Null and empty text compare equal, so a value that fails to parse on
// one side and is blank on the other is not a change, while a value that
// parses on one side only is.
//
// Deleted rows are reported but never removed from the store.
package core
