package core

import "errors"

var (
	// ErrNoInput is returned when a sync run receives no sheets at all.
	// It is the only condition that halts a whole run.
	ErrNoInput = errors.New("no input sheets to sync")

	// ErrTableNotFound is returned by stores when a table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrNoKey marks a comparison where no key column is shared by both snapshots.
	ErrNoKey = errors.New("no usable key columns")

	// ErrSnapshotUnsupported is returned when a store cannot snapshot itself.
	ErrSnapshotUnsupported = errors.New("store snapshot not supported")
)
