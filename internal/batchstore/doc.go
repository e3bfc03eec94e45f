// Package batchstore persists bake batch runs in SQLite.
//
// A batch is one invocation of the four-stage pipeline over a table
// description. The Store records the batch lifecycle (status, current stage,
// failure message) and one row per (bake group, stage) execution with its
// counters, so an interrupted batch can be inspected and re-run.
//
// The database is treated as an operational log rather than a cache: render
// outputs live in the render cache, never here. Schema changes bump
// schemaVersion; users delete the database to adopt the new schema.
package batchstore
