// Package workflow drives a bake batch through the pipeline stages.
//
// The Manager creates a batch record, validates the scene against the
// configuration, and runs partition, render, mesh and pack for every bake
// group in turn before the batch-scoped export merges the lightmaps of all
// groups and writes the results. Each stage run goes through stageexec, so
// counters, request ids and failures land in the batch store and the logs
// the same way for every stage.
//
// Add a stage by extending StageSet and the stage list built in NewManager;
// the batch status enum in batchstore carries one processing status per
// stage.
package workflow
