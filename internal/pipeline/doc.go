// Package pipeline provides the stage handlers the workflow manager drives:
// partition, render, mesh and pack run once per bake group, export runs
// once per batch after every group has been packed.
//
// Handlers read their inputs from a stage.Job and store their results back
// on it; they hold no state between jobs beyond their configuration.
package pipeline
