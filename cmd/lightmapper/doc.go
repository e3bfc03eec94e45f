// Command lightmapper bakes table descriptions into fixed-view meshes and
// lightmap atlases.
//
// Each pipeline stage can be run on its own (partition, render, mesh, pack)
// or as a full batch with bake. Renders are kept in a content-addressed
// cache between runs; the cache and batch commands inspect and manage that
// state, and watch keeps the cache in step with an edited table.
package main
