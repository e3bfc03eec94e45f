package stage

import (
	"image"

	"lightmapper/internal/atlas"
	"lightmapper/internal/mesh"
	"lightmapper/internal/meshopt"
	"lightmapper/internal/partition"
	"lightmapper/internal/scene"
)

// Names of the pipeline stages in execution order.
const (
	Partition = "partition"
	Render    = "render"
	Mesh      = "mesh"
	Pack      = "pack"
	Export    = "export"
)

// Names lists the stages in execution order.
var Names = []string{Partition, Render, Mesh, Pack, Export}

// Batch is the state shared by every job of one pipeline run.
type Batch struct {
	ID        string
	TablePath string
	Scene     *scene.Store
	// Situations are the lighting situations of the table, base first.
	Situations []scene.Situation
	Jobs       []*Job
	// Outputs lists the files written by the export stage.
	Outputs []string
}

// Job carries one bake group through the pipeline. Each stage reads the
// results of the stages before it and fills in its own. A job without a
// group is batch scoped and only runs the export stage.
type Job struct {
	Batch   *Batch
	Group   scene.BakeGroup
	Members []*scene.Object

	Partitions []partition.Partition
	// Renders maps situation IDs to renders keyed by partition index.
	Renders map[string]map[int]*image.NRGBA64

	Base      *mesh.Mesh
	BaseStats meshopt.Stats
	// Lights maps situation IDs to light meshes; unlit situations are absent.
	Lights map[string]meshopt.LightMesh

	// Atlases maps situation IDs to packed atlases. The base situation
	// holds the solid mesh.
	Atlases map[string]*atlas.Atlas

	// Counters collects the figures recorded with the stage run.
	Counters map[string]int
}

// NewJob returns an empty job for one bake group.
func NewJob(batch *Batch, group scene.BakeGroup, members []*scene.Object) *Job {
	return &Job{
		Batch:    batch,
		Group:    group,
		Members:  members,
		Renders:  make(map[string]map[int]*image.NRGBA64),
		Lights:   make(map[string]meshopt.LightMesh),
		Atlases:  make(map[string]*atlas.Atlas),
		Counters: make(map[string]int),
	}
}

// BatchScoped reports whether the job stands for the whole batch rather
// than one bake group.
func (j *Job) BatchScoped() bool {
	return j.Group.Name == ""
}

// Situations returns the situations of the batch.
func (j *Job) Situations() []scene.Situation {
	if j.Batch == nil {
		return nil
	}
	return j.Batch.Situations
}

// Count records a counter value for the current stage run.
func (j *Job) Count(name string, v int) {
	if j.Counters == nil {
		j.Counters = make(map[string]int)
	}
	j.Counters[name] = v
}

// TakeCounters returns and clears the counters collected so far.
func (j *Job) TakeCounters() map[string]int {
	out := j.Counters
	j.Counters = make(map[string]int)
	return out
}

// LitSituations returns the IDs of the situations that produced a light
// mesh, in situation order.
func (j *Job) LitSituations() []string {
	var out []string
	for _, sit := range j.Situations() {
		if _, ok := j.Lights[sit.ID]; ok {
			out = append(out, sit.ID)
		}
	}
	return out
}
