package scene

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jinzhu/copier"

	"lightmapper/internal/camera"
)

// ErrUnknownObject is returned when an object ID is not in the store.
var ErrUnknownObject = errors.New("unknown object")

// Scene is the plain description of a table as produced by an importer.
type Scene struct {
	Camera      camera.Camera
	Playfield   camera.Playfield
	BakeGroups  []BakeGroup
	LightGroups []LightGroup
	Objects     []*Object
}

// Validate checks identifiers and group definitions.
func (sc *Scene) Validate() error {
	if err := sc.Camera.Validate(); err != nil {
		return err
	}
	if err := sc.Playfield.Validate(); err != nil {
		return err
	}
	bakeNames := make(map[string]bool, len(sc.BakeGroups))
	for _, g := range sc.BakeGroups {
		if err := g.Validate(); err != nil {
			return err
		}
		if bakeNames[g.Name] {
			return fmt.Errorf("duplicate bake group %q", g.Name)
		}
		bakeNames[g.Name] = true
	}
	lightNames := make(map[string]bool, len(sc.LightGroups))
	for _, g := range sc.LightGroups {
		if err := g.Validate(); err != nil {
			return err
		}
		if lightNames[g.Name] {
			return fmt.Errorf("duplicate light group %q", g.Name)
		}
		lightNames[g.Name] = true
	}
	ids := make(map[string]bool, len(sc.Objects))
	for _, obj := range sc.Objects {
		if obj == nil || strings.TrimSpace(obj.ID) == "" {
			return errors.New("object id is required")
		}
		if ids[obj.ID] {
			return fmt.Errorf("duplicate object id %q", obj.ID)
		}
		ids[obj.ID] = true
		if obj.Kind != KindMesh && obj.Kind != KindLight {
			return fmt.Errorf("object %q: unknown kind %q", obj.ID, obj.Kind)
		}
		if !obj.Class.Valid() {
			return fmt.Errorf("object %q: unknown class %q", obj.ID, obj.Class)
		}
		for _, attr := range obj.Locked {
			if !slices.Contains(Attributes, attr) {
				return fmt.Errorf("object %q: unknown locked attribute %q", obj.ID, attr)
			}
		}
	}
	for _, g := range sc.BakeGroups {
		if g.Mode == BakeMovable && !ids[g.SyncObject] {
			return fmt.Errorf("bake group %q: sync object %q not found", g.Name, g.SyncObject)
		}
	}
	return nil
}

// ImportReport summarizes a merge.
type ImportReport struct {
	Created  []string
	Updated  []string
	Trashed  []string
	Restored []string
}

// Store is the in-memory object store, indexed by object ID.
type Store struct {
	mu    sync.RWMutex
	scene Scene
	index map[string]*Object
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]*Object)}
}

// Load builds a store from a scene, validating it first.
func Load(sc *Scene) (*Store, error) {
	s := NewStore()
	if _, err := s.Import(sc); err != nil {
		return nil, err
	}
	return s, nil
}

// Import merges an incoming scene into the store. Table-level data (camera,
// playfield, groups) is replaced. Known objects take incoming values except
// for their locked attributes, unknown objects are created, and objects
// absent from the incoming scene move to the trash class.
func (s *Store) Import(incoming *Scene) (ImportReport, error) {
	var report ImportReport
	if incoming == nil {
		return report, errors.New("import: nil scene")
	}
	if err := incoming.Validate(); err != nil {
		return report, fmt.Errorf("import: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scene.Camera = incoming.Camera
	s.scene.Playfield = incoming.Playfield
	s.scene.BakeGroups = slices.Clone(incoming.BakeGroups)
	s.scene.LightGroups = slices.Clone(incoming.LightGroups)

	seen := make(map[string]bool, len(incoming.Objects))
	for _, in := range incoming.Objects {
		seen[in.ID] = true
		existing, ok := s.index[in.ID]
		if !ok {
			obj := in.Clone()
			s.scene.Objects = append(s.scene.Objects, obj)
			s.index[obj.ID] = obj
			report.Created = append(report.Created, obj.ID)
			continue
		}
		wasTrash := existing.Class == ClassTrash
		mergeObject(existing, in)
		if wasTrash && existing.Class != ClassTrash {
			report.Restored = append(report.Restored, existing.ID)
		} else {
			report.Updated = append(report.Updated, existing.ID)
		}
	}
	for _, obj := range s.scene.Objects {
		if seen[obj.ID] || obj.Class == ClassTrash {
			continue
		}
		obj.Class = ClassTrash
		report.Trashed = append(report.Trashed, obj.ID)
	}
	return report, nil
}

func mergeObject(dst, src *Object) {
	dst.Kind = src.Kind
	dst.Declared = src.Declared
	if len(dst.Locked) == 0 {
		dst.Locked = slices.Clone(src.Locked)
	}
	take := func(attr string) bool { return !dst.IsLocked(attr) }
	if take(AttrName) {
		dst.Name = src.Name
	}
	if take(AttrGeometry) {
		dst.Mesh = src.Mesh.Clone()
	}
	if take(AttrMaterial) {
		dst.Material = src.Material
	}
	if take(AttrTransform) {
		dst.Transform = src.Transform
	}
	if take(AttrBakeGroup) {
		dst.BakeGroup = src.BakeGroup
	}
	if take(AttrLightGroup) {
		dst.LightGroup = src.LightGroup
	}
	if take(AttrClass) || dst.Class == ClassTrash {
		dst.Class = src.Class
	}
	if take(AttrLight) {
		dst.Light = nil
		if src.Light != nil {
			l := *src.Light
			dst.Light = &l
		}
	}
}

// Trash moves an object to the trash class.
func (s *Store) Trash(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	obj.Class = ClassTrash
	return nil
}

// Update applies fn to the object and locks the listed attributes so the
// change survives the next import.
func (s *Store) Update(id string, fn func(*Object), lock ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	fn(obj)
	for _, attr := range lock {
		obj.Lock(attr)
	}
	return nil
}

// Get returns the object with the given ID.
func (s *Store) Get(id string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.index[id]
	return obj, ok
}

// Camera returns the bake camera.
func (s *Store) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scene.Camera
}

// Playfield returns the playfield rectangle.
func (s *Store) Playfield() camera.Playfield {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scene.Playfield
}

// BakeGroups returns the bake groups in declaration order.
func (s *Store) BakeGroups() []BakeGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.scene.BakeGroups)
}

// BakeGroup looks up a bake group by name.
func (s *Store) BakeGroup(name string) (BakeGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.scene.BakeGroups {
		if g.Name == name {
			return g, true
		}
	}
	return BakeGroup{}, false
}

// LightGroups returns the light groups in declaration order.
func (s *Store) LightGroups() []LightGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.scene.LightGroups)
}

// Objects returns every object, trash included, in declaration order.
func (s *Store) Objects() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedLocked()
}

// Members returns the bake candidates of a group in declaration order.
func (s *Store) Members(group string) []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Object
	for _, obj := range s.orderedLocked() {
		if obj.BakeGroup == group && obj.Kind == KindMesh && !obj.Excluded() {
			out = append(out, obj)
		}
	}
	return out
}

// Occluders returns every mesh that blocks rays, across all groups.
func (s *Store) Occluders() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Object
	for _, obj := range s.orderedLocked() {
		if obj.Occluder() {
			out = append(out, obj)
		}
	}
	return out
}

// GroupsOf returns the bake groups holding any of the given objects.
func (s *Store) GroupsOf(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range ids {
		obj, ok := s.index[id]
		if !ok || obj.BakeGroup == "" || slices.Contains(out, obj.BakeGroup) {
			continue
		}
		out = append(out, obj.BakeGroup)
	}
	slices.Sort(out)
	return out
}

// Snapshot returns an independent deep copy of the store.
func (s *Store) Snapshot() (*Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sc Scene
	if err := copier.CopyWithOption(&sc, &s.scene, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("snapshot scene: %w", err)
	}
	out := &Store{scene: sc, index: make(map[string]*Object, len(sc.Objects))}
	for _, obj := range sc.Objects {
		out.index[obj.ID] = obj
	}
	return out, nil
}

func (s *Store) orderedLocked() []*Object {
	out := slices.Clone(s.scene.Objects)
	slices.SortStableFunc(out, func(a, b *Object) int {
		if a.Declared != b.Declared {
			return a.Declared - b.Declared
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
