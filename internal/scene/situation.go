package scene

import "fmt"

// BaseSituationID identifies the environment pass.
const BaseSituationID = "environment"

// BaseSituationName is the display name of the environment pass.
const BaseSituationName = "Environment"

// Situation is one independently rendered lighting configuration.
type Situation struct {
	ID         string
	Name       string
	LightGroup string
	// Lights lists the emitter IDs active in this situation, unassigned
	// emitters excluded.
	Lights []string
	IsBase bool
}

// Situations derives the lighting situations of the scene. The base
// situation comes first and carries the world and solid group lights; each
// group-mode light group adds one situation and each split-mode group adds
// one per light, in declaration order. Hidden light groups produce nothing.
func (s *Store) Situations() []Situation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := Situation{ID: BaseSituationID, Name: BaseSituationName, IsBase: true}
	var out []Situation
	for _, lg := range s.scene.LightGroups {
		if lg.Hidden {
			continue
		}
		lights := s.emittersLocked(lg.Name)
		switch {
		case lg.FoldsIntoBase():
			base.Lights = append(base.Lights, lights...)
		case lg.Mode == LightSplit:
			for _, id := range lights {
				obj := s.index[id]
				out = append(out, Situation{
					ID:         lg.Name + "/" + id,
					Name:       fmt.Sprintf("%s - %s", lg.Name, obj.Name),
					LightGroup: lg.Name,
					Lights:     []string{id},
				})
			}
		default:
			out = append(out, Situation{
				ID:         lg.Name,
				Name:       lg.Name,
				LightGroup: lg.Name,
				Lights:     lights,
			})
		}
	}
	return append([]Situation{base}, out...)
}

// Situation looks up a situation by ID.
func (s *Store) Situation(id string) (Situation, bool) {
	for _, sit := range s.Situations() {
		if sit.ID == id {
			return sit, true
		}
	}
	return Situation{}, false
}

// UnassignedLights returns the emitters that belong to no known light group.
// They are active in every render.
func (s *Store) UnassignedLights() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	known := make(map[string]bool, len(s.scene.LightGroups))
	for _, lg := range s.scene.LightGroups {
		known[lg.Name] = true
	}
	var out []*Object
	for _, obj := range s.orderedLocked() {
		if obj.IsEmitter() && !known[obj.LightGroup] {
			out = append(out, obj)
		}
	}
	return out
}

func (s *Store) emittersLocked(group string) []string {
	var ids []string
	for _, obj := range s.orderedLocked() {
		if obj.IsEmitter() && obj.LightGroup == group {
			ids = append(ids, obj.ID)
		}
	}
	return ids
}
