package scene

import (
	"fmt"
	"strings"
)

// BakeMode controls projection and merge policy of a bake group.
type BakeMode string

const (
	BakeDefault   BakeMode = "default"
	BakePlayfield BakeMode = "playfield"
	BakeMovable   BakeMode = "movable"
)

// LightMode controls how a light group turns into situations.
type LightMode string

const (
	LightGroupMode LightMode = "group"
	LightSplit     LightMode = "split"
	LightWorld     LightMode = "world"
	LightSolid     LightMode = "solid"
)

// BakeGroup is a named set of objects exported as one mesh.
type BakeGroup struct {
	Name   string
	Mode   BakeMode
	Opaque bool
	// SyncObject names the pivot object of a movable group.
	SyncObject string
}

// LightGroup is a named set of lights defining lighting situations.
type LightGroup struct {
	Name   string
	Mode   LightMode
	Hidden bool
}

// FoldsIntoBase reports whether the group's lights belong to the base pass.
func (g LightGroup) FoldsIntoBase() bool {
	return g.Mode == LightWorld || g.Mode == LightSolid
}

// Validate checks the group definition.
func (g BakeGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("bake group name is required")
	}
	switch g.Mode {
	case BakeDefault, BakePlayfield, BakeMovable:
	default:
		return fmt.Errorf("bake group %q: unknown mode %q", g.Name, g.Mode)
	}
	if g.Mode == BakeMovable && g.SyncObject == "" {
		return fmt.Errorf("bake group %q: movable groups need a sync object", g.Name)
	}
	return nil
}

// Validate checks the group definition.
func (g LightGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("light group name is required")
	}
	switch g.Mode {
	case LightGroupMode, LightSplit, LightWorld, LightSolid:
	default:
		return fmt.Errorf("light group %q: unknown mode %q", g.Name, g.Mode)
	}
	return nil
}
