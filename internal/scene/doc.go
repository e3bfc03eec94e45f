// Package scene owns the object model of a table: scene objects, bake groups,
// light groups and the lighting situations derived from them.
//
// The Store is the single owner of objects. Importers hand it a freshly
// parsed Scene and the store merges it into the existing state so that
// attributes the user locked survive a re-import and objects that vanished
// from the source are moved to the trash class instead of being destroyed.
package scene
