// Package textutil turns table names into file names and script
// identifiers.
//
// Object, group and situation names come straight from the table
// description and may hold spaces, punctuation or non-ASCII letters. The
// exporter needs two stable renderings of them:
//   - lowercase file name tokens for the mesh, atlas and manifest files
//   - TitleCase identifiers that are valid in the generated VBScript
package textutil
