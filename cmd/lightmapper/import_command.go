package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lightmapper/internal/scene"
)

type importSummary struct {
	BakeGroups  []scene.BakeGroup  `json:"bake_groups"`
	LightGroups []scene.LightGroup `json:"light_groups"`
	Objects     []objectRow        `json:"objects"`
	Situations  []situationRow     `json:"situations"`
	Unassigned  []string           `json:"unassigned_lights,omitempty"`
}

type objectRow struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	BakeGroup  string `json:"bake_group,omitempty"`
	LightGroup string `json:"light_group,omitempty"`
	Class      string `json:"class,omitempty"`
	Faces      int    `json:"faces"`
}

type situationRow struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Lights []string `json:"lights"`
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import <table>",
		Short: "Read a table description and summarize its bake setup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.loadTable(args[0])
			if err != nil {
				return err
			}
			summary := summarize(store)
			if asJSON {
				return writeJSON(cmd, summary)
			}
			printImportSummary(cmd, summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the summary as JSON")
	return cmd
}

func summarize(store *scene.Store) importSummary {
	summary := importSummary{
		BakeGroups:  store.BakeGroups(),
		LightGroups: store.LightGroups(),
	}
	for _, obj := range store.Objects() {
		faces := 0
		if obj.Mesh != nil {
			faces = obj.Mesh.FaceCount()
		}
		summary.Objects = append(summary.Objects, objectRow{
			ID:         obj.ID,
			Name:       obj.Name,
			Kind:       string(obj.Kind),
			BakeGroup:  obj.BakeGroup,
			LightGroup: obj.LightGroup,
			Class:      string(obj.Class),
			Faces:      faces,
		})
	}
	for _, sit := range store.Situations() {
		summary.Situations = append(summary.Situations, situationRow{ID: sit.ID, Name: sit.Name, Lights: sit.Lights})
	}
	for _, obj := range store.UnassignedLights() {
		summary.Unassigned = append(summary.Unassigned, obj.Name)
	}
	return summary
}

func printImportSummary(cmd *cobra.Command, s importSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bake groups: %d  Light groups: %d  Objects: %d\n", len(s.BakeGroups), len(s.LightGroups), len(s.Objects))

	rows := make([][]string, 0, len(s.Objects))
	for _, o := range s.Objects {
		rows = append(rows, []string{o.ID, o.Name, o.Kind, o.BakeGroup, o.LightGroup, o.Class, strconv.Itoa(o.Faces)})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "Kind", "Bake group", "Light group", "Class", "Faces"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))

	rows = rows[:0]
	for _, sit := range s.Situations {
		rows = append(rows, []string{sit.ID, sit.Name, strconv.Itoa(len(sit.Lights))})
	}
	fmt.Fprintln(out, "Situations:")
	fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Lights"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))

	if len(s.Unassigned) > 0 {
		fmt.Fprintf(out, "Warning: lights without a light group are active in every situation: %s\n", strings.Join(s.Unassigned, ", "))
	}
}
