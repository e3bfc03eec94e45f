package exporter

import (
	"io"
	"text/template"

	"lightmapper/internal/textutil"
)

var scriptTemplate = template.Must(template.New("sync").Parse(`' Lightmap synchronization for {{.Table}}
' Generated by lightmapper, batch {{.BatchID}}. Regenerated on every export.

Sub {{.Prefix}}_SyncLightmap(lightmap, light)
	If light.Intensity > 0 Then
		lightmap.Opacity = 100 * light.GetInPlayIntensity / light.Intensity
	Else
		lightmap.Opacity = 0
	End If
End Sub

Sub {{.Prefix}}_SyncLights()
{{- range .Maps}}
	{{$.Prefix}}_SyncLightmap {{.Lightmap}}, {{.Light}}{{if .Shared}} ' also drives {{.Shared}}{{end}}
{{- end}}
End Sub
`))

type scriptMap struct {
	Lightmap string
	Light    string
	Shared   string
}

type scriptData struct {
	Table   string
	BatchID string
	Prefix  string
	Maps    []scriptMap
}

// writeScript renders the synchronization script. Each lightmap follows
// the first light of its situation; the remaining lights of a grouped
// situation are listed in a trailing comment.
func writeScript(w io.Writer, prefix string, m *Manifest) error {
	data := scriptData{
		Table:   m.Table,
		BatchID: m.BatchID,
		Prefix:  textutil.Identifier(prefix),
	}
	for _, lm := range m.Lightmaps() {
		if len(lm.Lights) == 0 {
			continue
		}
		entry := scriptMap{
			Lightmap: lm.Identifier,
			Light:    textutil.Identifier(lm.Lights[0].Name),
		}
		for i, l := range lm.Lights[1:] {
			if i > 0 {
				entry.Shared += ", "
			}
			entry.Shared += textutil.Identifier(l.Name)
		}
		data.Maps = append(data.Maps, entry)
	}
	return scriptTemplate.Execute(w, data)
}
