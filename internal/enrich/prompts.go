package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/residence-finder/internal/model"
)

// schemaField is one property of a response schema.
type schemaField struct {
	Name        string
	Type        string
	Description string
	Properties  []schemaField
}

// responseSchema describes the JSON object a prompt must answer with.
type responseSchema struct {
	Fields []schemaField
}

func (s responseSchema) required() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

func fieldsToJSONSchema(fields []schemaField) map[string]any {
	props := make(map[string]any, len(fields))
	req := make([]string, len(fields))
	for i, f := range fields {
		p := map[string]any{"type": f.Type}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Properties) > 0 {
			for k, v := range fieldsToJSONSchema(f.Properties) {
				p[k] = v
			}
		}
		props[f.Name] = p
		req[i] = f.Name
	}
	return map[string]any{"type": "object", "properties": props, "required": req}
}

// systemPrompt renders the schema as response instructions.
func (s responseSchema) systemPrompt() string {
	schema, _ := json.MarshalIndent(fieldsToJSONSchema(s.Fields), "", "  ")
	var b strings.Builder
	b.WriteString("Eres un asistente que responde exclusivamente con un objeto JSON válido, ")
	b.WriteString("sin texto adicional ni bloques de código.\n")
	b.WriteString("El objeto debe cumplir este esquema JSON:\n")
	b.Write(schema)
	return b.String()
}

var summarySchema = responseSchema{Fields: []schemaField{
	{Name: "summary", Type: "string", Description: "resumen conciso y objetivo en español de no más de 100 palabras"},
	{Name: "services", Type: "integer", Description: "puntuación del 1 al 5 para los servicios"},
	{Name: "opinions", Type: "integer", Description: "puntuación del 1 al 5 para las opiniones"},
}}

var distanceFields = []schemaField{
	{Name: "distancia", Type: "string", Description: "distancia en coche, p. ej. \"12 km\""},
	{Name: "tiempo", Type: "string", Description: "tiempo estimado de viaje, p. ej. \"18 minutos\""},
}

var distancesSchema = responseSchema{Fields: []schemaField{
	{Name: "casa1", Type: "object", Properties: distanceFields},
	{Name: "casa2", Type: "object", Properties: distanceFields},
}}

func summaryPrompt(r model.Residence) string {
	return fmt.Sprintf("Busca en internet información y un resumen de opiniones sobre la residencia de mayores '%s' "+
		"ubicada en '%s'. Analiza los servicios que ofrece, la calidad de las instalaciones y el feedback de los "+
		"residentes o sus familias. Devuelve exclusivamente un objeto JSON válido con la siguiente estructura: "+
		`{"summary": "un resumen conciso y objetivo en español de no más de 100 palabras", `+
		`"services": una puntuación numérica entera del 1 al 5 para los servicios, `+
		`"opinions": una puntuación numérica entera del 1 al 5 para las opiniones}. `+
		"No incluyas información de contacto.", r.Name, r.Address)
}

func distancesPrompt(origin model.Coord, refs References) string {
	return fmt.Sprintf("Calcula la distancia en coche en kilómetros y el tiempo estimado de viaje entre el punto "+
		"de origen A (latitud: %g, longitud: %g) y el punto de destino B (latitud: %g, longitud: %g). "+
		"Luego, calcula lo mismo entre el punto de origen A y el punto de destino C (latitud: %g, longitud: %g). "+
		"Devuelve exclusivamente un objeto JSON válido con la siguiente estructura: "+
		`{"casa1": {"distancia": "X km", "tiempo": "Y minutos"}, "casa2": {"distancia": "Z km", "tiempo": "W minutos"}}`,
		origin.Lat(), origin.Lon(),
		refs.Casa1.Lat(), refs.Casa1.Lon(),
		refs.Casa2.Lat(), refs.Casa2.Lon())
}
