package dataset

import (
	"fmt"
	"strings"
)

// Fixed column names of the rulings table.
const (
	ColumnID          = "Rol"
	ColumnTitle       = "Caratulado"
	ColumnCategory    = "Materia"
	ColumnDescriptors = "Descriptores"
)

// Candidate names for columns that were renamed across dataset revisions,
// in probe order.
var (
	ResourceTypeCandidates = []string{"Tipo recurso", "Tipo Recurso", "Tipo_recurso", "TipoRecurso", "Tipo"}
	OutcomeCandidates      = []string{"Resultado Recurso", "Resultado_recurso", "ResultadoRecurso", "Resultado"}
	DateCandidates         = []string{"Fecha Sentencia", "Fecha sentencia", "Fecha_sentencia", "FechaSentencia", "Fecha"}
)

// Warning is a non-fatal degradation surfaced to the user.
type Warning struct {
	Feature string `json:"feature"`
	Message string `json:"message"`
}

// Resolve returns the first candidate present in ds.
func Resolve(ds *Dataset, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if ds.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Schema binds the logical columns of a ruling to the headers of a
// particular dataset. Empty names mean the column is absent.
type Schema struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	ResourceType string `json:"resource_type"`
	Outcome      string `json:"outcome"`
	Descriptors  string `json:"descriptors"`
	Date         string `json:"date"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// ResolveSchema binds every logical column and records a warning for each
// one that could not be found. It never fails.
func ResolveSchema(ds *Dataset) Schema {
	var s Schema
	bind := func(feature, label string, candidates ...string) string {
		name, ok := Resolve(ds, candidates...)
		if !ok {
			s.Warnings = append(s.Warnings, Warning{
				Feature: feature,
				Message: fmt.Sprintf("Columna de %s no encontrada (probadas: %s)", label, strings.Join(candidates, ", ")),
			})
		}
		return name
	}

	s.ID = bind("id", "rol", ColumnID)
	s.Title = bind("title", "caratulado", ColumnTitle)
	s.Category = bind("category", "materia", ColumnCategory)
	s.ResourceType = bind("resource_type", "tipo de recurso", ResourceTypeCandidates...)
	s.Outcome = bind("outcome", "resultado", OutcomeCandidates...)
	s.Descriptors = bind("descriptors", "descriptores", ColumnDescriptors)
	s.Date = bind("date", "fecha de sentencia", DateCandidates...)
	return s
}

// WarningFor returns the warning recorded for feature, if any.
func (s Schema) WarningFor(feature string) *Warning {
	for i := range s.Warnings {
		if s.Warnings[i].Feature == feature {
			return &s.Warnings[i]
		}
	}
	return nil
}

// DefaultColumns are the grid columns shown before the user picks any:
// the bound fixed columns, or the first three of the table.
func (s Schema) DefaultColumns(ds *Dataset) []string {
	var cols []string
	for _, c := range []string{s.ID, s.Title, s.Category, s.Outcome, s.ResourceType} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		n := len(ds.Columns)
		if n > 3 {
			n = 3
		}
		cols = append(cols, ds.Columns[:n]...)
	}
	return cols
}

// SearchColumns are the columns listed by advanced search results.
func (s Schema) SearchColumns() []string {
	var cols []string
	for _, c := range []string{s.ID, s.Title, s.Category, s.Descriptors} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
