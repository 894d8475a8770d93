package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulingsCSV = `Rol,Caratulado,Materia,Tipo Recurso,Resultado,Descriptores,Fecha Sentencia
R-1,Comunidad con Minera,Agua,Reclamación,Rechazado,"Daño ambiental, Participación ciudadana",01-03-2019
R-2,Vecinos con Municipalidad,Aire,Casación,Acogido,"Agua, Daño ambiental",15-07-2020
R-3,Fundación con SEA,Agua,Reclamación,NaN,,
R-4,Junta con Empresa,,Casación,Rechazado,<b>Evaluación</b> de impacto,20-11-2020
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentencias.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFillsMissingAndKeepsMarkup(t *testing.T) {
	ds, err := Load(writeCSV(t, rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []string{"Rol", "Caratulado", "Materia", "Tipo Recurso", "Resultado", "Descriptores", "Fecha Sentencia"}, ds.Columns)
	assert.Equal(t, "", ds.Value(2, "Resultado"), "NaN must be filled")
	assert.Equal(t, "<b>Evaluación</b> de impacto", ds.Value(3, "Descriptores"))
	assert.Equal(t, "", ds.Value(0, "Missing"))
	assert.NotEmpty(t, ds.Fingerprint())
}

func TestLoadStripsMarkupWhenEnabled(t *testing.T) {
	ds, err := Load(writeCSV(t, rulingsCSV), LoadOptions{FillMissing: true, StripHTML: true})
	require.NoError(t, err)
	assert.Equal(t, "Evaluación de impacto", ds.Value(3, "Descriptores"))
	assert.Equal(t, "Fundación con SEA", ds.Value(2, "Caratulado"))
}

func TestLoadKeepsNAWithoutFill(t *testing.T) {
	ds, err := Load(writeCSV(t, rulingsCSV), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "NaN", ds.Value(2, "Resultado"))
	assert.Equal(t, "<b>Evaluación</b> de impacto", ds.Value(3, "Descriptores"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), DefaultLoadOptions())
	assert.ErrorIs(t, err, ErrSourceMissing)

	_, err = Load(writeCSV(t, ""), DefaultLoadOptions())
	assert.ErrorIs(t, err, ErrSourceUnparsable)

	_, err = Load(writeCSV(t, "a,b\n1,2,3\n"), DefaultLoadOptions())
	assert.ErrorIs(t, err, ErrSourceUnparsable)

	_, err = Load(writeCSV(t, "a,b\n\"unterminated,2\n"), DefaultLoadOptions())
	assert.ErrorIs(t, err, ErrSourceUnparsable)
}

func TestParsePadsShortRowsAndDedupesHeaders(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader("\ufeffA,A,B\n1\n"), DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A.1", "B"}, ds.Columns)
	assert.Equal(t, Record{"1", "", ""}, ds.Rows[0])
}

func TestFingerprintStable(t *testing.T) {
	a, err := Parse("a", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)
	b, err := Parse("b", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)
	c, err := Parse("c", strings.NewReader(rulingsCSV+"R-5,,,,,,\n"), DefaultLoadOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestResolveSchema(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	s := ResolveSchema(ds)
	assert.Equal(t, "Tipo Recurso", s.ResourceType)
	assert.Equal(t, "Resultado", s.Outcome)
	assert.Equal(t, "Fecha Sentencia", s.Date)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, []string{"Rol", "Caratulado", "Materia", "Resultado", "Tipo Recurso"}, s.DefaultColumns(ds))
	assert.Equal(t, []string{"Rol", "Caratulado", "Materia", "Descriptores"}, s.SearchColumns())
}

func TestResolvePrefersEarlierCandidate(t *testing.T) {
	ds := New("mem", []string{"Tipo", "Tipo_recurso"}, nil)
	name, ok := Resolve(ds, ResourceTypeCandidates...)
	require.True(t, ok)
	assert.Equal(t, "Tipo_recurso", name)
}

func TestSchemaMissingColumnsDegrade(t *testing.T) {
	ds := New("mem", []string{"X", "Y", "Z", "W"}, []Record{{"1", "2", "3", "4"}})
	s := ResolveSchema(ds)

	assert.Empty(t, s.ResourceType)
	assert.NotNil(t, s.WarningFor("resource_type"))
	assert.NotNil(t, s.WarningFor("outcome"))
	assert.Nil(t, s.WarningFor("nope"))
	assert.Equal(t, []string{"X", "Y", "Z"}, s.DefaultColumns(ds))
}

func TestOptions(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	opts, warn := Options(ds, "Materia", "Todos")
	assert.Nil(t, warn)
	assert.Equal(t, []string{"Todos", "Agua", "Aire"}, opts)

	opts, warn = Options(ds, "Resultado", "Todos")
	assert.Nil(t, warn)
	assert.Equal(t, []string{"Todos", "Acogido", "Rechazado"}, opts)
}

func TestOptionsMissingResourceColumn(t *testing.T) {
	ds := New("mem", []string{"Rol", "Materia"}, []Record{{"R-1", "Agua"}})
	col, _ := Resolve(ds, ResourceTypeCandidates...)

	opts, warn := Options(ds, col, "Todos")
	assert.Equal(t, []string{"Todos"}, opts)
	require.NotNil(t, warn)
	assert.Contains(t, warn.Message, "Rol, Materia")
}

func TestDistinctAndValueCounts(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, Distinct(ds, "Materia"))
	assert.Equal(t, 2, Distinct(ds, "Tipo Recurso"))
	assert.Equal(t, 0, Distinct(ds, ""))

	counts := ValueCounts(ds, nil, "Resultado", 10)
	assert.Equal(t, []ValueCount{{"Rechazado", 2}, {"Acogido", 1}}, counts)

	counts = ValueCounts(ds, []int{1, 0}, "Tipo Recurso", 1)
	assert.Equal(t, []ValueCount{{"Casación", 1}}, counts, "ties keep first-seen order")
	assert.Nil(t, ValueCounts(ds, nil, "absent", 10))
}

func TestProject(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	got := ds.Project([]int{1, 0}, []string{"Materia", "Rol", "absent"})
	assert.Equal(t, [][]string{{"Aire", "R-2", ""}, {"Agua", "R-1", ""}}, got)
}

func TestRecord(t *testing.T) {
	ds, err := Parse("mem", strings.NewReader(rulingsCSV), DefaultLoadOptions())
	require.NoError(t, err)

	rec := ds.Record(1)
	assert.Len(t, rec, len(ds.Columns))
	assert.Equal(t, "R-2", rec["Rol"])
	assert.Equal(t, "Acogido", rec["Resultado"])
}
