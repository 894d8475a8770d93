package dashboard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulings-explorer/backend/internal/dataset"
	"github.com/rulings-explorer/backend/internal/filter"
)

const rulings = `Rol,Caratulado,Materia,Tipo recurso,Resultado Recurso,Descriptores,Fecha Sentencia
R-1,"Comunidad, Minera",Agua,Reclamación,Rechazado,"Daño ambiental, Participación ciudadana",01-03-2019
R-2,Vecinos con Municipio,Aire,Casación,Acogido,"Agua, Daño ambiental",15-07-2020
R-3,Fundación con SEA,Agua,Reclamación,Acogido,"Sistema de Evaluación de Impacto Ambiental, Agua",
R-4,"Junta ""Norte"" con Empresa",Suelo,Casación,Rechazado,,20-11-2020
R-5,Pescadores con Estado,Agua,Casación,Rechazado,"participación ciudadana,  , Agua",02-02-2021
`

func newEngine(t *testing.T, csv string, opt Options) *Engine {
	t.Helper()
	ds, err := dataset.Parse("mem.csv", strings.NewReader(csv), dataset.DefaultLoadOptions())
	require.NoError(t, err)
	return NewEngine(ds, opt)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]int
	gets int
	fail bool
}

func (m *memCache) GetRows(_ context.Context, key string) ([]int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.fail {
		return nil, false, errors.New("down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) SetRows(_ context.Context, key string, rows []int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("down")
	}
	if m.data == nil {
		m.data = map[string][]int{}
	}
	m.data[key] = rows
	return nil
}

func TestSummaryCountersAndCharts(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	ctx := context.Background()

	v := e.Summary(ctx, filter.State{Category: "Agua"})
	assert.Equal(t, Counters{Total: 5, Filtered: 3, Categories: 3, ResourceTypes: 2}, v.Counters)
	assert.Equal(t, []dataset.ValueCount{{Value: "Agua", Count: 3}, {Value: "Aire", Count: 1}, {Value: "Suelo", Count: 1}}, v.TopCategories.Bars)
	assert.Equal(t, []dataset.ValueCount{{Value: "Rechazado", Count: 3}, {Value: "Acogido", Count: 2}}, v.TopOutcomes.Bars)
	assert.Equal(t, 3, v.TopCategories.Max())

	assert.Equal(t, []string{"Rol", "Caratulado", "Materia", "Resultado Recurso", "Tipo recurso"}, v.Preview.Columns)
	assert.Len(t, v.Preview.Rows, 3)
	assert.Equal(t, "R-1", v.Preview.Rows[0][0])
	assert.Empty(t, v.Warnings)
}

func TestSummaryAllSentinelMatchesDataset(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	v := e.Summary(context.Background(), filter.State{Category: "Todos", ResourceType: "Todos", Outcome: "Todos"})
	assert.Equal(t, 5, v.Counters.Filtered)
	assert.True(t, v.State.IsZero())
}

func TestSummaryEmptyResult(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	v := e.Summary(context.Background(), filter.State{Search: "minería submarina"})
	assert.Equal(t, 0, v.Counters.Filtered)
	assert.True(t, v.Preview.Empty)
	assert.Equal(t, msgNoMatches, v.Preview.Message)
}

func TestOptionsDegradeWithoutResourceColumn(t *testing.T) {
	e := newEngine(t, "Rol,Materia,Resultado,Descriptores\nR-1,Agua,Acogido,x\nR-2,Aire,Rechazado,y\n", Options{})

	o := e.Options()
	assert.Equal(t, []string{"Todos"}, o.ResourceTypes)
	assert.Equal(t, []string{"Todos", "Agua", "Aire"}, o.Categories)
	assert.Equal(t, []string{"Todos", "Acogido", "Rechazado"}, o.Outcomes)
	assert.Empty(t, o.ResourceColumn)
	assert.Len(t, o.Warnings, 1)

	// A resource-type selection is a no-op when the column is absent.
	v := e.Summary(context.Background(), filter.State{ResourceType: "Casación"})
	assert.Equal(t, 2, v.Counters.Filtered)
	assert.Equal(t, 0, v.Counters.ResourceTypes)
	assert.NotNil(t, e.Schema().WarningFor("resource_type"))
}

func TestRecordsPaginationAndColumns(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	ctx := context.Background()

	g, err := e.Records(ctx, filter.State{}, []string{"Rol", "Materia"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, g.TotalRows)
	assert.Equal(t, 3, g.TotalPages)
	assert.Equal(t, 2, g.Page)
	assert.Equal(t, [][]string{{"R-3", "Agua"}, {"R-4", "Suelo"}}, g.Rows)

	g, err = e.Records(ctx, filter.State{}, []string{"Rol"}, 99, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Page)
	assert.Equal(t, [][]string{{"R-5"}}, g.Rows)

	g, err = e.Records(ctx, filter.State{}, nil, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, e.Schema().DefaultColumns(e.Dataset()), g.Columns)

	_, err = e.Records(ctx, filter.State{}, []string{}, 1, 10)
	assert.ErrorIs(t, err, ErrNoColumns)
	_, err = e.Records(ctx, filter.State{}, []string{"Nope"}, 1, 10)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	g, err = e.Records(ctx, filter.State{Outcome: "Anulado"}, nil, 1, 10)
	require.NoError(t, err)
	assert.True(t, g.Empty)
	assert.Equal(t, msgNoMatches, g.Message)
}

func TestExportRoundTrips(t *testing.T) {
	const source = rulings + `R-6,Uso de &lt;b&gt; marcas,Agua,Casación,Rechazado,"<i>Agua</i>, Riego",NA
`
	e := newEngine(t, source, Options{})
	ctx := context.Background()
	state := filter.State{Outcome: "Rechazado"}
	cols := []string{"Rol", "Caratulado", "Descriptores", "Fecha Sentencia"}

	var buf bytes.Buffer
	n, err := e.Export(ctx, &buf, state, cols)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	reloaded, err := dataset.Parse(ExportFileName, bytes.NewReader(buf.Bytes()), dataset.DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, cols, reloaded.Columns)

	want := e.Dataset().Project(e.Filtered(ctx, state), cols)
	got := reloaded.Project(reloaded.AllRows(), cols)
	assert.Equal(t, want, got)
	assert.Equal(t, `Junta "Norte" con Empresa`, got[1][1])
	assert.Equal(t, []string{"R-6", "Uso de &lt;b&gt; marcas", "<i>Agua</i>, Riego", ""}, got[3])
}

func TestExportEmptySelectionWritesHeaderOnly(t *testing.T) {
	e := newEngine(t, rulings, Options{})

	var buf bytes.Buffer
	n, err := e.Export(context.Background(), &buf, filter.State{Category: "Fuego"}, []string{"Rol", "Materia"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "Rol,Materia\n", buf.String())
}

func TestTermsSplitAndChart(t *testing.T) {
	e := newEngine(t, rulings, Options{ChartTerms: 2})

	v := e.Terms(10)
	assert.Equal(t, 10, v.N)
	assert.Equal(t, []RankedTerm{
		{1, "Agua", 3},
		{2, "Daño ambiental", 2},
		{3, "Participación ciudadana", 1},
		{4, "Sistema de Evaluación de Impacto Ambiental", 1},
		{5, "participación ciudadana", 1},
	}, v.Left)
	assert.Empty(t, v.Right)
	assert.Len(t, v.Chart, 2)

	v = e.Terms(4)
	assert.Equal(t, 10, v.N, "clamped to the minimum")

	assert.Same(t, e.TermTable(), e.TermTable())
}

func TestTermsWithoutDescriptors(t *testing.T) {
	e := newEngine(t, "Rol,Materia\nR-1,Agua\n", Options{})
	v := e.Terms(20)
	assert.Equal(t, msgNoDescriptors, v.Warning)
	assert.Empty(t, v.Left)
	assert.Nil(t, e.TermTable())
}

func TestClampTopTerms(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	assert.Equal(t, 20, e.ClampTopTerms(0))
	assert.Equal(t, 10, e.ClampTopTerms(3))
	assert.Equal(t, 50, e.ClampTopTerms(500))
	assert.Equal(t, 33, e.ClampTopTerms(33))
}

func TestAdvancedSearch(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	ctx := context.Background()

	v := e.AdvancedSearch(ctx, filter.ParseTerms("agua\nPARTICIPACIÓN\n"))
	assert.Equal(t, []string{"agua", "PARTICIPACIÓN"}, v.Terms)
	assert.Equal(t, 1, v.Found)
	assert.Equal(t, []string{"Rol", "Caratulado", "Materia", "Descriptores"}, v.Grid.Columns)
	assert.Equal(t, "R-5", v.Grid.Rows[0][0])

	v = e.AdvancedSearch(ctx, []string{"inexistente"})
	assert.Zero(t, v.Found)
	assert.True(t, v.Grid.Empty)

	v = e.AdvancedSearch(ctx, []string{"  "})
	assert.Empty(t, v.Terms)
	assert.Zero(t, v.Found)
}

func TestAdvancedSearchCapsTermCount(t *testing.T) {
	e := newEngine(t, rulings, Options{MaxSearchTerms: 2})
	ctx := context.Background()
	assert.Equal(t, 2, e.MaxSearchTerms())

	v := e.AdvancedSearch(ctx, []string{"agua", "participación"})
	assert.Empty(t, v.Warning)
	assert.Equal(t, 1, v.Found)

	v = e.AdvancedSearch(ctx, []string{"agua", "participación", "daño"})
	assert.Contains(t, v.Warning, "máximo 2")
	assert.Zero(t, v.Found)
	assert.True(t, v.Grid.Empty)

	assert.Equal(t, 20, newEngine(t, rulings, Options{}).MaxSearchTerms())
}

func TestTimeline(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	v := e.Timeline()
	require.Empty(t, v.Warning)
	assert.Equal(t, "Fecha Sentencia", v.Column)
	assert.Len(t, v.Years, 3)
	assert.Equal(t, 2019, v.Years[0].Year)

	bad := newEngine(t, "Rol,Fecha Sentencia\nR-1,01-03-2019\nR-2,2020/07/15\n", Options{})
	v = bad.Timeline()
	assert.Contains(t, v.Warning, "2020/07/15")
	assert.Empty(t, v.Years)

	none := newEngine(t, "Rol\nR-1\n", Options{})
	assert.NotEmpty(t, none.Timeline().Warning)
}

func TestInfo(t *testing.T) {
	e := newEngine(t, rulings, Options{})
	info := e.Info()
	assert.Equal(t, 5, info.Rows)
	assert.Len(t, info.Head, 3)
	assert.Equal(t, "mem.csv", info.Source)
	assert.Equal(t, e.Dataset().Fingerprint(), info.Fingerprint)
}

func TestFilteredUsesSharedCache(t *testing.T) {
	shared := &memCache{}
	ds, err := dataset.Parse("mem.csv", strings.NewReader(rulings), dataset.DefaultLoadOptions())
	require.NoError(t, err)

	first := NewEngine(ds, Options{Cache: shared})
	rows := first.Filtered(context.Background(), filter.State{Category: "Agua"})
	assert.Equal(t, []int{0, 2, 4}, rows)
	assert.Len(t, shared.data, 1)

	// A second replica over the same content hits the shared cache.
	second := NewEngine(ds, Options{Cache: shared})
	for k := range shared.data {
		shared.data[k] = []int{4}
	}
	assert.Equal(t, []int{4}, second.Filtered(context.Background(), filter.State{Category: "Agua"}))
}

func TestFilteredToleratesSharedCacheFailure(t *testing.T) {
	shared := &memCache{fail: true}
	e := newEngine(t, rulings, Options{Cache: shared})

	rows := e.Filtered(context.Background(), filter.State{Category: "Agua"})
	assert.Equal(t, []int{0, 2, 4}, rows)
	rows = e.Filtered(context.Background(), filter.State{Category: "Agua"})
	assert.Equal(t, []int{0, 2, 4}, rows)
	assert.Equal(t, 1, shared.gets, "second lookup served by the memo")
}
