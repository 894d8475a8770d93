package terms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Daño ambiental, Participación ciudadana,  ,Agua")
	assert.Equal(t, []string{"Daño ambiental", "Participación ciudadana", "Agua"}, got)

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   "))
	assert.Empty(t, Tokenize(" , ,"))
	assert.Equal(t, []string{"solo"}, Tokenize("solo"))
}

func TestCountTopOrdersByCountThenFirstSeen(t *testing.T) {
	table := Count([]string{
		"Agua, Aire",
		"Suelo, Aire",
		"",
		"Agua,Ruido, Aire",
		"agua",
	})

	assert.Equal(t, 5, table.Len())
	assert.Equal(t, 8, table.Total())
	assert.Equal(t, 2, table.Get("Agua"))
	assert.Equal(t, 1, table.Get("agua"), "terms are case-sensitive")
	assert.Equal(t, 0, table.Get("Fuego"))

	assert.Equal(t, []TermCount{
		{"Aire", 3},
		{"Agua", 2},
		{"Suelo", 1},
		{"Ruido", 1},
		{"agua", 1},
	}, table.Top(0))
	assert.Equal(t, []TermCount{{"Aire", 3}, {"Agua", 2}}, table.Top(2))
}

func TestCountIsIdempotent(t *testing.T) {
	cells := []string{"b, a", "a, c", "c, b", "d"}
	first := Count(cells)
	second := Count(cells)

	assert.Equal(t, first.Top(10), second.Top(10))
	assert.Equal(t, first.Top(10), first.Top(10), "Top must not reorder the table")
}
