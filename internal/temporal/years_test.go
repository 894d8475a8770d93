package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountByYear(t *testing.T) {
	tl, err := CountByYear([]string{"01-03-2019", "15-07-2020", "", " 20-11-2020 ", "02-01-2018"}, "")
	require.NoError(t, err)

	assert.Equal(t, []YearCount{{2018, 1}, {2019, 1}, {2020, 2}}, tl.Years)
	assert.Equal(t, 4, tl.Parsed)
	assert.Equal(t, 1, tl.Skipped)
}

func TestCountByYearRejectsWholeColumnOnBadDate(t *testing.T) {
	_, err := CountByYear([]string{"01-03-2019", "2020-07-15", "20-11-2020"}, DefaultLayout)
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Row)
	assert.Equal(t, "2020-07-15", pe.Value)
	assert.Contains(t, pe.Error(), "2-1-2006")
}

func TestCountByYearMonthDayOrderMatters(t *testing.T) {
	_, err := CountByYear([]string{"12-31-2020"}, DefaultLayout)
	assert.Error(t, err)
}

func TestCountByYearAcceptsUnpaddedDayAndMonth(t *testing.T) {
	tl, err := CountByYear([]string{"1-3-2019", "15-7-2020", "01-03-2019", "5-11-2020"}, DefaultLayout)
	require.NoError(t, err)

	assert.Equal(t, []YearCount{{2019, 2}, {2020, 2}}, tl.Years)
	assert.Equal(t, 4, tl.Parsed)
}
