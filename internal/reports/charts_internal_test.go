package reports

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChart_SharesCoverTruncatedSlices(t *testing.T) {
	slices := make([]slice, 12)
	for i := range slices {
		slices[i] = slice{name: fmt.Sprintf("p%02d", i), value: 100}
	}

	c := newChart("ARS", slices)
	require.Len(t, c.Data, maxChartEntries)
	require.Len(t, c.Legend, maxChartEntries)
	assert.Equal(t, "8.3% p00", c.Legend[0].Name)
	assert.Equal(t, "8.3% p09", c.Legend[9].Name)
}

func TestNewChart_ZeroTotal(t *testing.T) {
	c := newChart("BRL", []slice{{name: "sales", value: 0}})
	require.Len(t, c.Legend, 1)
	assert.Equal(t, "0.0% sales", c.Legend[0].Name)
}
