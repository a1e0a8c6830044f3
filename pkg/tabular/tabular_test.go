package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osmoslab/taxonet/pkg/graph"
)

func TestReadEdgeList(t *testing.T) {
	input := strings.Join([]string{
		"# inferred by spiec-easi",
		"GG_OTU_1\tGG_OTU_2\t0.5",
		"GG_OTU_2\tGG_OTU_3\t-0.25",
		"GG_OTU_3\tGG_OTU_4",
		"GG_OTU_4",
		"GG_OTU_4\tGG_OTU_5\tnot-a-number",
	}, "\n")

	edges, err := ReadEdgeList(strings.NewReader(input))

	assert.NoError(t, err)
	assert.Len(t, edges, 3)

	assert.Equal(t, graph.Edge{
		Source:  "GG_OTU_1",
		Target:  "GG_OTU_2",
		Weights: []float64{0.5},
	}, edges[0])

	assert.Equal(t, []float64{-0.25}, edges[1].Weights)
	assert.Nil(t, edges[2].Weights)
}

func TestReadTaxonomyTable(t *testing.T) {
	input := strings.Join([]string{
		"OTU\tKingdom\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies",
		"GG_OTU_1\tBacteria\tFirmicutes\tClostridia\tClostridiales\tLachnospiraceae\t\t",
		"GG_OTU_2\tBacteria\tCyanobacteria\tNostocophycideae\tNostocales\tNostocaceae\tDolichospermum\t",
	}, "\n")

	table, err := ReadTaxonomyTable(strings.NewReader(input))

	assert.NoError(t, err)
	assert.Len(t, table, 2)

	assert.Equal(t, "Lachnospiraceae", table["GG_OTU_1"]["Family"])
	assert.Equal(t, "Dolichospermum", table["GG_OTU_2"]["Genus"])

	_, ok := table["GG_OTU_1"]["Genus"]
	assert.False(t, ok, "empty levels should be absent")
}

func TestReadTaxonomyTableIgnoresUnknownColumns(t *testing.T) {
	input := strings.Join([]string{
		"OTU\tConfidence\tGenus",
		"GG_OTU_1\t0.97\tDolichospermum",
	}, "\n")

	table, err := ReadTaxonomyTable(strings.NewReader(input))

	assert.NoError(t, err)
	assert.Equal(t, graph.Taxonomy{"Genus": "Dolichospermum"}, table["GG_OTU_1"])
}

func TestReadAbundanceTable(t *testing.T) {
	input := strings.Join([]string{
		"OTU\ts1\ts2\ts3",
		"GG_OTU_1\t0\t5\t2.5",
		"GG_OTU_2\t1\tNA\t3",
	}, "\n")

	table, err := ReadAbundanceTable(strings.NewReader(input))

	assert.NoError(t, err)
	assert.Equal(t, map[string]float64{"s1": 0, "s2": 5, "s3": 2.5}, table["GG_OTU_1"])
	assert.Equal(t, map[string]float64{"s1": 1, "s3": 3}, table["GG_OTU_2"])
}

func TestReadSampleTable(t *testing.T) {
	input := strings.Join([]string{
		"Sample\tLocation\tpH",
		"s1\tsoil\t6.5",
		"s2\tsediment\t",
		"\torphan\t7.0",
	}, "\n")

	table, err := ReadSampleTable(strings.NewReader(input))

	assert.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, map[string]string{"Location": "soil", "pH": "6.5"}, table["s1"])
	assert.Equal(t, map[string]string{"Location": "sediment"}, table["s2"])
}
