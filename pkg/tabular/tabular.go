// Package tabular reads the tab-separated input shapes consumed by
// ingestion: weighted edge lists, taxonomy tables and sample-metadata
// tables. Malformed rows are logged and skipped so one bad line never sinks
// a whole file.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/osmoslab/taxonet/pkg/graph"
)

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	return reader
}

// ReadEdgeList parses `source\ttarget\tweight` lines into edges. The weight
// column is optional per row; rows with fewer than two columns or an
// unparseable weight are skipped with a warning.
func ReadEdgeList(r io.Reader) ([]graph.Edge, error) {
	reader := newReader(r)
	var edges []graph.Edge
	line := 0

	for {
		record, err := reader.Read()

		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			log.Warn("skipping malformed edge-list row", "line", line, "error", err)
			continue
		}

		if len(record) < 2 || record[0] == "" || record[1] == "" {
			log.Warn("skipping edge-list row without two endpoints", "line", line)
			continue
		}

		edge := graph.Edge{Source: record[0], Target: record[1]}

		if len(record) > 2 && record[2] != "" {
			weight, err := strconv.ParseFloat(record[2], 64)

			if err != nil {
				log.Warn("skipping edge-list row with bad weight",
					"line", line, "weight", record[2])
				continue
			}

			edge.Weights = []float64{weight}
		}

		edges = append(edges, edge)
	}

	return edges, nil
}

// ReadTaxonomyTable parses a taxonomy table whose header names the rank of
// each column. The first column keys the taxon; columns that do not match a
// known rank are ignored.
func ReadTaxonomyTable(r io.Reader) (map[string]graph.Taxonomy, error) {
	reader := newReader(r)
	header, err := reader.Read()

	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy header: %w", err)
	}

	ranks := make([]string, len(header))

	for i, column := range header {
		for _, rank := range graph.Ranks {
			if strings.EqualFold(strings.TrimSpace(column), rank) {
				ranks[i] = rank
			}
		}
	}

	out := make(map[string]graph.Taxonomy)
	line := 1

	for {
		record, err := reader.Read()

		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			log.Warn("skipping malformed taxonomy row", "line", line, "error", err)
			continue
		}

		if len(record) == 0 || record[0] == "" {
			log.Warn("skipping taxonomy row without a taxon id", "line", line)
			continue
		}

		taxonomy := make(graph.Taxonomy)

		for i := 1; i < len(record) && i < len(ranks); i++ {
			if ranks[i] != "" && record[i] != "" {
				taxonomy[ranks[i]] = record[i]
			}
		}

		out[record[0]] = taxonomy
	}

	return out, nil
}

// ReadAbundanceTable parses a taxon-by-sample count matrix. The first column
// keys the taxon; every other header cell names a sample. Cells that do not
// parse as numbers are skipped.
func ReadAbundanceTable(r io.Reader) (map[string]map[string]float64, error) {
	reader := newReader(r)
	header, err := reader.Read()

	if err != nil {
		return nil, fmt.Errorf("failed to read abundance header: %w", err)
	}

	out := make(map[string]map[string]float64)
	line := 1

	for {
		record, err := reader.Read()

		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			log.Warn("skipping malformed abundance row", "line", line, "error", err)
			continue
		}

		if len(record) == 0 || record[0] == "" {
			log.Warn("skipping abundance row without a taxon id", "line", line)
			continue
		}

		counts := make(map[string]float64)

		for i := 1; i < len(record) && i < len(header); i++ {
			if header[i] == "" || record[i] == "" {
				continue
			}

			count, err := strconv.ParseFloat(record[i], 64)

			if err != nil {
				log.Warn("skipping abundance cell with bad count",
					"line", line, "sample", header[i], "count", record[i])
				continue
			}

			counts[header[i]] = count
		}

		out[record[0]] = counts
	}

	return out, nil
}

// ReadSampleTable parses a sample-metadata table. The first column keys the
// sample; every other header cell names a metadata variable.
func ReadSampleTable(r io.Reader) (map[string]map[string]string, error) {
	reader := newReader(r)
	header, err := reader.Read()

	if err != nil {
		return nil, fmt.Errorf("failed to read sample header: %w", err)
	}

	out := make(map[string]map[string]string)
	line := 1

	for {
		record, err := reader.Read()

		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			log.Warn("skipping malformed sample row", "line", line, "error", err)
			continue
		}

		if len(record) == 0 || record[0] == "" {
			log.Warn("skipping sample row without a sample id", "line", line)
			continue
		}

		metadata := make(map[string]string)

		for i := 1; i < len(record) && i < len(header); i++ {
			if header[i] != "" && record[i] != "" {
				metadata[header[i]] = record[i]
			}
		}

		out[record[0]] = metadata
	}

	return out, nil
}
