// Package metastats tests taxa against sample metadata and persists
// significant results as shortcut edges: HYPERGEOM for categorical
// variables, SPEARMAN for continuous ones. No multiple-testing correction
// is applied; this is a hypothesis-generating step and downstream users are
// expected to correct as appropriate.
package metastats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/metrics"
	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

// Config bounds one association run. NullValue marks metadata entries that
// encode "missing" and must not be classified.
type Config struct {
	Alpha     float64
	NullValue string
}

func (cfg Config) Validate() error {
	val := valgo.Is(valgo.Number(cfg.Alpha, "alpha").GreaterThan(0).LessThan(1))

	if !val.Valid() {
		return val.Error()
	}

	return nil
}

type Associator struct {
	store graph.Store
	cfg   Config
}

func New(store graph.Store, cfg Config) (*Associator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metastats config: %w", err)
	}

	return &Associator{store: store, cfg: cfg}, nil
}

// AssociateSamples tests every taxon (and every agglomerated taxon) that
// participates in at least one association against the requested
// sample-property names. A failing taxon is logged and skipped.
func (assoc *Associator) AssociateSamples(
	ctx context.Context, properties []string,
) error {
	for _, agglom := range []bool{false, true} {
		label := graph.LabelTaxon

		if agglom {
			label = graph.LabelAgglomTaxon
		}

		result, err := assoc.store.ExecCypher(
			ctx,
			"MATCH (n:"+label+")--(:Association) RETURN DISTINCT n.name",
			nil,
		)

		if err != nil {
			return fmt.Errorf("failed to list %s nodes: %w", label, err)
		}

		for _, row := range result.Rows {
			taxon, ok := row.String(0)

			if !ok {
				continue
			}

			if err := assoc.AssociateTaxon(ctx, taxon, agglom, properties); err != nil {
				log.Warn("skipping metadata association",
					"taxon", taxon, "error", err)
			}
		}
	}

	return nil
}

// AssociateTaxon classifies the sample properties reachable from one taxon
// as continuous or categorical and runs the matching test for each.
func (assoc *Associator) AssociateTaxon(
	ctx context.Context, taxon string, agglom bool, properties []string,
) error {
	cypher := "MATCH (:Taxon {name: $taxon})-->(:Sample)-->(n:Property) " +
		"WHERE n.type IN $types RETURN n.type, n.name"

	if agglom {
		cypher = "MATCH (:AgglomTaxon {name: $taxon})-[:" + graph.RelGeneratedFrom +
			"]->(:Taxon)-->(:Sample)-->(n:Property) " +
			"WHERE n.type IN $types RETURN n.type, n.name"
	}

	result, err := assoc.store.ExecCypher(ctx, cypher, map[string]any{
		"taxon": taxon,
		"types": properties,
	})

	if err != nil {
		return fmt.Errorf("failed to collect sample properties: %w", err)
	}

	continuous := make(map[string]bool)

	type category struct {
		propertyType string
		value        string
	}

	categorical := make(map[category]bool)

	for _, row := range result.Rows {
		propertyType, _ := row.String(0)
		value, _ := row.String(1)

		if value == assoc.cfg.NullValue {
			continue
		}

		if _, err := strconv.ParseFloat(value, 64); err == nil {
			continuous[propertyType] = true
		} else {
			categorical[category{propertyType: propertyType, value: value}] = true
		}
	}

	for categ := range categorical {
		if err := assoc.testCategorical(ctx, taxon, agglom, categ.propertyType, categ.value); err != nil {
			log.Warn("hypergeometric test failed",
				"taxon", taxon, "property", categ.propertyType, "error", err)
		}
	}

	for propertyType := range continuous {
		if err := assoc.testContinuous(ctx, taxon, agglom, propertyType); err != nil {
			log.Warn("spearman test failed",
				"taxon", taxon, "property", propertyType, "error", err)
		}
	}

	return nil
}

// testCategorical runs a presence/absence hypergeometric test: how likely is
// the taxon's share of samples in this category under random draws? A
// cumulative probability under alpha earns a HYPERGEOM shortcut edge.
func (assoc *Associator) testCategorical(
	ctx context.Context, taxon string, agglom bool, propertyType, value string,
) error {
	taxonMatch := "MATCH (:Taxon {name: $taxon})-[:" + graph.RelFoundIn + "]->(s:Sample)"

	if agglom {
		taxonMatch = "MATCH (:AgglomTaxon {name: $taxon})-[:" + graph.RelGeneratedFrom +
			"]->(:Taxon)-[:" + graph.RelFoundIn + "]->(s:Sample)"
	}

	results, err := assoc.store.Commit(ctx, []neo4j.Statement{
		{
			Cypher: "MATCH (s:Sample)-[:" + graph.RelHasProperty + "]->(:Property {type: $type}) " +
				"RETURN count(DISTINCT s)",
			Params: map[string]any{"type": propertyType},
		},
		{
			Cypher: "MATCH (s:Sample)-[:" + graph.RelHasProperty + "]->(:Property {type: $type, name: $value}) " +
				"RETURN count(DISTINCT s)",
			Params: map[string]any{"type": propertyType, "value": value},
		},
		{
			Cypher: taxonMatch + "-[:" + graph.RelHasProperty + "]->(:Property {type: $type}) " +
				"RETURN count(DISTINCT s)",
			Params: map[string]any{"taxon": taxon, "type": propertyType},
		},
		{
			Cypher: taxonMatch + "-[:" + graph.RelHasProperty + "]->(:Property {type: $type, name: $value}) " +
				"RETURN count(DISTINCT s)",
			Params: map[string]any{"taxon": taxon, "type": propertyType, "value": value},
		},
	})

	if err != nil {
		return err
	}

	if len(results) < 4 {
		return fmt.Errorf("incomplete count results")
	}

	totalPop := firstInt(results[0])
	successPop := firstInt(results[1])
	totalTaxon := firstInt(results[2])
	successTaxon := firstInt(results[3])

	// A taxon absent from every typed sample, or a property nobody carries,
	// produces no edge rather than an error.
	if totalPop == 0 || successPop == 0 || totalTaxon == 0 {
		metrics.StatTests.WithLabelValues("hypergeom", "skipped").Inc()
		return nil
	}

	prob := HypergeomCDF(successTaxon, totalPop, successPop, totalTaxon)

	if prob >= assoc.cfg.Alpha {
		metrics.StatTests.WithLabelValues("hypergeom", "insignificant").Inc()
		return nil
	}

	metrics.StatTests.WithLabelValues("hypergeom", "significant").Inc()

	label := taxonLabel(agglom)
	_, err = assoc.store.ExecCypher(
		ctx,
		"MATCH (a:"+label+" {name: $taxon}), (b:Property {type: $type, name: $value}) "+
			"CREATE (a)-[r:"+graph.RelHypergeom+"]->(b) SET r.correlation = $prob",
		map[string]any{
			"taxon": taxon,
			"type":  propertyType,
			"value": value,
			"prob":  prob,
		},
	)

	return err
}

// testContinuous correlates the taxon's per-sample observation counts (zero
// when absent) with the numeric property values across the same samples. A
// significant correlation earns a fresh Property node and a SPEARMAN edge.
func (assoc *Associator) testContinuous(
	ctx context.Context, taxon string, agglom bool, propertyType string,
) error {
	result, err := assoc.store.ExecCypher(
		ctx,
		"MATCH (s:Sample)-[:"+graph.RelHasProperty+"]->(p:Property {type: $type}) "+
			"RETURN s.name, p.name",
		map[string]any{"type": propertyType},
	)

	if err != nil {
		return err
	}

	var (
		sampleNames  []string
		sampleValues []float64
	)

	seen := make(map[string]bool)

	for _, row := range result.Rows {
		sample, _ := row.String(0)
		raw, _ := row.String(1)

		if seen[sample] {
			continue
		}

		value, err := strconv.ParseFloat(raw, 64)

		if err != nil {
			continue
		}

		seen[sample] = true
		sampleNames = append(sampleNames, sample)
		sampleValues = append(sampleValues, value)
	}

	taxonValues := make([]float64, 0, len(sampleNames))

	for _, sample := range sampleNames {
		count, err := assoc.observationCount(ctx, taxon, agglom, sample)

		if err != nil {
			return err
		}

		taxonValues = append(taxonValues, count)
	}

	spearman, ok := Spearman(taxonValues, sampleValues)

	if !ok {
		metrics.StatTests.WithLabelValues("spearman", "skipped").Inc()
		return nil
	}

	if spearman.PValue >= assoc.cfg.Alpha {
		metrics.StatTests.WithLabelValues("spearman", "insignificant").Inc()
		return nil
	}

	metrics.StatTests.WithLabelValues("spearman", "significant").Inc()

	label := taxonLabel(agglom)
	_, err = assoc.store.ExecCypher(
		ctx,
		"MATCH (a:"+label+" {name: $taxon}) "+
			"CREATE (a)-[r:"+graph.RelSpearman+"]->(b:Property {name: $type, correlation: $rho}) "+
			"SET r.correlation = $rho",
		map[string]any{"taxon": taxon, "type": propertyType, "rho": spearman.Rho},
	)

	return err
}

func (assoc *Associator) observationCount(
	ctx context.Context, taxon string, agglom bool, sample string,
) (float64, error) {
	cypher := "MATCH (:Taxon {name: $taxon})-[r:" + graph.RelFoundIn +
		"]->(:Sample {name: $sample}) RETURN r.count"

	if agglom {
		cypher = "MATCH (:AgglomTaxon {name: $taxon})-[:" + graph.RelGeneratedFrom +
			"]->(:Taxon)-[r:" + graph.RelFoundIn +
			"]->(:Sample {name: $sample}) RETURN r.count"
	}

	result, err := assoc.store.ExecCypher(ctx, cypher, map[string]any{
		"taxon":  taxon,
		"sample": sample,
	})

	if err != nil {
		return 0, err
	}

	// Agglomerated taxa sum the counts of all their members.
	total := 0.0

	for _, row := range result.Rows {
		if raw, ok := row.String(0); ok {
			if count, err := strconv.ParseFloat(raw, 64); err == nil {
				total += count
			}

			continue
		}

		if count, ok := row.Float(0); ok {
			total += count
		}
	}

	return total, nil
}

func taxonLabel(agglom bool) string {
	if agglom {
		return graph.LabelAgglomTaxon
	}

	return graph.LabelTaxon
}

func firstInt(result *neo4j.Result) int {
	if result == nil || len(result.Rows) == 0 {
		return 0
	}

	f, _ := result.Rows[0].Float(0)
	return int(f)
}
