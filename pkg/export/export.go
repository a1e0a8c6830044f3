// Package export reconstitutes stored subgraphs into portable attributed
// multigraphs and serializes them as GraphML. One graph is produced per
// requested Network or Set.
package export

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/stat"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/setops"
	"github.com/osmoslab/taxonet/pkg/stores/s3"
)

// Graph is one attributed multigraph ready for serialization. Attribute
// values are strings throughout because the target interchange format has
// no list-valued attributes.
type Graph struct {
	Name  string
	Nodes []Node
	Edges []MultiEdge
}

// Node is one taxon endpoint with its taxonomy ranks and properties
// flattened to string attributes.
type Node struct {
	ID    string
	Attrs map[string]string
}

// MultiEdge is one association. Weight is the mean of all recorded weights;
// the full list is preserved in Weights.
type MultiEdge struct {
	Source         string
	Target         string
	SourceNetworks []string
	Weight         float64
	Weights        []float64
}

type Exporter struct {
	store graph.Store
}

func New(store graph.Store) *Exporter {
	return &Exporter{store: store}
}

// Subgraph rebuilds one attributed graph per requested network or set name.
// With no names given, every Network in the store is exported.
func (exp *Exporter) Subgraph(ctx context.Context, names []string) ([]*Graph, error) {
	if len(names) == 0 {
		result, err := exp.store.ExecCypher(
			ctx, "MATCH (n:Network) RETURN n.name", nil,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to list networks: %w", err)
		}

		for _, row := range result.Rows {
			if name, ok := row.String(0); ok {
				names = append(names, name)
			}
		}
	}

	graphs := make([]*Graph, 0, len(names))

	for _, name := range names {
		g, err := exp.build(ctx, name)

		if err != nil {
			return nil, err
		}

		graphs = append(graphs, g)
	}

	return graphs, nil
}

func (exp *Exporter) build(ctx context.Context, name string) (*Graph, error) {
	result, err := exp.store.ExecCypher(
		ctx,
		"MATCH (n:Association)-[:"+graph.RelInNetwork+"|"+graph.RelInSet+"]->(b {name: $name}) "+
			"WHERE b:Network OR b:Set RETURN DISTINCT n.name",
		map[string]any{"name": name},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to collect associations of %s: %w", name, err)
	}

	out := &Graph{Name: name}
	seen := make(map[string]bool)

	for _, row := range result.Rows {
		id, ok := row.String(0)

		if !ok {
			continue
		}

		edge, err := setops.ResolveAssociation(ctx, exp.store, id)

		if err != nil {
			log.Warn("skipping association with unresolvable endpoints",
				"association", id, "error", err)
			continue
		}

		multi := MultiEdge{
			Source:         edge.Source,
			Target:         edge.Target,
			SourceNetworks: edge.Networks,
			Weights:        edge.Weights,
		}

		if len(edge.Weights) > 0 {
			multi.Weight = stat.Mean(edge.Weights, nil)
		}

		out.Edges = append(out.Edges, multi)

		for _, taxon := range []string{edge.Source, edge.Target} {
			if seen[taxon] {
				continue
			}

			seen[taxon] = true
			attrs, err := exp.nodeAttrs(ctx, taxon)

			if err != nil {
				return nil, err
			}

			out.Nodes = append(out.Nodes, Node{ID: taxon, Attrs: attrs})
		}
	}

	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].Source != out.Edges[j].Source {
			return out.Edges[i].Source < out.Edges[j].Source
		}

		return out.Edges[i].Target < out.Edges[j].Target
	})

	return out, nil
}

// nodeAttrs flattens a taxon's taxonomy ranks and attached properties into
// string attributes. Multiple property values of one type join with commas.
func (exp *Exporter) nodeAttrs(ctx context.Context, taxon string) (map[string]string, error) {
	attrs := make(map[string]string)

	rankFilter := make([]string, 0, len(graph.Ranks))

	for _, rank := range graph.Ranks {
		rankFilter = append(rankFilter, "r:"+rank)
	}

	result, err := exp.store.ExecCypher(
		ctx,
		"MATCH (t {name: $taxon})-->(r) WHERE "+strings.Join(rankFilter, " OR ")+
			" RETURN labels(r)[0], r.name",
		map[string]any{"taxon": taxon},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to collect taxonomy of %s: %w", taxon, err)
	}

	for _, row := range result.Rows {
		rank, _ := row.String(0)
		name, _ := row.String(1)

		if rank != "" && name != "" {
			attrs[rank] = name
		}
	}

	result, err = exp.store.ExecCypher(
		ctx,
		"MATCH (t {name: $taxon})-[:"+graph.RelHasProperty+"]->(p:Property) "+
			"RETURN p.type, p.name",
		map[string]any{"taxon": taxon},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to collect properties of %s: %w", taxon, err)
	}

	for _, row := range result.Rows {
		propertyType, _ := row.String(0)
		value, _ := row.String(1)

		if propertyType == "" || value == "" {
			continue
		}

		if existing, ok := attrs[propertyType]; ok {
			attrs[propertyType] = existing + "," + value
		} else {
			attrs[propertyType] = value
		}
	}

	return attrs, nil
}

// Upload serializes the graphs and pushes the document to an object store
// bucket under the given key.
func Upload(
	ctx context.Context, conn *s3.Conn, bucket, key string, graphs ...*Graph,
) error {
	var buf strings.Builder

	if err := WriteGraphML(&buf, graphs...); err != nil {
		return err
	}

	if err := conn.EnsureBucket(ctx, bucket); err != nil {
		return err
	}

	body := strings.NewReader(buf.String())
	return conn.Put(ctx, bucket, key, body, int64(buf.Len()), "application/xml")
}

func formatWeights(weights []float64) string {
	parts := make([]string, 0, len(weights))

	for _, w := range weights {
		parts = append(parts, strconv.FormatFloat(w, 'g', -1, 64))
	}

	return strings.Join(parts, ",")
}
