// Package setops computes union, intersection and difference over the
// associations of one or more named networks, reading only from the
// persisted graph. Results are deduplicated edge lists which can optionally
// be persisted as an immutable Set node.
package setops

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

type Engine struct {
	store graph.Store
}

func New(store graph.Store) *Engine {
	return &Engine{store: store}
}

// Union returns every association reachable from any of the given networks,
// or every association in the store when no networks are given.
func (eng *Engine) Union(ctx context.Context, networks []string) ([]graph.Edge, error) {
	var (
		result *neo4j.Result
		err    error
	)

	if len(networks) == 0 {
		result, err = eng.store.ExecCypher(
			ctx, "MATCH (n:Association) RETURN DISTINCT n.name", nil,
		)
	} else {
		result, err = eng.store.ExecCypher(
			ctx,
			"MATCH (n:Association)-[:"+graph.RelInNetwork+"]->(b:Network) "+
				"WHERE b.name IN $names RETURN DISTINCT n.name",
			map[string]any{"names": networks},
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query union: %w", err)
	}

	return eng.resolveAll(ctx, ids(result)), nil
}

// Intersection returns associations present in every one of the given
// networks (all networks in the store when none are given). By default a
// taxon pair whose associations disagree only on weight still intersects,
// as long as the pair's associations jointly cover the full network set;
// with weightSensitive only single same-weight associations qualify.
func (eng *Engine) Intersection(
	ctx context.Context, networks []string, weightSensitive bool,
) ([]graph.Edge, error) {
	if len(networks) == 0 {
		result, err := eng.store.ExecCypher(
			ctx, "MATCH (n:Network) RETURN n.name", nil,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to list networks: %w", err)
		}

		networks = ids(result)
	}

	result, err := eng.store.ExecCypher(
		ctx,
		"MATCH (n:Association)-[:"+graph.RelInNetwork+"]->(b:Network) "+
			"WHERE b.name IN $names "+
			"WITH n, count(DISTINCT b) AS hits WHERE hits = $required "+
			"RETURN DISTINCT n.name",
		map[string]any{"names": networks, "required": len(networks)},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to query intersection: %w", err)
	}

	edges := eng.resolveAll(ctx, ids(result))

	if weightSensitive {
		return sorted(edges), nil
	}

	// Weight-insensitive mode also admits same-pair associations that differ
	// in weight when their combined network memberships cover the set.
	covered := make(map[string]bool, len(edges))

	for _, edge := range edges {
		covered[pairKey(edge.Source, edge.Target)] = true
	}

	result, err = eng.store.ExecCypher(
		ctx,
		"MATCH (n:Association)-[:"+graph.RelInNetwork+"]->(b:Network) "+
			"WHERE b.name IN $names RETURN DISTINCT n.name",
		map[string]any{"names": networks},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to query intersection candidates: %w", err)
	}

	groups := make(map[string]*graph.Edge)

	for _, edge := range eng.resolveAll(ctx, ids(result)) {
		key := pairKey(edge.Source, edge.Target)

		if covered[key] {
			continue
		}

		if group, ok := groups[key]; ok {
			group.Networks = mergeStrings(group.Networks, edge.Networks)
			group.Weights = append(group.Weights, edge.Weights...)
			group.Assocs = append(group.Assocs, edge.Assocs...)
		} else {
			clone := edge
			groups[key] = &clone
		}
	}

	for _, group := range groups {
		if len(group.Assocs) < 2 {
			continue
		}

		if coversAll(group.Networks, networks) {
			edges = append(edges, *group)
		}
	}

	return sorted(edges), nil
}

// Difference returns associations present in exactly one network, restricted
// to the given network when one is named. With weightSensitive, an
// association that has a same-pair counterpart of a different weight
// anywhere in the store is a disagreement, not a difference, and is
// excluded. The counterpart may belong to any network.
func (eng *Engine) Difference(
	ctx context.Context, network string, weightSensitive bool,
) ([]graph.Edge, error) {
	var (
		result *neo4j.Result
		err    error
	)

	if network == "" {
		result, err = eng.store.ExecCypher(
			ctx,
			"MATCH (n:Association)-[r:"+graph.RelInNetwork+"]->(:Network) "+
				"WITH n, count(r) AS num WHERE num = 1 RETURN DISTINCT n.name",
			nil,
		)
	} else {
		result, err = eng.store.ExecCypher(
			ctx,
			"MATCH (n:Association)-[:"+graph.RelInNetwork+"]->(:Network {name: $network}) "+
				"WITH n MATCH (n)-[r:"+graph.RelInNetwork+"]->(:Network) "+
				"WITH n, count(r) AS num WHERE num = 1 RETURN DISTINCT n.name",
			map[string]any{"network": network},
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query difference: %w", err)
	}

	edges := eng.resolveAll(ctx, ids(result))

	if !weightSensitive {
		return sorted(edges), nil
	}

	kept := edges[:0]

	for _, edge := range edges {
		counterpart, err := eng.hasCounterpart(ctx, edge)

		if err != nil {
			log.Warn("could not check counterpart associations",
				"source", edge.Source, "target", edge.Target, "error", err)
			continue
		}

		if !counterpart {
			kept = append(kept, edge)
		}
	}

	return sorted(kept), nil
}

// Persist writes the result of a set operation as a Set node named
// <Operation>_<network1>_<network2>... with IN_SET edges to every member
// association, and returns the generated name.
func (eng *Engine) Persist(
	ctx context.Context, operation string, networks []string, edges []graph.Edge,
) (string, error) {
	name := operation

	if len(networks) > 0 {
		name += "_" + strings.Join(networks, "_")
	}

	statements := []neo4j.Statement{{
		Cypher: "MERGE (s:Set {name: $name}) SET s.operation = $operation, s.networks = $networks",
		Params: map[string]any{"name": name, "operation": operation, "networks": networks},
	}}

	for _, edge := range edges {
		for _, id := range edge.Assocs {
			statements = append(statements, neo4j.Statement{
				Cypher: "MATCH (s:Set {name: $name}), (n:Association {name: $id}) " +
					"MERGE (s)-[:" + graph.RelInSet + "]->(n)",
				Params: map[string]any{"name": name, "id": id},
			})
		}
	}

	if _, err := eng.store.Commit(ctx, statements); err != nil {
		return "", fmt.Errorf("failed to persist set %s: %w", name, err)
	}

	return name, nil
}

// resolveAll turns association ids into edges, silently skipping (with a
// warning) any association whose taxon endpoints cannot be resolved.
func (eng *Engine) resolveAll(ctx context.Context, assocIDs []string) []graph.Edge {
	edges := make([]graph.Edge, 0, len(assocIDs))

	for _, id := range assocIDs {
		edge, err := ResolveAssociation(ctx, eng.store, id)

		if err != nil {
			log.Warn("skipping association with unresolvable endpoints",
				"association", id, "error", err)
			continue
		}

		edges = append(edges, edge)
	}

	return edges
}

func (eng *Engine) hasCounterpart(ctx context.Context, edge graph.Edge) (bool, error) {
	result, err := eng.store.ExecCypher(
		ctx,
		"MATCH (a {name: $source})<-[:"+graph.RelWithTaxon+"]-(o:Association)-[:"+
			graph.RelWithTaxon+"]->(b {name: $target}) "+
			"WHERE NOT o.name IN $ids RETURN o.weight",
		map[string]any{"source": edge.Source, "target": edge.Target, "ids": edge.Assocs},
	)

	if err != nil {
		return false, err
	}

	for _, row := range result.Rows {
		if !equalWeights(row.Floats(0), edge.Weights) {
			return true, nil
		}
	}

	return false, nil
}

// ResolveAssociation reconstructs the edge record of a single Association
// node: its two taxon endpoints, network memberships and weight list.
func ResolveAssociation(
	ctx context.Context, store graph.Store, id string,
) (graph.Edge, error) {
	results, err := store.Commit(ctx, []neo4j.Statement{
		{
			Cypher: "MATCH (m)<-[:" + graph.RelWithTaxon + "]-(:Association {name: $id})-[:" +
				graph.RelWithTaxon + "]->(n) " +
				"WHERE (m:Taxon OR m:AgglomTaxon) AND (n:Taxon OR n:AgglomTaxon) " +
				"RETURN m.name, n.name LIMIT 1",
			Params: map[string]any{"id": id},
		},
		{
			Cypher: "MATCH (:Association {name: $id})-[:" + graph.RelInNetwork +
				"]->(n:Network) RETURN n.name",
			Params: map[string]any{"id": id},
		},
		{
			Cypher: "MATCH (n:Association {name: $id}) RETURN n.weight",
			Params: map[string]any{"id": id},
		},
	})

	if err != nil {
		return graph.Edge{}, err
	}

	if len(results) < 3 || len(results[0].Rows) == 0 {
		return graph.Edge{}, fmt.Errorf("association %s has no resolvable taxon endpoints", id)
	}

	source, _ := results[0].Rows[0].String(0)
	target, _ := results[0].Rows[0].String(1)

	edge := graph.Edge{
		Source: source,
		Target: target,
		Assocs: []string{id},
	}

	for _, row := range results[1].Rows {
		if name, ok := row.String(0); ok {
			edge.Networks = append(edge.Networks, name)
		}
	}

	sort.Strings(edge.Networks)

	if len(results[2].Rows) > 0 {
		edge.Weights = results[2].Rows[0].Floats(0)
	}

	return edge, nil
}

func ids(result *neo4j.Result) []string {
	if result == nil {
		return nil
	}

	out := make([]string, 0, len(result.Rows))

	for _, row := range result.Rows {
		if id, ok := row.String(0); ok {
			out = append(out, id)
		}
	}

	return out
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}

	return a + "\x00" + b
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	sort.Strings(out)
	return out
}

func coversAll(have, required []string) bool {
	set := make(map[string]bool, len(have))

	for _, s := range have {
		set[s] = true
	}

	for _, s := range required {
		if !set[s] {
			return false
		}
	}

	return true
}

func equalWeights(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func sorted(edges []graph.Edge) []graph.Edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}

		return edges[i].Target < edges[j].Target
	})

	return edges
}
