// Package agglom merges pairs of associations whose endpoints collapse to
// the same taxonomic identity at a target rank. Each call runs a
// Scan/MergeOne loop: find one qualifying pair, replace it with a single
// association between two synthetic AgglomTaxon nodes, rescan. The loop
// terminates when no pair is found; one pair per round-trip keeps the
// pairing invariant trivially correct at the cost of throughput.
package agglom

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/osmoslab/taxonet/pkg/graph"
	"github.com/osmoslab/taxonet/pkg/metrics"
	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

type Agglomerator struct {
	store graph.Store
}

func New(store graph.Store) *Agglomerator {
	return &Agglomerator{store: store}
}

// endpoint is one taxon-side node of a scanned association.
type endpoint struct {
	name   string
	agglom bool
}

// pair is one Scan result: two distinct associations whose endpoints are
// taxonomically identical at the target rank.
type pair struct {
	rankLeft  string // shared rank-node name on the left side
	rankRight string // shared rank-node name on the right side
	assocA    string
	assocB    string
	leftA     endpoint
	rightA    endpoint
	leftB     endpoint
	rightB    endpoint
}

// AgglomerateUpTo applies agglomeration once per rank level, species first,
// up to and including the target rank.
func (agg *Agglomerator) AgglomerateUpTo(
	ctx context.Context, rank string, weightSensitive bool,
) error {
	idx := graph.RankIndex(rank)

	if idx < 0 {
		return fmt.Errorf("unknown taxonomic rank %q", rank)
	}

	for i := 0; i <= idx; i++ {
		if err := agg.AgglomerateNetwork(ctx, graph.Ranks[i], weightSensitive); err != nil {
			return err
		}
	}

	return nil
}

// AgglomerateNetwork runs the Scan/MergeOne loop at a single rank until no
// qualifying pair remains. With weightSensitive only same-weight pairs are
// merged.
func (agg *Agglomerator) AgglomerateNetwork(
	ctx context.Context, rank string, weightSensitive bool,
) error {
	if graph.RankIndex(rank) < 0 {
		return fmt.Errorf("unknown taxonomic rank %q", rank)
	}

	for {
		found, err := agg.scan(ctx, rank, weightSensitive)

		if err != nil {
			return fmt.Errorf("failed to scan for mergeable pairs: %w", err)
		}

		if found == nil {
			return nil
		}

		if err := agg.mergeOne(ctx, rank, *found, weightSensitive); err != nil {
			// Abandoning the merge without removing the pair would make the
			// next scan return it again, so the loop aborts here.
			log.Error("abandoning agglomeration merge",
				"rank", rank,
				"associations", []string{found.assocA, found.assocB},
				"error", err,
			)
			return err
		}

		metrics.Merges.Inc()
	}
}

// scan searches for one pair of distinct associations whose endpoints share
// taxonomic identity at the target rank on both sides.
func (agg *Agglomerator) scan(
	ctx context.Context, rank string, weightSensitive bool,
) (*pair, error) {
	condition := "WHERE a.name <> b.name AND e.name = h.name AND g.name = f.name"

	if weightSensitive {
		condition += " AND a.weight = b.weight"
	}

	result, err := agg.store.ExecCypher(
		ctx,
		"MATCH (e:"+rank+")<--(ta)<--(a:Association)-->(tb)-->(g:"+rank+") "+
			"MATCH (h:"+rank+")<--(tc)<--(b:Association)-->(td)-->(f:"+rank+") "+
			condition+" "+
			"RETURN e.name, g.name, a.name, b.name, "+
			"ta.name, labels(ta), tb.name, labels(tb), "+
			"tc.name, labels(tc), td.name, labels(td) "+
			"LIMIT 1",
		nil,
	)

	if err != nil {
		return nil, err
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}

	row := result.Rows[0]
	found := &pair{}
	found.rankLeft, _ = row.String(0)
	found.rankRight, _ = row.String(1)
	found.assocA, _ = row.String(2)
	found.assocB, _ = row.String(3)
	found.leftA = scanEndpoint(row, 4)
	found.rightA = scanEndpoint(row, 6)
	found.leftB = scanEndpoint(row, 8)
	found.rightB = scanEndpoint(row, 10)

	return found, nil
}

func scanEndpoint(row neo4j.Row, i int) endpoint {
	name, _ := row.String(i)
	ep := endpoint{name: name}

	for _, label := range row.Strings(i + 1) {
		if label == graph.LabelAgglomTaxon {
			ep.agglom = true
		}
	}

	return ep
}

// mergeOne replaces the two scanned associations with one association
// between two fresh AgglomTaxon nodes. All reads happen before any write,
// so a discontinuous phylogeny aborts the merge without leaving partial
// AgglomTaxon nodes behind.
func (agg *Agglomerator) mergeOne(
	ctx context.Context, rank string, found pair, weightSensitive bool,
) error {
	membersLeft, err := agg.members(ctx, found.leftA, found.leftB)

	if err != nil {
		return err
	}

	membersRight, err := agg.members(ctx, found.rightA, found.rightB)

	if err != nil {
		return err
	}

	pathLeft, err := agg.taxonomyPath(ctx, rank, found.rankLeft)

	if err != nil {
		return err
	}

	pathRight, err := agg.taxonomyPath(ctx, rank, found.rankRight)

	if err != nil {
		return err
	}

	networks, err := agg.networks(ctx, found.assocA, found.assocB)

	if err != nil {
		return err
	}

	var weight []float64

	if weightSensitive {
		result, err := agg.store.ExecCypher(
			ctx,
			"MATCH (n:Association {name: $id}) RETURN n.weight",
			map[string]any{"id": found.assocA},
		)

		if err != nil {
			return err
		}

		if len(result.Rows) > 0 {
			weight = result.Rows[0].Floats(0)
		}
	}

	agglomLeft := uuid.NewString()
	agglomRight := uuid.NewString()
	assocID := uuid.NewString()

	var statements []neo4j.Statement

	statements = append(statements,
		neo4j.Statement{
			Cypher: "CREATE (:AgglomTaxon {name: $id})",
			Params: map[string]any{"id": agglomLeft},
		},
		neo4j.Statement{
			Cypher: "CREATE (:AgglomTaxon {name: $id})",
			Params: map[string]any{"id": agglomRight},
		},
	)

	statements = append(statements, generatedFrom(agglomLeft, membersLeft)...)
	statements = append(statements, generatedFrom(agglomRight, membersRight)...)
	statements = append(statements, rankChain(agglomLeft, pathLeft)...)
	statements = append(statements, rankChain(agglomRight, pathRight)...)

	create := "CREATE (n:Association {name: $id})"
	createParams := map[string]any{"id": assocID}

	if weightSensitive && len(weight) > 0 {
		create += " SET n.weight = $weight"
		createParams["weight"] = weight
	}

	statements = append(statements, neo4j.Statement{Cypher: create, Params: createParams})

	for _, agglomID := range []string{agglomLeft, agglomRight} {
		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (n:Association {name: $assoc}), (t:AgglomTaxon {name: $taxon}) " +
				"CREATE (n)-[:" + graph.RelWithTaxon + "]->(t)",
			Params: map[string]any{"assoc": assocID, "taxon": agglomID},
		})
	}

	for _, network := range networks {
		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (n:Association {name: $assoc}), (net:Network {name: $network}) " +
				"CREATE (n)-[:" + graph.RelInNetwork + "]->(net)",
			Params: map[string]any{"assoc": assocID, "network": network},
		})
	}

	for _, old := range []string{found.assocA, found.assocB} {
		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (n:Association {name: $id}) DETACH DELETE n",
			Params: map[string]any{"id": old},
		})
	}

	// The endpoints that were themselves AgglomTaxon nodes are now orphaned.
	for _, ep := range []endpoint{found.leftA, found.rightA, found.leftB, found.rightB} {
		if !ep.agglom {
			continue
		}

		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (n:AgglomTaxon {name: $id}) DETACH DELETE n",
			Params: map[string]any{"id": ep.name},
		})
	}

	if _, err := agg.store.Commit(ctx, statements); err != nil {
		return fmt.Errorf("failed to merge associations %s and %s: %w",
			found.assocA, found.assocB, err)
	}

	return nil
}

// members resolves the original Taxon nodes behind one side of the merge.
// AgglomTaxon endpoints contribute their GENERATED_FROM targets, so the
// lineage is copied transitively onto the new node.
func (agg *Agglomerator) members(
	ctx context.Context, endpoints ...endpoint,
) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, ep := range endpoints {
		if !ep.agglom {
			if !seen[ep.name] {
				seen[ep.name] = true
				out = append(out, ep.name)
			}

			continue
		}

		result, err := agg.store.ExecCypher(
			ctx,
			"MATCH (:AgglomTaxon {name: $id})-[:"+graph.RelGeneratedFrom+
				"]->(t:Taxon) RETURN t.name",
			map[string]any{"id": ep.name},
		)

		if err != nil {
			return nil, err
		}

		for _, row := range result.Rows {
			if name, ok := row.String(0); ok && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	return out, nil
}

type rankNode struct {
	label string
	name  string
}

// taxonomyPath walks the taxonomy chain from the shared rank node toward
// Kingdom. An empty result means the phylogenetic tree is discontinuous at
// this node, which aborts the merge.
func (agg *Agglomerator) taxonomyPath(
	ctx context.Context, rank, name string,
) ([]rankNode, error) {
	result, err := agg.store.ExecCypher(
		ctx,
		"MATCH p=(:"+rank+" {name: $name})-[:"+graph.RelBelongsTo+"*0..]->(k:Kingdom) "+
			"RETURN [x IN nodes(p) | x.name], [x IN nodes(p) | labels(x)[0]] LIMIT 1",
		map[string]any{"name": name},
	)

	if err != nil {
		return nil, err
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("discontinuous phylogeny: no taxonomy path from %s %q", rank, name)
	}

	names := result.Rows[0].Strings(0)
	labels := result.Rows[0].Strings(1)

	if len(names) != len(labels) || len(names) == 0 {
		return nil, fmt.Errorf("discontinuous phylogeny: malformed taxonomy path from %s %q", rank, name)
	}

	path := make([]rankNode, 0, len(names))

	for i := range names {
		path = append(path, rankNode{label: labels[i], name: names[i]})
	}

	return path, nil
}

func (agg *Agglomerator) networks(
	ctx context.Context, assocIDs ...string,
) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, id := range assocIDs {
		result, err := agg.store.ExecCypher(
			ctx,
			"MATCH (:Association {name: $id})-[:"+graph.RelInNetwork+
				"]->(n:Network) RETURN n.name",
			map[string]any{"id": id},
		)

		if err != nil {
			return nil, err
		}

		for _, row := range result.Rows {
			if name, ok := row.String(0); ok && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	return out, nil
}

func generatedFrom(agglomID string, members []string) []neo4j.Statement {
	statements := make([]neo4j.Statement, 0, len(members))

	for _, member := range members {
		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (a:AgglomTaxon {name: $agglom}), (t:Taxon {name: $taxon}) " +
				"MERGE (a)-[:" + graph.RelGeneratedFrom + "]->(t)",
			Params: map[string]any{"agglom": agglomID, "taxon": member},
		})
	}

	return statements
}

func rankChain(agglomID string, path []rankNode) []neo4j.Statement {
	statements := make([]neo4j.Statement, 0, len(path))

	for _, node := range path {
		relation, ok := graph.RankRelations[node.label]

		if !ok {
			continue
		}

		statements = append(statements, neo4j.Statement{
			Cypher: "MATCH (a:AgglomTaxon {name: $agglom}), (r:" + node.label +
				" {name: $rank}) CREATE (a)-[:" + relation + "]->(r)",
			Params: map[string]any{"agglom": agglomID, "rank": node.name},
		})
	}

	return statements
}
