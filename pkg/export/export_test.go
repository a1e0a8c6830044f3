package export

import (
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

type fakeAssoc struct {
	id       string
	source   string
	target   string
	networks []string
	weights  []float64
}

type fakeStore struct {
	networks   []string
	membership map[string][]string // network or set name → association ids
	assocs     map[string]fakeAssoc
	taxonomy   map[string][][2]string // taxon → (rank, name) pairs
	properties map[string][][2]string // taxon → (type, value) pairs
}

func (f *fakeStore) ExecCypher(
	ctx context.Context, cypher string, params map[string]any,
) (*neo4j.Result, error) {
	result := &neo4j.Result{}

	switch {
	case strings.Contains(cypher, "WHERE b:Network OR b:Set"):
		for _, id := range f.membership[params["name"].(string)] {
			result.Rows = append(result.Rows, neo4j.Row{id})
		}

	case strings.Contains(cypher, "MATCH (n:Network) RETURN n.name"):
		for _, name := range f.networks {
			result.Rows = append(result.Rows, neo4j.Row{name})
		}

	case strings.Contains(cypher, "labels(r)[0], r.name"):
		for _, pair := range f.taxonomy[params["taxon"].(string)] {
			result.Rows = append(result.Rows, neo4j.Row{pair[0], pair[1]})
		}

	case strings.Contains(cypher, "RETURN p.type, p.name"):
		for _, pair := range f.properties[params["taxon"].(string)] {
			result.Rows = append(result.Rows, neo4j.Row{pair[0], pair[1]})
		}
	}

	return result, nil
}

func (f *fakeStore) Commit(
	ctx context.Context, statements []neo4j.Statement,
) ([]*neo4j.Result, error) {
	// Only association resolution arrives here.
	id, _ := statements[0].Params["id"].(string)
	a, ok := f.assocs[id]

	if !ok {
		return []*neo4j.Result{{}, {}, {}}, nil
	}

	endpoints := &neo4j.Result{Rows: []neo4j.Row{{a.source, a.target}}}
	networks := &neo4j.Result{}

	for _, n := range a.networks {
		networks.Rows = append(networks.Rows, neo4j.Row{n})
	}

	weights := make([]any, 0, len(a.weights))

	for _, w := range a.weights {
		weights = append(weights, w)
	}

	return []*neo4j.Result{
		endpoints,
		networks,
		{Rows: []neo4j.Row{{weights}}},
	}, nil
}

func newFixture() *fakeStore {
	return &fakeStore{
		networks: []string{"N1"},
		membership: map[string][]string{
			"N1": {"a1", "a2"},
		},
		assocs: map[string]fakeAssoc{
			"a1": {id: "a1", source: "A", target: "B", networks: []string{"N1", "N2"}, weights: []float64{0.4, 0.6}},
			"a2": {id: "a2", source: "B", target: "C", networks: []string{"N1"}, weights: []float64{-1}},
		},
		taxonomy: map[string][][2]string{
			"A": {{"Genus", "G1"}, {"Family", "F1"}},
		},
		properties: map[string][][2]string{
			"A": {{"Location", "soil"}, {"Location", "sediment"}},
			"B": {{"pH", "6.5"}},
		},
	}
}

func TestSubgraph(t *testing.T) {
	Convey("Given one stored network", t, func() {
		store := newFixture()
		exp := New(store)

		Convey("When exporting without naming networks", func() {
			graphs, err := exp.Subgraph(context.Background(), nil)

			Convey("Then every stored network should be rebuilt", func() {
				So(err, ShouldBeNil)
				So(len(graphs), ShouldEqual, 1)
				So(graphs[0].Name, ShouldEqual, "N1")
			})

			Convey("Then nodes and edges should be sorted and attributed", func() {
				g := graphs[0]
				So(len(g.Nodes), ShouldEqual, 3)
				So(g.Nodes[0].ID, ShouldEqual, "A")
				So(g.Nodes[0].Attrs["Genus"], ShouldEqual, "G1")
				So(g.Nodes[0].Attrs["Location"], ShouldEqual, "soil,sediment")
				So(g.Nodes[1].Attrs["pH"], ShouldEqual, "6.5")

				So(len(g.Edges), ShouldEqual, 2)
				So(g.Edges[0].Source, ShouldEqual, "A")
				So(g.Edges[0].Weight, ShouldAlmostEqual, 0.5)
				So(g.Edges[0].Weights, ShouldResemble, []float64{0.4, 0.6})
				So(g.Edges[0].SourceNetworks, ShouldResemble, []string{"N1", "N2"})
			})
		})

		Convey("When an association cannot be resolved", func() {
			store.membership["N1"] = append(store.membership["N1"], "ghost")
			graphs, err := exp.Subgraph(context.Background(), []string{"N1"})

			Convey("Then it should be skipped rather than fail the export", func() {
				So(err, ShouldBeNil)
				So(len(graphs[0].Edges), ShouldEqual, 2)
			})
		})
	})
}

func TestWriteGraphML(t *testing.T) {
	Convey("Given an attributed graph", t, func() {
		g := &Graph{
			Name: "N1",
			Nodes: []Node{
				{ID: "A", Attrs: map[string]string{"Genus": "G1"}},
				{ID: "B", Attrs: map[string]string{"pH": "6.5"}},
			},
			Edges: []MultiEdge{
				{
					Source:         "A",
					Target:         "B",
					SourceNetworks: []string{"N1", "N2"},
					Weight:         0.5,
					Weights:        []float64{0.4, 0.6},
				},
			},
		}

		var buf strings.Builder
		err := WriteGraphML(&buf, g)
		doc := buf.String()

		Convey("Then the document should declare every attribute key", func() {
			So(err, ShouldBeNil)
			So(doc, ShouldContainSubstring, `xmlns="http://graphml.graphdrawing.org/xmlns"`)
			So(doc, ShouldContainSubstring, `attr.name="Genus" attr.type="string"`)
			So(doc, ShouldContainSubstring, `attr.name="pH" attr.type="string"`)
			So(doc, ShouldContainSubstring, `attr.name="weight" attr.type="double"`)
		})

		Convey("Then the graph should be undirected with attributed members", func() {
			So(doc, ShouldContainSubstring, `edgedefault="undirected"`)
			So(doc, ShouldContainSubstring, `<node id="A">`)
			So(doc, ShouldContainSubstring, `source="A" target="B"`)
			So(doc, ShouldContainSubstring, ">N1,N2</data>")
			So(doc, ShouldContainSubstring, ">0.5</data>")
			So(doc, ShouldContainSubstring, ">0.4,0.6</data>")
		})

		Convey("Then an empty graph should still serialize", func() {
			var empty strings.Builder
			So(WriteGraphML(&empty, &Graph{Name: "E"}), ShouldBeNil)
			So(empty.String(), ShouldContainSubstring, `<graph id="E"`)
		})
	})
}
