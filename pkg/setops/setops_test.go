package setops

import (
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

// fakeAssoc is one stored association the fake store answers queries from.
type fakeAssoc struct {
	id       string
	source   string
	target   string
	networks []string
	weights  []float64
}

type fakeStore struct {
	assocs   []fakeAssoc
	networks []string
	commits  [][]neo4j.Statement
}

func (f *fakeStore) find(id string) *fakeAssoc {
	for i := range f.assocs {
		if f.assocs[i].id == id {
			return &f.assocs[i]
		}
	}

	return nil
}

func floatsAny(values []float64) []any {
	out := make([]any, 0, len(values))

	for _, v := range values {
		out = append(out, v)
	}

	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

func (f *fakeStore) ExecCypher(
	ctx context.Context, cypher string, params map[string]any,
) (*neo4j.Result, error) {
	result := &neo4j.Result{}

	switch {
	case strings.Contains(cypher, "count(DISTINCT b)"):
		names := params["names"].([]string)
		required := params["required"].(int)

		for _, a := range f.assocs {
			hits := 0

			for _, n := range a.networks {
				if containsString(names, n) {
					hits++
				}
			}

			if hits == required {
				result.Rows = append(result.Rows, neo4j.Row{a.id})
			}
		}

	case strings.Contains(cypher, "count(r) AS num"):
		restricted, _ := params["network"].(string)

		for _, a := range f.assocs {
			if len(a.networks) != 1 {
				continue
			}

			if restricted != "" && a.networks[0] != restricted {
				continue
			}

			result.Rows = append(result.Rows, neo4j.Row{a.id})
		}

	case strings.Contains(cypher, "NOT o.name IN $ids"):
		source := params["source"].(string)
		target := params["target"].(string)
		exclude := params["ids"].([]string)

		for _, a := range f.assocs {
			if a.source != source || a.target != target {
				continue
			}

			if containsString(exclude, a.id) {
				continue
			}

			result.Rows = append(result.Rows, neo4j.Row{floatsAny(a.weights)})
		}

	case strings.Contains(cypher, "WHERE b.name IN $names"):
		names := params["names"].([]string)

		for _, a := range f.assocs {
			for _, n := range a.networks {
				if containsString(names, n) {
					result.Rows = append(result.Rows, neo4j.Row{a.id})
					break
				}
			}
		}

	case strings.Contains(cypher, "MATCH (n:Network) RETURN n.name"):
		for _, n := range f.networks {
			result.Rows = append(result.Rows, neo4j.Row{n})
		}

	case strings.Contains(cypher, "MATCH (n:Association) RETURN DISTINCT n.name"):
		for _, a := range f.assocs {
			result.Rows = append(result.Rows, neo4j.Row{a.id})
		}
	}

	return result, nil
}

func (f *fakeStore) Commit(
	ctx context.Context, statements []neo4j.Statement,
) ([]*neo4j.Result, error) {
	f.commits = append(f.commits, statements)

	// Three statements keyed on one association id is a resolution round-trip.
	if len(statements) == 3 {
		if id, ok := statements[0].Params["id"].(string); ok {
			a := f.find(id)

			if a == nil {
				return []*neo4j.Result{{}, {}, {}}, nil
			}

			endpoints := &neo4j.Result{Rows: []neo4j.Row{{a.source, a.target}}}
			networks := &neo4j.Result{}

			for _, n := range a.networks {
				networks.Rows = append(networks.Rows, neo4j.Row{n})
			}

			weights := &neo4j.Result{Rows: []neo4j.Row{{floatsAny(a.weights)}}}
			return []*neo4j.Result{endpoints, networks, weights}, nil
		}
	}

	results := make([]*neo4j.Result, len(statements))

	for i := range results {
		results[i] = &neo4j.Result{}
	}

	return results, nil
}

// newFixture builds two networks over four taxa. The pair (A, B) appears in
// both networks with opposite weights; (B, C) and (C, D) each appear once.
func newFixture() *fakeStore {
	return &fakeStore{
		networks: []string{"N1", "N2"},
		assocs: []fakeAssoc{
			{id: "a1", source: "A", target: "B", networks: []string{"N1"}, weights: []float64{1}},
			{id: "a2", source: "A", target: "B", networks: []string{"N2"}, weights: []float64{-1}},
			{id: "a3", source: "B", target: "C", networks: []string{"N1"}, weights: []float64{1}},
			{id: "a4", source: "C", target: "D", networks: []string{"N2"}, weights: []float64{1}},
		},
	}
}

func TestUnion(t *testing.T) {
	Convey("Given two networks sharing a taxon pair", t, func() {
		store := newFixture()
		eng := New(store)

		Convey("When taking the union over every network", func() {
			edges, err := eng.Union(context.Background(), nil)

			Convey("Then every association should be returned", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 4)
			})
		})

		Convey("When taking the union over one network", func() {
			edges, err := eng.Union(context.Background(), []string{"N1"})

			Convey("Then only that network's associations should be returned", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 2)
				So(edges[0].Source, ShouldEqual, "A")
				So(edges[1].Source, ShouldEqual, "B")
			})
		})
	})
}

func TestIntersection(t *testing.T) {
	Convey("Given two networks sharing a taxon pair with opposite weights", t, func() {
		store := newFixture()
		eng := New(store)

		Convey("When intersecting weight-sensitively", func() {
			edges, err := eng.Intersection(context.Background(), []string{"N1", "N2"}, true)

			Convey("Then the disagreement should be excluded", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 0)
			})
		})

		Convey("When intersecting weight-insensitively", func() {
			edges, err := eng.Intersection(context.Background(), []string{"N1", "N2"}, false)

			Convey("Then the pair should intersect through its combined memberships", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 1)
				So(edges[0].Source, ShouldEqual, "A")
				So(edges[0].Target, ShouldEqual, "B")
				So(edges[0].Networks, ShouldResemble, []string{"N1", "N2"})
				So(len(edges[0].Assocs), ShouldEqual, 2)
				So(len(edges[0].Weights), ShouldEqual, 2)
			})
		})

		Convey("When intersecting without naming networks", func() {
			edges, err := eng.Intersection(context.Background(), nil, false)

			Convey("Then every stored network should be required", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 1)
			})
		})
	})
}

func TestDifference(t *testing.T) {
	Convey("Given two networks sharing a taxon pair with opposite weights", t, func() {
		store := newFixture()
		eng := New(store)

		Convey("When taking the weight-insensitive difference", func() {
			edges, err := eng.Difference(context.Background(), "", false)

			Convey("Then every single-network association should qualify", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 4)
			})
		})

		Convey("When taking the weight-sensitive difference", func() {
			edges, err := eng.Difference(context.Background(), "", true)

			Convey("Then pairs with a conflicting counterpart should be excluded", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 2)
				So(edges[0].Source, ShouldEqual, "B")
				So(edges[1].Source, ShouldEqual, "C")
			})
		})

		Convey("When restricting the difference to one network", func() {
			edges, err := eng.Difference(context.Background(), "N2", false)

			Convey("Then only that network's unique associations should be returned", func() {
				So(err, ShouldBeNil)
				So(len(edges), ShouldEqual, 2)

				for _, edge := range edges {
					So(edge.Networks, ShouldResemble, []string{"N2"})
				}
			})
		})
	})
}

func TestSharedAssociations(t *testing.T) {
	Convey("Given two 3-edge networks sharing two associations", t, func() {
		store := &fakeStore{
			networks: []string{"N1", "N2"},
			assocs: []fakeAssoc{
				{id: "a1", source: "A", target: "B", networks: []string{"N1", "N2"}, weights: []float64{1}},
				{id: "a2", source: "B", target: "C", networks: []string{"N1", "N2"}, weights: []float64{1}},
				{id: "a3", source: "C", target: "D", networks: []string{"N1"}, weights: []float64{1}},
				{id: "a4", source: "D", target: "E", networks: []string{"N2"}, weights: []float64{1}},
			},
		}

		eng := New(store)
		ctx := context.Background()

		Convey("Then the union should hold four associations", func() {
			edges, err := eng.Union(ctx, []string{"N1", "N2"})
			So(err, ShouldBeNil)
			So(len(edges), ShouldEqual, 4)
		})

		Convey("Then the intersection should hold the two shared ones", func() {
			edges, err := eng.Intersection(ctx, []string{"N1", "N2"}, false)
			So(err, ShouldBeNil)
			So(len(edges), ShouldEqual, 2)
		})

		Convey("Then the difference should hold the two unique ones", func() {
			edges, err := eng.Difference(ctx, "", false)
			So(err, ShouldBeNil)
			So(len(edges), ShouldEqual, 2)
			So(edges[0].Source, ShouldEqual, "C")
			So(edges[1].Source, ShouldEqual, "D")
		})
	})
}

func TestPersist(t *testing.T) {
	Convey("Given the result of a set operation", t, func() {
		store := newFixture()
		eng := New(store)

		edges, err := eng.Union(context.Background(), []string{"N1"})
		So(err, ShouldBeNil)

		priorCommits := len(store.commits)
		name, err := eng.Persist(context.Background(), "Union", []string{"N1"}, edges)

		Convey("Then the set should be written under a derived name", func() {
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "Union_N1")
		})

		Convey("Then one membership edge per association should be written", func() {
			So(len(store.commits), ShouldEqual, priorCommits+1)

			statements := store.commits[len(store.commits)-1]
			So(len(statements), ShouldEqual, 3)
			So(statements[0].Cypher, ShouldContainSubstring, "MERGE (s:Set")
			So(statements[1].Cypher, ShouldContainSubstring, "IN_SET")
		})
	})
}

func TestResolveAssociation(t *testing.T) {
	Convey("Given a stored association", t, func() {
		store := newFixture()

		Convey("When resolving it by id", func() {
			edge, err := ResolveAssociation(context.Background(), store, "a1")

			Convey("Then its endpoints, networks and weights should be returned", func() {
				So(err, ShouldBeNil)
				So(edge.Source, ShouldEqual, "A")
				So(edge.Target, ShouldEqual, "B")
				So(edge.Networks, ShouldResemble, []string{"N1"})
				So(edge.Weights, ShouldResemble, []float64{1})
				So(edge.Assocs, ShouldResemble, []string{"a1"})
			})
		})

		Convey("When resolving an unknown id", func() {
			_, err := ResolveAssociation(context.Background(), store, "missing")

			Convey("Then the resolution should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
