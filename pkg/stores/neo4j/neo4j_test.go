package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExecCypher(t *testing.T) {
	Convey("Given a neo4j client and a test server", t, func() {
		var captured map[string]any

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			fmt.Fprint(w, `{"results":[{"columns":["name","weight"],"data":[{"row":["GG_OTU_1",[1.0]]},{"row":["GG_OTU_2",[-1.0]]}]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "neo4j", "test")
		result, err := client.ExecCypher(
			context.Background(),
			"MATCH (n:Taxon {name: $name}) RETURN n.name, n.weight",
			map[string]any{"name": "GG_OTU_1"},
		)

		Convey("Then the rows should be decoded", func() {
			So(err, ShouldBeNil)
			So(result.Columns, ShouldResemble, []string{"name", "weight"})
			So(len(result.Rows), ShouldEqual, 2)

			name, ok := result.Rows[0].String(0)
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "GG_OTU_1")
			So(result.Rows[1].Floats(1), ShouldResemble, []float64{-1.0})
		})

		Convey("Then the statement should be parameterized", func() {
			statements := captured["statements"].([]any)
			So(len(statements), ShouldEqual, 1)

			stmt := statements[0].(map[string]any)
			So(stmt["parameters"], ShouldResemble, map[string]any{"name": "GG_OTU_1"})
		})
	})
}

func TestCommitMultipleStatements(t *testing.T) {
	Convey("Given a transaction with two statements", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[{"columns":["a"],"data":[{"row":[1]}]},{"columns":["b"],"data":[{"row":[2]}]}],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "", "")
		results, err := client.Commit(context.Background(), []Statement{
			{Cypher: "RETURN 1 AS a"},
			{Cypher: "RETURN 2 AS b"},
		})

		Convey("Then one result per statement should be returned", func() {
			So(err, ShouldBeNil)
			So(len(results), ShouldEqual, 2)

			a, _ := results[0].Rows[0].Float(0)
			b, _ := results[1].Rows[0].Float(0)
			So(a, ShouldEqual, 1)
			So(b, ShouldEqual, 2)
		})
	})
}

func TestErrorChannel(t *testing.T) {
	Convey("Given a server reporting a Cypher error", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"results":[],"errors":[{"code":"Neo.ClientError.Statement.SyntaxError","message":"Invalid input"}]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "neo4j", "test")
		_, err := client.ExecCypher(context.Background(), "MATCH (n RETURN n", nil)

		Convey("Then the error should carry the store message", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SyntaxError")
			So(err.Error(), ShouldContainSubstring, "Invalid input")
		})
	})
}

func TestBasicAuth(t *testing.T) {
	Convey("Given a client with credentials", t, func() {
		var user, pass string
		var ok bool

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok = r.BasicAuth()
			fmt.Fprint(w, `{"results":[],"errors":[]}`)
		}))
		defer ts.Close()

		client := New(ts.URL, "neo4j", "secret")
		err := client.Ping(context.Background())

		Convey("Then the request should carry basic auth", func() {
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(user, ShouldEqual, "neo4j")
			So(pass, ShouldEqual, "secret")
		})
	})
}

func TestUnreachableStore(t *testing.T) {
	Convey("Given an unreachable endpoint", t, func() {
		client := New("http://127.0.0.1:1", "neo4j", "test")
		err := client.Ping(context.Background())

		Convey("Then the operation should abort with an error", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
