package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const graphmlNamespace = "http://graphml.graphdrawing.org/xmlns"

type xmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlNode struct {
	ID   string    `xml:"id,attr"`
	Data []xmlData `xml:"data"`
}

type xmlEdge struct {
	Source string    `xml:"source,attr"`
	Target string    `xml:"target,attr"`
	Data   []xmlData `xml:"data"`
}

type xmlGraph struct {
	ID          string    `xml:"id,attr"`
	EdgeDefault string    `xml:"edgedefault,attr"`
	Nodes       []xmlNode `xml:"node"`
	Edges       []xmlEdge `xml:"edge"`
}

type xmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type xmlGraphML struct {
	XMLName xml.Name   `xml:"graphml"`
	Xmlns   string     `xml:"xmlns,attr"`
	Keys    []xmlKey   `xml:"key"`
	Graphs  []xmlGraph `xml:"graph"`
}

// WriteGraphML serializes the given graphs into one GraphML document with
// undirected multi-edges. Every attribute is declared as a key up front;
// node attributes are strings, edge weight is a double and the preserved
// weight list travels as a comma-joined string.
func WriteGraphML(w io.Writer, graphs ...*Graph) error {
	nodeAttrs := make(map[string]bool)

	for _, g := range graphs {
		for _, node := range g.Nodes {
			for name := range node.Attrs {
				nodeAttrs[name] = true
			}
		}
	}

	names := make([]string, 0, len(nodeAttrs))

	for name := range nodeAttrs {
		names = append(names, name)
	}

	sort.Strings(names)

	doc := xmlGraphML{Xmlns: graphmlNamespace}
	nodeKeys := make(map[string]string, len(names))

	for i, name := range names {
		id := fmt.Sprintf("d%d", i)
		nodeKeys[name] = id
		doc.Keys = append(doc.Keys, xmlKey{
			ID: id, For: "node", AttrName: name, AttrType: "string",
		})
	}

	const (
		keySource  = "esource"
		keyWeight  = "eweight"
		keyWeights = "eweights"
	)

	doc.Keys = append(doc.Keys,
		xmlKey{ID: keySource, For: "edge", AttrName: "source", AttrType: "string"},
		xmlKey{ID: keyWeight, For: "edge", AttrName: "weight", AttrType: "double"},
		xmlKey{ID: keyWeights, For: "edge", AttrName: "weights", AttrType: "string"},
	)

	for _, g := range graphs {
		xg := xmlGraph{ID: g.Name, EdgeDefault: "undirected"}

		for _, node := range g.Nodes {
			xn := xmlNode{ID: node.ID}

			attrNames := make([]string, 0, len(node.Attrs))

			for name := range node.Attrs {
				attrNames = append(attrNames, name)
			}

			sort.Strings(attrNames)

			for _, name := range attrNames {
				xn.Data = append(xn.Data, xmlData{
					Key:   nodeKeys[name],
					Value: node.Attrs[name],
				})
			}

			xg.Nodes = append(xg.Nodes, xn)
		}

		for _, edge := range g.Edges {
			xe := xmlEdge{Source: edge.Source, Target: edge.Target}
			xe.Data = append(xe.Data, xmlData{
				Key:   keySource,
				Value: strings.Join(edge.SourceNetworks, ","),
			})

			if len(edge.Weights) > 0 {
				xe.Data = append(xe.Data,
					xmlData{
						Key:   keyWeight,
						Value: strconv.FormatFloat(edge.Weight, 'g', -1, 64),
					},
					xmlData{
						Key:   keyWeights,
						Value: formatWeights(edge.Weights),
					},
				)
			}

			xg.Edges = append(xg.Edges, xe)
		}

		doc.Graphs = append(doc.Graphs, xg)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graphml: %w", err)
	}

	return encoder.Flush()
}
