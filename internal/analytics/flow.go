package analytics

import (
	"sort"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
)

// Node labels of the flow graphs
const (
	RootNode          = "总支出"
	OtherCategoryNode = "其他分类"
	OtherMerchantNode = "其他商家"
	OtherNode         = "其他"
)

// Node is a vertex of a flow graph
type Node struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Link is a weighted edge between two node names
type Link struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// Graph is the node and edge list consumed by sankey and chord charts
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

func emptyGraph() Graph {
	return Graph{Nodes: []Node{}, Links: []Link{}}
}

// graphBuilder keeps node names unique across levels
type graphBuilder struct {
	graph Graph
	names map[string]bool
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{graph: emptyGraph(), names: make(map[string]bool)}
}

// addNode adds a node and returns its final name. A name that is already
// taken by another level is padded with trailing spaces until unique.
func (b *graphBuilder) addNode(name, category string) string {
	for b.names[name] {
		name += " "
	}
	b.names[name] = true
	b.graph.Nodes = append(b.graph.Nodes, Node{Name: name, Category: category})
	return name
}

func (b *graphBuilder) link(source, target string, value float64) {
	b.graph.Links = append(b.graph.Links, Link{Source: source, Target: target, Value: stats.Round2(value)})
}

// Sankey builds total → top 8 categories → merchants. Within a category,
// merchants reaching 0.5% of total expense are shown, at most three and at
// least the largest one; the rest of the category flows into a shared other
// merchant node. Categories beyond the top 8 are folded into an other
// category node, so every level conserves the total.
func (e *Engine) Sankey(rows []models.Transaction) Graph {
	exp := expenses(rows)
	if len(exp) == 0 {
		return emptyGraph()
	}

	all := total(exp)
	threshold := all * 0.005
	byCat := groupBy(exp, byCategory)
	cats := stats.Bucketize(stats.BucketsFromMap(sumBy(exp, byCategory)), 8, OtherCategoryNode)

	b := newGraphBuilder()
	root := b.addNode(RootNode, "")
	otherMerchant := ""
	otherMerchantNode := func() string {
		if otherMerchant == "" {
			otherMerchant = b.addNode(OtherMerchantNode, "")
		}
		return otherMerchant
	}

	for i, cat := range cats {
		if i >= 8 {
			node := b.addNode(OtherCategoryNode, "")
			b.link(root, node, cat.Value)
			if cat.Value > 0 {
				b.link(node, otherMerchantNode(), cat.Value)
			}
			continue
		}

		catNode := b.addNode(cat.Name, "")
		b.link(root, catNode, cat.Value)

		merchants := stats.BucketsFromMap(sumBy(byCat[cat.Name], byCounterparty))
		shown := make([]stats.Bucket, 0, 3)
		for _, m := range merchants {
			if m.Value >= threshold && len(shown) < 3 {
				shown = append(shown, m)
			}
		}
		if len(shown) == 0 && len(merchants) > 0 {
			shown = merchants[:1]
		}

		rest := cat.Value
		for _, m := range shown {
			b.link(catNode, b.addNode(m.Name, ""), m.Value)
			rest -= m.Value
		}
		if stats.Round2(rest) > 0 {
			b.link(catNode, otherMerchantNode(), rest)
		}
	}
	return b.graph
}

// Chord links weekdays to the top 10 categories; smaller categories share one
// other node. Only links with positive spend are emitted.
func (e *Engine) Chord(rows []models.Transaction) Graph {
	exp := expenses(rows)
	if len(exp) == 0 {
		return emptyGraph()
	}

	cats := stats.Bucketize(stats.BucketsFromMap(sumBy(exp, byCategory)), 10, OtherNode)
	slot := make(map[string]int, len(cats))
	for i, c := range cats {
		if i < 10 {
			slot[c.Name] = i
		}
	}
	otherSlot := 10

	var sums [7][11]float64
	for i := range exp {
		s, ok := slot[exp[i].Category]
		if !ok {
			s = otherSlot
		}
		sums[exp[i].Weekday()][s] += exp[i].Value()
	}

	b := newGraphBuilder()
	days := make([]string, 7)
	for wd, name := range stats.WeekdayNames {
		days[wd] = b.addNode(name, "weekday")
	}
	catNodes := make([]string, len(cats))
	for i, c := range cats {
		catNodes[i] = b.addNode(c.Name, "category")
	}

	for wd := 0; wd < 7; wd++ {
		for i := range cats {
			s := i
			if i >= 10 {
				s = otherSlot
			}
			if sums[wd][s] > 0 {
				b.link(days[wd], catNodes[i], sums[wd][s])
			}
		}
	}
	return b.graph
}

// CategoryFlow counts transitions between the categories of consecutive
// expenses less than FlowWindow apart. Pairs seen at least twice are kept,
// unless fewer than five such pairs exist, in which case all pairs are kept.
// At most 30 links are returned.
func (e *Engine) CategoryFlow(rows []models.Transaction) Graph {
	exp := expenses(rows)
	sort.SliceStable(exp, func(i, j int) bool { return exp[i].Timestamp.Before(exp[j].Timestamp) })

	type pair struct{ from, to string }
	counts := make(map[pair]int)
	for i := 1; i < len(exp); i++ {
		prev, cur := &exp[i-1], &exp[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap > e.config.FlowWindow || prev.Category == cur.Category {
			continue
		}
		counts[pair{prev.Category, cur.Category}]++
	}

	links := make([]Link, 0, len(counts))
	for p, n := range counts {
		if n >= 2 {
			links = append(links, Link{Source: p.from, Target: p.to, Value: float64(n)})
		}
	}
	if len(links) < 5 {
		links = links[:0]
		for p, n := range counts {
			links = append(links, Link{Source: p.from, Target: p.to, Value: float64(n)})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Value != links[j].Value {
			return links[i].Value > links[j].Value
		}
		if links[i].Source != links[j].Source {
			return links[i].Source < links[j].Source
		}
		return links[i].Target < links[j].Target
	})
	if len(links) > 30 {
		links = links[:30]
	}

	g := emptyGraph()
	seen := make(map[string]bool)
	for _, l := range links {
		for _, name := range []string{l.Source, l.Target} {
			if !seen[name] {
				seen[name] = true
				g.Nodes = append(g.Nodes, Node{Name: name})
			}
		}
	}
	g.Links = links
	return g
}
