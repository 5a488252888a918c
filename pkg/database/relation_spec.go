package database

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// RELATION SPECS
// -----------------------------------------------------------------------------
// With/Load'a verilen ilişki tarifleri önce RelationNode ağacına çevrilir;
// loader sadece bu ağaçla çalışır. Desteklenen biçimler aynı listede
// karıştırılabilir:
//
//	"posts"
//	"posts.comments.author"
//	"comments:paginated:page=2:perPage=10"
//	map[string]any{"posts": map[string]any{"paginate": true, "page": 2, "perPage": 20, "with": []string{"tags"}}}
//	map[string]RelationOptions{"posts": {Query: func(q *QueryBuilder) {...}}}
//	map[string]func(*QueryBuilder){"posts": func(q *QueryBuilder) {...}}
//
// Bilinmeyen ":" modifier'ları sessizce yok sayılır.
// -----------------------------------------------------------------------------

const (
	defaultRelationPage    = 1
	defaultRelationPerPage = 15
)

// RelationNode, tek bir ilişki yüklemesinin ayrıştırılmış halidir.
type RelationNode struct {
	Name     string
	Paginate bool
	Page     int
	PerPage  int
	Query    func(q *QueryBuilder)
	Children []*RelationNode
}

// RelationOptions, map biçimindeki ilişki tarifinin tipli halidir.
type RelationOptions struct {
	Paginate bool
	Page     int
	PerPage  int
	With     []any
	Query    func(q *QueryBuilder)
}

// ParseRelations, ham ilişki tariflerini birleştirilmiş bir ağaca çevirir.
// Aynı isimli düğümler tek düğümde toplanır; "posts" ve "posts.comments"
// birlikte verilirse posts bir kez yüklenir.
//
// Örnek:
//
//	nodes, err := database.ParseRelations("posts.comments", "roles:paginated:perPage=5")
func ParseRelations(specs ...any) ([]*RelationNode, error) {
	var p relationParser
	for _, spec := range specs {
		if err := p.parseAny(spec); err != nil {
			return nil, err
		}
	}
	return p.nodes, nil
}

type relationParser struct {
	nodes []*RelationNode
}

func (p *relationParser) parseAny(spec any) error {
	switch v := spec.(type) {
	case nil:
		return nil
	case string:
		return p.parseString(v)
	case []string:
		for _, s := range v {
			if err := p.parseString(s); err != nil {
				return err
			}
		}
	case []any:
		for _, s := range v {
			if err := p.parseAny(s); err != nil {
				return err
			}
		}
	case *RelationNode:
		p.merge(v)
	case []*RelationNode:
		for _, n := range v {
			p.merge(n)
		}
	case map[string]RelationOptions:
		for _, name := range sortedKeys(v) {
			if err := p.parseOptions(name, v[name]); err != nil {
				return err
			}
		}
	case map[string]func(q *QueryBuilder):
		for _, name := range sortedKeys(v) {
			if err := p.parseOptions(name, RelationOptions{Query: v[name]}); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, name := range sortedKeys(v) {
			opts, err := optionsFromAny(name, v[name])
			if err != nil {
				return err
			}
			if err := p.parseOptions(name, opts); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("relation spec: unsupported type %T", spec)
	}
	return nil
}

// parseString, "a.b:paginated:page=2" biçimini ayrıştırır. Her nokta
// segmenti kendi modifier'larını taşıyabilir.
func (p *relationParser) parseString(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	root, err := parsePath(strings.Split(spec, "."))
	if err != nil {
		return fmt.Errorf("relation spec %q: %w", spec, err)
	}
	p.merge(root)
	return nil
}

func parsePath(segments []string) (*RelationNode, error) {
	node, err := parseSegment(segments[0])
	if err != nil {
		return nil, err
	}
	if len(segments) > 1 {
		child, err := parsePath(segments[1:])
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func parseSegment(segment string) (*RelationNode, error) {
	tokens := strings.Split(segment, ":")
	name := strings.TrimSpace(tokens[0])
	if name == "" {
		return nil, fmt.Errorf("empty relation name")
	}
	node := &RelationNode{Name: name, Page: defaultRelationPage, PerPage: defaultRelationPerPage}
	for _, tok := range tokens[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(tok), "=")
		switch key {
		case "paginated", "paginate":
			node.Paginate = true
		case "page":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				node.Page = n
			}
		case "perPage", "per_page":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				node.PerPage = n
			}
		}
	}
	return node, nil
}

func (p *relationParser) parseOptions(name string, opts RelationOptions) error {
	segments := strings.Split(strings.TrimSpace(name), ".")
	root, err := parsePath(segments)
	if err != nil {
		return fmt.Errorf("relation spec %q: %w", name, err)
	}

	leaf := root
	for len(leaf.Children) > 0 {
		leaf = leaf.Children[0]
	}
	if opts.Paginate {
		leaf.Paginate = true
	}
	if opts.Page > 0 {
		leaf.Page = opts.Page
	}
	if opts.PerPage > 0 {
		leaf.PerPage = opts.PerPage
	}
	if opts.Query != nil {
		leaf.Query = opts.Query
	}
	if len(opts.With) > 0 {
		children, err := ParseRelations(opts.With...)
		if err != nil {
			return fmt.Errorf("relation spec %q: %w", name, err)
		}
		leaf.Children = mergeNodes(leaf.Children, children...)
	}

	p.merge(root)
	return nil
}

// optionsFromAny, map[string]any biçimindeki değeri RelationOptions'a çevirir.
func optionsFromAny(name string, raw any) (RelationOptions, error) {
	switch v := raw.(type) {
	case nil, bool:
		return RelationOptions{}, nil
	case RelationOptions:
		return v, nil
	case func(q *QueryBuilder):
		return RelationOptions{Query: v}, nil
	case map[string]any:
		var opts RelationOptions
		for key, val := range v {
			switch key {
			case "paginate", "paginated":
				opts.Paginate, _ = val.(bool)
			case "page":
				opts.Page = toInt(val)
			case "perPage", "per_page":
				opts.PerPage = toInt(val)
			case "with":
				opts.With = toAnySlice(val)
			case "query":
				fn, ok := val.(func(q *QueryBuilder))
				if !ok && val != nil {
					return opts, fmt.Errorf("relation spec %q: query must be func(*QueryBuilder), got %T", name, val)
				}
				opts.Query = fn
			}
		}
		return opts, nil
	default:
		return RelationOptions{}, fmt.Errorf("relation spec %q: unsupported options type %T", name, raw)
	}
}

func (p *relationParser) merge(node *RelationNode) {
	p.nodes = mergeNodes(p.nodes, node)
}

// mergeNodes, aynı isimli düğümleri birleştirir. Sonradan gelen düğümün
// pagination ve query ayarları öncekini ezer.
func mergeNodes(into []*RelationNode, nodes ...*RelationNode) []*RelationNode {
	for _, node := range nodes {
		var existing *RelationNode
		for _, n := range into {
			if n.Name == node.Name {
				existing = n
				break
			}
		}
		if existing == nil {
			into = append(into, node)
			continue
		}
		if node.Paginate {
			existing.Paginate = true
			existing.Page = node.Page
			existing.PerPage = node.PerPage
		}
		if node.Query != nil {
			existing.Query = node.Query
		}
		existing.Children = mergeNodes(existing.Children, node.Children...)
	}
	return into
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String, düğümü tekrar string biçimine çevirir (log ve test için).
func (n *RelationNode) String() string {
	var sb strings.Builder
	sb.WriteString(n.Name)
	if n.Paginate {
		fmt.Fprintf(&sb, ":paginated:page=%d:perPage=%d", n.Page, n.PerPage)
	}
	if len(n.Children) > 0 {
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		sb.WriteString("{" + strings.Join(parts, ",") + "}")
	}
	return sb.String()
}
