package chunker

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Definition is a top-level function or class found by a segmenter.
// StartLine and EndLine are 1-based and inclusive. Header is the first line
// of the definition from the column it starts at.
type Definition struct {
	Name      string
	NodeType  string
	StartLine int
	EndLine   int
	Header    string
	Content   string
}

// Parsed is what a segmenter produces for content that is valid in its
// language.
type Parsed struct {
	Definitions []Definition
	Skeleton    string
}

// Segmenter splits valid source into definitions and a skeleton. The set of
// implementations is closed: tree-sitter languages and notebooks.
type Segmenter interface {
	Language() Language
	// Segment reports ok=false when src does not parse in this language.
	Segment(ctx context.Context, src []byte) (p Parsed, ok bool)

	sealed()
}

type treeSitterSegmenter struct {
	spec     *LanguageSpec
	topLevel map[string]bool
	wrappers map[string]bool
}

func newTreeSitterSegmenter(spec *LanguageSpec) *treeSitterSegmenter {
	s := &treeSitterSegmenter{
		spec:     spec,
		topLevel: make(map[string]bool, len(spec.TopLevel)),
		wrappers: make(map[string]bool, len(spec.Wrappers)),
	}
	for _, t := range spec.TopLevel {
		s.topLevel[t] = true
	}
	for _, t := range spec.Wrappers {
		s.wrappers[t] = true
	}
	return s
}

func (s *treeSitterSegmenter) Language() Language { return s.spec.Name }

func (s *treeSitterSegmenter) sealed() {}

func (s *treeSitterSegmenter) Segment(ctx context.Context, src []byte) (Parsed, bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.spec.Language)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return Parsed{}, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return Parsed{}, false
	}

	lines := strings.Split(string(src), "\n")
	var defs []Definition
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if !s.isDefinition(child) {
			continue
		}
		head := child
		// Decorators stay in the skeleton; the definition starts at its header.
		if inner := child.ChildByFieldName("definition"); inner != nil {
			head = inner
		}
		start := int(head.StartPoint().Row)
		end := int(child.EndPoint().Row)
		// A node ending at column 0 stops before that row.
		if child.EndPoint().Column == 0 && end > start {
			end--
		}
		if end >= len(lines) {
			end = len(lines) - 1
		}
		for end > start && strings.TrimSpace(lines[end]) == "" {
			end--
		}
		defs = append(defs, Definition{
			Name:      nodeName(child, src),
			NodeType:  child.Type(),
			StartLine: start + 1,
			EndLine:   end + 1,
			Header:    headerLine(lines[start], int(head.StartPoint().Column)),
			Content:   strings.Join(lines[start:end+1], "\n"),
		})
	}

	return Parsed{
		Definitions: defs,
		Skeleton:    skeleton(lines, defs, s.spec.CommentPrefix),
	}, true
}

func (s *treeSitterSegmenter) isDefinition(n *sitter.Node) bool {
	if s.topLevel[n.Type()] {
		return true
	}
	if s.wrappers[n.Type()] {
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			return s.topLevel[decl.Type()]
		}
	}
	return false
}

// nodeName finds the identifier of a definition node, looking through
// decorators, export wrappers and Go type declarations.
func nodeName(n *sitter.Node, src []byte) string {
	for _, field := range []string{"definition", "declaration"} {
		if inner := n.ChildByFieldName(field); inner != nil {
			return nodeName(inner, src)
		}
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	if n.Type() == "type_declaration" && n.NamedChildCount() > 0 {
		if name := n.NamedChild(0).ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
	}
	if n.Type() == "impl_item" {
		if typ := n.ChildByFieldName("type"); typ != nil {
			return typ.Content(src)
		}
	}
	return ""
}

// headerLine cuts line at the byte column a definition starts at.
func headerLine(line string, col int) string {
	if col <= 0 || col > len(line) {
		return line
	}
	return line[col:]
}

// skeleton replaces the first line of every definition with a marker comment
// and drops the rest of its lines. All other lines are kept as they are.
// Definitions starting on a line another one ends on still get a marker.
func skeleton(lines []string, defs []Definition, commentPrefix string) string {
	markers := make(map[int][]string)
	dropped := make([]bool, len(lines))
	for _, d := range defs {
		first := d.StartLine - 1
		header := d.Header
		if header == "" {
			header = lines[first]
		}
		markers[first] = append(markers[first], header)
		for i := first; i < d.EndLine; i++ {
			dropped[i] = true
		}
	}

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		for _, h := range markers[i] {
			out = append(out, commentPrefix+" Code for: "+h)
		}
		if !dropped[i] {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
