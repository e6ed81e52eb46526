/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package tree

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const labelStops = "(),:;[] \t\r\n"

type parsed struct {
	node      *Node
	height    float64
	length    float64
	hasLength bool
}

type parser struct {
	s      string
	pos    int
	groups map[string]*Height
}

// Parse reads a tree in bracketed notation, for example
//
//	((A,B)[&height_index=0,height=0.1],C)[&height_index=1,height=0.3];
//
// Internal nodes annotated with the same height_index share a height.
// Internal nodes without a height annotation take the height implied by
// their children's branch lengths.
func Parse(s string, opts ...Option) (*Tree, error) {
	p := &parser{s: strings.TrimSpace(s), groups: make(map[string]*Height)}
	root, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ';' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.errorf("unexpected trailing input")
	}
	if root.node.IsLeaf() {
		return nil, errors.Wrap(ErrTooFewLeaves, "tree is a single leaf")
	}
	return New(root.node, opts...)
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrParse, "at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && strings.IndexByte(" \t\r\n", p.s[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) node() (*parsed, error) {
	var children []*parsed
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.node()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
			c := p.peek()
			p.pos++
			if c == ')' {
				break
			}
			if c != ',' {
				return nil, p.errorf("expected ',' or ')'")
			}
		}
	}

	label, err := p.label()
	if err != nil {
		return nil, err
	}
	annotations, err := p.annotations()
	if err != nil {
		return nil, err
	}
	out := &parsed{}
	if p.peek() == ':' {
		p.pos++
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && strings.IndexByte(labelStops, p.s[p.pos]) < 0 {
			p.pos++
		}
		out.length, err = strconv.ParseFloat(p.s[start:p.pos], 64)
		if err != nil || out.length < 0 {
			return nil, p.errorf("bad branch length %q", p.s[start:p.pos])
		}
		out.hasLength = true
		// some writers annotate after the branch length
		if len(annotations) == 0 {
			if annotations, err = p.annotations(); err != nil {
				return nil, err
			}
		}
	}

	if len(children) == 0 {
		if label == "" {
			return nil, p.errorf("leaf without a label")
		}
		out.node = NewLeaf(label)
		return out, nil
	}
	if len(children) < 2 {
		return nil, p.errorf("internal node with a single child")
	}

	if v, ok := annotations["height"]; ok {
		out.height, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, p.errorf("bad height %q", v)
		}
	} else {
		for _, c := range children {
			if !c.hasLength {
				return nil, p.errorf("node needs a height annotation or child branch lengths")
			}
			out.height = math.Max(out.height, c.height+c.length)
		}
	}

	var h *Height
	if key, ok := annotations["height_index"]; ok {
		h = p.groups[key]
		if h == nil {
			h = NewHeight(out.height)
			p.groups[key] = h
		} else if math.Abs(h.value-out.height) > 1e-9*math.Max(1, h.value) {
			return nil, p.errorf("height_index %s has heights %v and %v", key, h.value, out.height)
		}
		out.height = h.value
	} else {
		h = NewHeight(out.height)
	}
	nodes := make([]*Node, len(children))
	for i, c := range children {
		nodes[i] = c.node
	}
	out.node = NewNode(label, h, nodes...)
	return out, nil
}

func (p *parser) label() (string, error) {
	if p.peek() == '\'' {
		p.pos++
		end := strings.IndexByte(p.s[p.pos:], '\'')
		if end < 0 {
			return "", p.errorf("unterminated quoted label")
		}
		label := p.s[p.pos : p.pos+end]
		p.pos += end + 1
		return label, nil
	}
	start := p.pos
	for p.pos < len(p.s) && strings.IndexByte(labelStops, p.s[p.pos]) < 0 {
		p.pos++
	}
	return p.s[start:p.pos], nil
}

// annotations reads an optional [&key=value,...] comment. Values may hold
// commas inside braces.
func (p *parser) annotations() (map[string]string, error) {
	if p.peek() != '[' {
		return nil, nil
	}
	end := strings.IndexByte(p.s[p.pos:], ']')
	if end < 0 {
		return nil, p.errorf("unterminated annotation")
	}
	body := p.s[p.pos+1 : p.pos+end]
	p.pos += end + 1
	if !strings.HasPrefix(body, "&") {
		return nil, nil
	}

	out := make(map[string]string)
	depth, start := 0, 1
	for i := 1; i <= len(body); i++ {
		if i < len(body) {
			switch body[i] {
			case '{':
				depth++
				continue
			case '}':
				depth--
				continue
			case ',':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}
		kv := strings.SplitN(body[start:i], "=", 2)
		if len(kv) == 2 {
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
		start = i + 1
	}
	return out, nil
}

// String renders the tree in bracketed notation with children ordered by
// their smallest leaf index.
func (t *Tree) String() string {
	var b strings.Builder
	position := make(map[HeightID]int, len(t.index))
	for i, id := range t.index {
		position[id] = i
	}
	first := t.firstLeaves()
	t.write(&b, t.root, position, first)
	b.WriteByte(';')
	return b.String()
}

func (t *Tree) Write(w io.Writer) error {
	_, err := io.WriteString(w, t.String())
	return err
}

func (t *Tree) firstLeaves() map[*Node]int {
	nodes := t.Nodes()
	first := make(map[*Node]int, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.IsLeaf() {
			first[n] = n.leaf
			continue
		}
		lowest := len(t.leaves)
		for _, c := range n.children {
			if first[c] < lowest {
				lowest = first[c]
			}
		}
		first[n] = lowest
	}
	return first
}

func (t *Tree) write(b *strings.Builder, n *Node, position map[HeightID]int, first map[*Node]int) {
	if !n.IsLeaf() {
		children := append([]*Node(nil), n.children...)
		sort.Slice(children, func(i, j int) bool {
			return first[children[i]] < first[children[j]]
		})
		b.WriteByte('(')
		for i, c := range children {
			if i > 0 {
				b.WriteByte(',')
			}
			t.write(b, c, position, first)
		}
		b.WriteByte(')')
	}
	writeLabel(b, n.label)
	if !n.IsLeaf() {
		fmt.Fprintf(b, "[&height_index=%d,height=%s]", position[n.height], formatFloat(n.Height()))
	}
	if n.parent != nil {
		b.WriteByte(':')
		b.WriteString(formatFloat(n.parent.Height() - n.Height()))
	}
}

func writeLabel(b *strings.Builder, label string) {
	if strings.ContainsAny(label, labelStops+"'") {
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(label, "'", ""))
		b.WriteByte('\'')
		return
	}
	b.WriteString(label)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Comb builds the tree whose n leaves all hang from a root at height.
// Leaves are labelled T1..Tn, zero padded so label order matches.
func Comb(n int, height float64, opts ...Option) (*Tree, error) {
	if n < 2 {
		return nil, errors.Wrapf(ErrTooFewLeaves, "comb with %d leaves", n)
	}
	width := len(strconv.Itoa(n))
	leaves := make([]*Node, n)
	for i := range leaves {
		leaves[i] = NewLeaf(fmt.Sprintf("T%0*d", width, i+1))
	}
	return New(NewNode("", NewHeight(height), leaves...), opts...)
}
