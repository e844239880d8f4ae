package addons

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// disallowedNodes selects elements that never survive sanitizing.
var disallowedNodes = xpath.MustCompile("//script | //style | //iframe | //object | //embed | //form | //link | //meta")

// sanitizeHTML strips active content from a readme section fragment.
func sanitizeHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return html.EscapeString(fragment)
	}

	doc := &html.Node{Type: html.DocumentNode}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	doc.AppendChild(container)
	for _, n := range nodes {
		container.AppendChild(n)
	}

	// Collect first, the tree must not change while the iterator walks it.
	var remove []*html.Node
	iter := disallowedNodes.Select(&nodeNavigator{root: doc, node: doc})
	for iter.MoveNext() {
		if nav, ok := iter.Current().(*nodeNavigator); ok && nav.node.Type == html.ElementNode {
			remove = append(remove, nav.node)
		}
	}
	for _, n := range remove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	sel := goquery.NewDocumentFromNode(container).Selection
	sel.Find("*").Each(func(_ int, s *goquery.Selection) {
		var drop []string
		for _, attr := range s.Nodes[0].Attr {
			key := strings.ToLower(attr.Key)
			switch {
			case strings.HasPrefix(key, "on"):
				drop = append(drop, attr.Key)
			case (key == "href" || key == "src") && unsafeURL(attr.Val):
				drop = append(drop, attr.Key)
			}
		}
		for _, key := range drop {
			s.RemoveAttr(key)
		}
	})
	sel.Find("a[href]").SetAttr("rel", "noopener noreferrer")

	out, err := sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func unsafeURL(val string) bool {
	v := strings.ToLower(strings.TrimSpace(val))
	v = strings.Map(func(r rune) rune {
		if r < 0x20 || r == ' ' {
			return -1
		}
		return r
	}, v)
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:") ||
		(strings.HasPrefix(v, "data:") && !strings.HasPrefix(v, "data:image/"))
}

// nodeNavigator implements xpath.NodeNavigator over an x/net/html tree.
// pos > 0 means the navigator sits on attribute pos-1 of the element.
type nodeNavigator struct {
	root *html.Node
	node *html.Node
	pos  int
}

func (n *nodeNavigator) NodeType() xpath.NodeType {
	switch n.node.Type {
	case html.DocumentNode:
		return xpath.RootNode
	case html.ElementNode:
		if n.pos > 0 && n.pos <= len(n.node.Attr) {
			return xpath.AttributeNode
		}
		return xpath.ElementNode
	case html.TextNode:
		return xpath.TextNode
	case html.CommentNode:
		return xpath.CommentNode
	default:
		return xpath.ElementNode
	}
}

func (n *nodeNavigator) LocalName() string {
	if n.node.Type == html.ElementNode {
		if n.pos > 0 && n.pos <= len(n.node.Attr) {
			return n.node.Attr[n.pos-1].Key
		}
		return n.node.Data
	}
	return ""
}

func (n *nodeNavigator) Prefix() string {
	return ""
}

func (n *nodeNavigator) Value() string {
	switch n.node.Type {
	case html.TextNode, html.CommentNode:
		return n.node.Data
	case html.ElementNode:
		if n.pos > 0 && n.pos <= len(n.node.Attr) {
			return n.node.Attr[n.pos-1].Val
		}
		var b strings.Builder
		collectText(n.node, &b)
		return b.String()
	}
	return ""
}

func collectText(node *html.Node, b *strings.Builder) {
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func (n *nodeNavigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *nodeNavigator) MoveToRoot() {
	n.node = n.root
	n.pos = 0
}

func (n *nodeNavigator) MoveToParent() bool {
	if n.pos > 0 {
		n.pos = 0
		return true
	}
	if n.node.Parent != nil {
		n.node = n.node.Parent
		return true
	}
	return false
}

func (n *nodeNavigator) MoveToNextAttribute() bool {
	if n.node.Type == html.ElementNode && n.pos < len(n.node.Attr) {
		n.pos++
		return true
	}
	return false
}

func (n *nodeNavigator) MoveToChild() bool {
	if n.pos > 0 {
		return false
	}
	if n.node.FirstChild != nil {
		n.node = n.node.FirstChild
		return true
	}
	return false
}

func (n *nodeNavigator) MoveToFirst() bool {
	if n.pos > 0 || n.node.PrevSibling == nil {
		return false
	}
	for n.node.PrevSibling != nil {
		n.node = n.node.PrevSibling
	}
	return true
}

func (n *nodeNavigator) MoveToNext() bool {
	if n.pos > 0 || n.node.NextSibling == nil {
		return false
	}
	n.node = n.node.NextSibling
	return true
}

func (n *nodeNavigator) MoveToPrevious() bool {
	if n.pos > 0 || n.node.PrevSibling == nil {
		return false
	}
	n.node = n.node.PrevSibling
	return true
}

func (n *nodeNavigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*nodeNavigator)
	if !ok || o.root != n.root {
		return false
	}
	n.node = o.node
	n.pos = o.pos
	return true
}

func (n *nodeNavigator) String() string {
	return n.Value()
}
