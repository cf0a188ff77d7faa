package procedures

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags may appear in stored procedures. Other elements are unwrapped
// to their text, except droppedTags which are removed with their content.
var allowedTags = map[string][]string{
	"h1": nil, "h2": nil, "h3": nil, "h4": nil,
	"p": nil, "br": nil, "hr": nil, "blockquote": nil,
	"ul": nil, "ol": nil, "li": nil,
	"strong": nil, "em": nil, "b": nil, "i": nil, "u": nil,
	"code": nil, "pre": nil,
	"table": nil, "thead": nil, "tbody": nil, "tr": nil,
	"th": {"colspan", "rowspan"}, "td": {"colspan", "rowspan"},
}

var droppedTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true, "embed": true,
	"form": true, "input": true, "button": true, "textarea": true, "select": true,
	"link": true, "meta": true, "head": true, "title": true, "noscript": true,
	"svg": true, "math": true, "img": true, "video": true, "audio": true,
}

// allowedTagList returns the allow-list for the prompt.
func allowedTagList() string {
	tags := make([]string, 0, len(allowedTags))
	for tag := range allowedTags {
		tags = append(tags, "<"+tag+">")
	}
	sort.Strings(tags)
	return strings.Join(tags, ", ")
}

// stripFences removes a markdown code fence wrapped around the model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Sanitize parses an HTML fragment and re-renders only allow-listed tags and
// attributes.
func Sanitize(fragment string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		copyClean(root, n)
	}

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// copyClean appends the sanitised form of n to parent.
func copyClean(parent, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		parent.AppendChild(&html.Node{Type: html.TextNode, Data: n.Data})
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if droppedTags[tag] {
			return
		}
		attrs, ok := allowedTags[tag]
		if !ok {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				copyClean(parent, c)
			}
			return
		}
		el := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		for _, a := range n.Attr {
			if a.Namespace == "" && contains(attrs, strings.ToLower(a.Key)) {
				el.Attr = append(el.Attr, html.Attribute{Key: strings.ToLower(a.Key), Val: a.Val})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			copyClean(el, c)
		}
		parent.AppendChild(el)
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			copyClean(parent, c)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseBody(fragment string) []*html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil
	}
	return nodes
}

// plainText returns the text content of a sanitised fragment.
func plainText(fragment string) string {
	var b strings.Builder
	for _, n := range parseBody(fragment) {
		b.WriteString(textContent(n))
	}
	return b.String()
}

// firstHeading returns the text of the first h1 in a sanitised fragment.
func firstHeading(fragment string) string {
	nodes := parseBody(fragment)

	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.H1 {
			return strings.TrimSpace(textContent(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	for _, n := range nodes {
		if t := find(n); t != "" {
			return t
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
