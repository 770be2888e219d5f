package syncml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Marshal renders a document tree as XML. When the root is a SyncML element
// the XML declaration and the SyncML 1.1 doctype are emitted, matching what
// the wire codec tools expect as input.
func Marshal(root *Node) []byte {
	var buf bytes.Buffer
	if root.Name == ElemSyncML {
		buf.WriteString(`<?xml version="1.0"?>`)
		buf.WriteString("\n<!DOCTYPE " + DocType + ">\n")
	}
	writeNode(&buf, root)
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *Node) {
	buf.WriteByte('<')
	buf.WriteString(n.Name)
	if len(n.Attrs) > 0 {
		// Stable attribute order keeps output deterministic for tests
		// and for MAC computation over encoded bytes.
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(buf, " %s=%q", k, n.Attrs[k])
		}
	}
	if n.Text == "" && len(n.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if n.Text != "" {
		xml.EscapeText(buf, []byte(n.Text))
	}
	for _, c := range n.Children {
		writeNode(buf, c)
	}
	buf.WriteString("</" + n.Name + ">")
}

// Parse reads XML into a document tree. Character data is trimmed; elements
// keep their document order. The doctype and processing instructions are
// skipped.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := New(t.Name.Local)
			for _, a := range t.Attr {
				name := a.Name.Local
				if a.Name.Space == "xmlns" {
					name = "xmlns:" + a.Name.Local
				} else if a.Name.Local == "xmlns" {
					name = "xmlns"
				}
				n.SetAttr(name, a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse xml: multiple root elements")
				}
				root = n
			} else {
				stack[len(stack)-1].Add(n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse xml: unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				if text := strings.TrimSpace(string(t)); text != "" {
					stack[len(stack)-1].Text += text
				}
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("parse xml: unexpected end of document")
	}
	return root, nil
}
