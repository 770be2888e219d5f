package syncml

// Node is one element of a SyncML document: a name, optional text content,
// optional attributes and an ordered list of children. The engine only ever
// reads and writes this tree; the codec owns the byte representation.
type Node struct {
	Name     string
	Text     string
	Attrs    map[string]string
	Children []*Node
}

// New creates an empty element.
func New(name string) *Node {
	return &Node{Name: name}
}

// Text creates a leaf element with text content.
func Text(name, text string) *Node {
	return &Node{Name: name, Text: text}
}

// Add appends children in order and returns n for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// SetAttr sets an attribute and returns n for chaining.
func (n *Node) SetAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// First returns the first child with the given name, or nil.
func (n *Node) First(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// All returns every child with the given name, in document order.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Path walks First for each name in turn; nil if any hop is missing.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		cur = cur.First(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// TextAt returns the text of the node at the given path, or "" if absent.
func (n *Node) TextAt(names ...string) string {
	t := n.Path(names...)
	if t == nil {
		return ""
	}
	return t.Text
}
