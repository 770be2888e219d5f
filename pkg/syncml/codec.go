package syncml

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Codec converts between the device's wire bytes and the document tree.
// The engine never inspects wire bytes directly.
type Codec interface {
	Decode(data []byte) (*Node, error)
	Encode(doc *Node) ([]byte, error)
}

// XMLCodec speaks plain XML. Useful against simulators and in tests; real
// handsets send WBXML.
type XMLCodec struct{}

func (XMLCodec) Decode(data []byte) (*Node, error) { return Parse(data) }

func (XMLCodec) Encode(doc *Node) ([]byte, error) { return Marshal(doc), nil }

// WBXMLCodec converts via the libwbxml command line tools, the same way the
// reference deployment does. Tool paths are configurable so packaged
// variants (wbxml2xml.exe, custom prefixes) keep working.
type WBXMLCodec struct {
	DecodeTool string // default "wbxml2xml"
	EncodeTool string // default "xml2wbxml"
}

// NewWBXMLCodec returns a codec using the given tools, falling back to the
// standard libwbxml names when empty.
func NewWBXMLCodec(decodeTool, encodeTool string) *WBXMLCodec {
	if decodeTool == "" {
		decodeTool = "wbxml2xml"
	}
	if encodeTool == "" {
		encodeTool = "xml2wbxml"
	}
	return &WBXMLCodec{DecodeTool: decodeTool, EncodeTool: encodeTool}
}

func (c *WBXMLCodec) Decode(data []byte) (*Node, error) {
	out, err := c.run(c.DecodeTool, data, "-k", "-o", "-", "-")
	if err != nil {
		return nil, fmt.Errorf("wbxml decode: %w", err)
	}
	doc, err := Parse(out)
	if err != nil {
		return nil, fmt.Errorf("wbxml decode: %w", err)
	}
	return doc, nil
}

func (c *WBXMLCodec) Encode(doc *Node) ([]byte, error) {
	out, err := c.run(c.EncodeTool, Marshal(doc), "-v", "1.2", "-o", "-", "-")
	if err != nil {
		return nil, fmt.Errorf("wbxml encode: %w", err)
	}
	return out, nil
}

func (c *WBXMLCodec) run(tool string, input []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(tool, args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", tool, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
