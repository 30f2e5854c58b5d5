package decode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	reNumber     = regexp.MustCompile(`^[.+\-]?[\d.]+$`)
	reInvalidDec = regexp.MustCompile(`(?:\.\d*){2,}`)
)

// ParseNumber converts numeric-looking text into a float64 and returns
// anything else unchanged. Text with more than one decimal point (version
// strings, IP addresses) stays a string.
func ParseNumber(s string) any {
	if !reNumber.MatchString(s) || reInvalidDec.MatchString(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

// XML decodes a document into nested maps keyed by element name. Leaf
// elements become their (number-coerced) text, repeated siblings become
// arrays and attributes are merged alongside child elements.
func XML(data []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			} else if root == nil {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return map[string]any{root.name: root.value()}, nil
}

func (n *xmlNode) value() any {
	text := strings.TrimSpace(n.text.String())
	if len(n.children) == 0 && len(n.attrs) == 0 {
		return ParseNumber(text)
	}

	obj := make(map[string]any, len(n.children)+len(n.attrs))
	for _, attr := range n.attrs {
		obj[attr.Name.Local] = ParseNumber(attr.Value)
	}
	seen := make(map[string]int, len(n.children))
	for _, child := range n.children {
		v := child.value()
		switch seen[child.name] {
		case 0:
			obj[child.name] = v
		case 1:
			obj[child.name] = []any{obj[child.name], v}
		default:
			obj[child.name] = append(obj[child.name].([]any), v)
		}
		seen[child.name]++
	}
	if len(n.children) == 0 && text != "" {
		obj["value"] = ParseNumber(text)
	}
	return obj
}
