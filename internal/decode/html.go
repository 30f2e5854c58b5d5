package decode

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var headings = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// HTMLHeading extracts the text of the first h1-h6 element as
// {"result": text}. Legacy endpoints answer with a bare HTML status page.
func HTMLHeading(data []byte) (any, error) {
	z := html.NewTokenizer(bytes.NewReader(data))

	var (
		inside atom.Atom
		text   strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			return map[string]any{"result": strings.TrimSpace(text.String())}, nil
		case html.StartTagToken:
			tok := z.Token()
			if inside == 0 && headings[tok.DataAtom] {
				inside = tok.DataAtom
			}
		case html.EndTagToken:
			tok := z.Token()
			if inside != 0 && tok.DataAtom == inside {
				return map[string]any{"result": strings.TrimSpace(text.String())}, nil
			}
		case html.TextToken:
			if inside != 0 {
				text.Write(z.Text())
			}
		}
	}
}
