package messenger

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// previewSkip are elements whose content never belongs in a preview.
var previewSkip = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Head:   true,
}

// PreviewText reduces formatted (HTML) message content to a single
// line of plain text, truncated to maxLen runes with an ellipsis.
// Used to list messages in a readable form; a maxLen of 0 means no
// truncation.
func PreviewText(formatted string, maxLen int) string {
	doc, err := html.Parse(strings.NewReader(formatted))

	var text string
	if err != nil {
		// Not parseable as HTML; treat as plain text.
		text = formatted
	} else {
		var b strings.Builder
		collectText(doc, &b)
		text = b.String()
	}

	text = strings.Join(strings.Fields(text), " ")
	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = strings.TrimSpace(string(runes[:maxLen])) + "…"
		}
	}
	return text
}

// collectText appends the visible text of the node tree to b.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && previewSkip[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
