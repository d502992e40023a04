package docgen

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlRenderer converts an HTML fragment into paragraphs placed through
// the builder. Inline content outside any block tag lands in an implicit
// Normal paragraph.
type htmlRenderer struct {
	b *builder
	// open is the paragraph receiving inline content, if any.
	open    *etree.Element
	atStart bool
	space   bool
}

// renderHTML renders src after the builder cursor. A leading h3 whose text
// equals skipHeading is dropped; the subsection title was already written.
func (b *builder) renderHTML(src, skipHeading string) error {
	nodes, err := html.ParseFragment(strings.NewReader(src), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	r := &htmlRenderer{b: b}
	skip := normalizeText(skipHeading)
	leading := true
	for _, n := range nodes {
		if leading {
			if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
				continue
			}
			leading = false
			if skip != "" && n.Type == html.ElementNode && n.DataAtom == atom.H3 &&
				strings.EqualFold(normalizeText(textContent(n)), skip) {
				continue
			}
		}
		if err := r.block(n); err != nil {
			return err
		}
	}
	r.close()
	return nil
}

func (r *htmlRenderer) block(n *html.Node) error {
	switch n.Type {
	case html.TextNode:
		return r.text(n.Data, docx.RunProps{})
	case html.ElementNode:
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.H3:
		return r.paragraphOf(n, r.b.headingStyle(3))
	case atom.P:
		return r.paragraphOf(n, "Normal")
	case atom.Ul, atom.Ol:
		r.close()
		return r.list(n)
	case atom.Br:
		if r.open != nil {
			docx.AddBreak(r.open, "")
			r.space = true
			return nil
		}
		if _, err := r.b.paragraph("Normal"); err != nil {
			return err
		}
		return nil
	case atom.Img:
		r.close()
		return r.image(n)
	case atom.Div, atom.Section, atom.Article:
		r.close()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := r.block(c); err != nil {
				return err
			}
		}
		r.close()
		return nil
	}

	if isInline(n.DataAtom) {
		return r.inline(n, docx.RunProps{})
	}

	// Anything else is flattened to its text.
	r.close()
	text := normalizeText(textContent(n))
	if text == "" {
		return nil
	}
	p, err := r.b.paragraph("Normal")
	if err != nil {
		return err
	}
	docx.AddRun(p, text, docx.RunProps{})
	return nil
}

func (r *htmlRenderer) paragraphOf(n *html.Node, style string) error {
	r.close()
	if err := r.start(style); err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := r.inline(c, docx.RunProps{}); err != nil {
			return err
		}
	}
	r.close()
	return nil
}

func (r *htmlRenderer) list(n *html.Node) error {
	ordered := n.DataAtom == atom.Ol
	styleName := "List Bullet"
	if ordered {
		styleName = "List Number"
	}
	ref, err := r.b.style(styleName)
	if err != nil {
		return err
	}

	index := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode {
			continue
		}
		if li.DataAtom != atom.Li {
			if err := r.block(li); err != nil {
				return err
			}
			continue
		}
		index++
		if err := r.start(styleName); err != nil {
			return err
		}
		// Templates without list styles get a literal marker.
		if ref.created {
			marker := "• "
			if ordered {
				marker = fmt.Sprintf("%d. ", index)
			}
			docx.AddRun(r.open, marker, docx.RunProps{})
			r.atStart = false
			r.space = true
		}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if err := r.inline(c, docx.RunProps{}); err != nil {
				return err
			}
		}
		r.close()
	}
	return nil
}

func (r *htmlRenderer) inline(n *html.Node, rp docx.RunProps) error {
	switch n.Type {
	case html.TextNode:
		return r.text(n.Data, rp)
	case html.ElementNode:
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.Strong, atom.B:
		rp.Bold = true
	case atom.Em, atom.I:
		rp.Italic = true
	case atom.U:
		rp.Underline = true
	case atom.Br:
		if err := r.ensureOpen(); err != nil {
			return err
		}
		docx.AddBreak(r.open, "")
		r.space = true
		return nil
	case atom.Img:
		r.close()
		return r.image(n)
	case atom.Ul, atom.Ol:
		r.close()
		return r.list(n)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := r.inline(c, rp); err != nil {
			return err
		}
	}
	return nil
}

func (r *htmlRenderer) text(s string, rp docx.RunProps) error {
	if r.open == nil && strings.TrimSpace(s) == "" {
		return nil
	}
	if err := r.ensureOpen(); err != nil {
		return err
	}
	s = collapseSpace(s)
	if r.atStart || r.space {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return nil
	}
	docx.AddRun(r.open, s, rp)
	r.atStart = false
	r.space = strings.HasSuffix(s, " ")
	return nil
}

func (r *htmlRenderer) image(n *html.Node) error {
	for _, attr := range n.Attr {
		if attr.Key == "src" && strings.TrimSpace(attr.Val) != "" {
			return r.b.image(attr.Val)
		}
	}
	return nil
}

func (r *htmlRenderer) ensureOpen() error {
	if r.open != nil {
		return nil
	}
	return r.start("Normal")
}

func (r *htmlRenderer) start(style string) error {
	p, err := r.b.paragraph(style)
	if err != nil {
		return err
	}
	r.open = p
	r.atStart = true
	r.space = false
	return nil
}

// close ends the open paragraph, trimming its trailing space.
func (r *htmlRenderer) close() {
	if r.open == nil {
		return
	}
	if nodes := docx.Descendants(r.open, "w", "t"); len(nodes) > 0 {
		last := nodes[len(nodes)-1]
		last.SetText(strings.TrimRight(last.Text(), " "))
	}
	r.open = nil
}

func isInline(a atom.Atom) bool {
	switch a {
	case atom.Strong, atom.B, atom.Em, atom.I, atom.U, atom.Span, atom.A,
		atom.Sub, atom.Sup, atom.Code, atom.Small, atom.Mark, atom.Font, atom.S, atom.Abbr:
		return true
	}
	return false
}

// collapseSpace folds whitespace runs into single spaces, keeping one
// leading and trailing space when present.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if first, _ := utf8.DecodeRuneInString(s); unicode.IsSpace(first) {
		out = " " + out
	}
	if last, _ := utf8.DecodeLastRuneInString(s); unicode.IsSpace(last) {
		out += " "
	}
	return out
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			sb.WriteString(" ")
			continue
		}
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
