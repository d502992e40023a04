package docxtest

import (
	"strings"

	"gcloud-docgen/internal/docx"
)

// Block is a flattened body child.
type Block struct {
	Kind  string // p, tbl or sdt
	Style string // display style name for paragraphs
	Text  string
	// PageBreak is set for paragraphs that contain a page break.
	PageBreak bool
	// Runs holds the text of each direct run of a paragraph.
	Runs []string
}

// Outline opens data and flattens its body.
func Outline(data []byte) ([]Block, error) {
	doc, err := docx.Open(data)
	if err != nil {
		return nil, err
	}
	return OutlineOf(doc)
}

// OutlineOf flattens the body of an opened document.
func OutlineOf(doc *docx.Document) ([]Block, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}

	var out []Block
	for _, el := range docx.Blocks(body) {
		b := Block{Kind: el.Tag, Text: docx.ParagraphText(el)}
		if docx.IsParagraph(el) {
			b.Style = doc.ParagraphStyleName(el)
			b.PageBreak = docx.HasPageBreakBefore(el)
			for _, r := range el.SelectElements("w:r") {
				b.Runs = append(b.Runs, docx.ParagraphText(r))
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Texts returns the text of every block.
func Texts(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Text
	}
	return out
}

// IndexOf returns the first block whose text equals text, or -1.
func IndexOf(blocks []Block, text string) int {
	for i, b := range blocks {
		if b.Text == text {
			return i
		}
	}
	return -1
}

// Count returns how many blocks have exactly text.
func Count(blocks []Block, text string) int {
	n := 0
	for _, b := range blocks {
		if b.Text == text {
			n++
		}
	}
	return n
}

// AllPartText returns the concatenated raw XML of every word/*.xml part.
func AllPartText(data []byte) (string, error) {
	doc, err := docx.Open(data)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, name := range doc.WordXMLParts() {
		raw, _ := doc.Raw(name)
		sb.Write(raw)
	}
	return sb.String(), nil
}
