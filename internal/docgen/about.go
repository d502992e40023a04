package docgen

import (
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// DetachAboutBlock removes the trailing About block from the body and
// returns its nodes in document order. The block starts at the body-level
// node holding the sentinel (the sentinel itself is stripped) or, without
// a sentinel, at the first heading titled like an About section. It runs
// through the end of the body. Headings in skip are not considered. A nil
// slice means no block was found.
func DetachAboutBlock(doc *docx.Document, opts Options, skip ...*etree.Element) ([]*etree.Element, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}

	if start := findSentinel(body, opts.Sentinel); start != nil {
		replaceAcross(docx.TextNodes(start), foldPattern(opts.Sentinel), "", "")
		return docx.DetachFrom(start), nil
	}

	isHeading := headings{doc: doc, prefix: opts.HeadingPrefix}.is
	for _, el := range docx.Blocks(body) {
		if !isHeading(el) || contains(skip, el) {
			continue
		}
		text := strings.ToLower(normalizeText(docx.ParagraphText(el)))
		for _, title := range opts.AboutTitles {
			if title != "" && strings.HasPrefix(text, strings.ToLower(title)) {
				return docx.DetachFrom(el), nil
			}
		}
	}
	return nil, nil
}

// findSentinel returns the first body-level block whose text, including
// text inside shapes, contains sentinel. Runs may split the token.
func findSentinel(body *etree.Element, sentinel string) *etree.Element {
	if sentinel == "" {
		return nil
	}
	for _, el := range docx.Blocks(body) {
		var sb strings.Builder
		for _, t := range docx.TextNodes(el) {
			sb.WriteString(t.Text())
		}
		if strings.Contains(sb.String(), sentinel) {
			return el
		}
	}
	return nil
}
