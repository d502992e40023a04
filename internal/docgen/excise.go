package docgen

import (
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// ExciseSections clears the template content under each target heading.
// The heading paragraph is kept and returned keyed by target so insertion
// can reuse it. Targets without a heading are skipped silently. Paragraphs
// in skip, such as the placed title, never count as a section heading.
func ExciseSections(doc *docx.Document, opts Options, skip ...*etree.Element) (map[string]*etree.Element, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}

	h := headings{doc: doc, prefix: opts.HeadingPrefix}
	retained := make(map[string]*etree.Element, len(opts.SectionTargets))
	for _, target := range opts.SectionTargets {
		heading := findHeading(body, h, target, skip)
		if heading == nil {
			continue
		}
		docx.RemoveFollowing(heading, h.boundary(heading, opts.ExciseSubheadings))
		retained[target] = heading
	}
	return retained, nil
}

// findHeading returns the first heading outside skip whose text contains
// target.
func findHeading(body *etree.Element, h headings, target string, skip []*etree.Element) *etree.Element {
	for _, el := range docx.Blocks(body) {
		if contains(skip, el) {
			continue
		}
		if h.is(el) && strings.Contains(docx.ParagraphText(el), target) {
			return el
		}
	}
	return nil
}

func contains(els []*etree.Element, el *etree.Element) bool {
	for _, e := range els {
		if e != nil && e == el {
			return true
		}
	}
	return false
}
