package docgen

import (
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// TitlePlacement reports where SetTitle wrote the title.
type TitlePlacement int

const (
	TitleNotPlaced TitlePlacement = iota
	TitleInHeading
	TitleInPlaceholder
)

// SetTitle writes title into the first top-level heading paragraph, or
// failing that into the first text run holding a known placeholder.
// Paragraphs whose text is itself a reserved heading (Contents, the content
// sections, About) are never treated as the title. Calling it again with the
// same title leaves the document unchanged.
func SetTitle(doc *docx.Document, title string, opts Options) (TitlePlacement, error) {
	placed, _, err := placeTitle(doc, title, opts)
	return placed, err
}

// placeTitle is SetTitle that also returns the paragraph now holding the
// title, so later stages can leave it alone.
func placeTitle(doc *docx.Document, title string, opts Options) (TitlePlacement, *etree.Element, error) {
	body, err := doc.Body()
	if err != nil {
		return TitleNotPlaced, nil, err
	}

	titleStyle := opts.HeadingPrefix + " 1"
	reserved := reservedHeadings(opts)
	for _, el := range docx.Blocks(body) {
		if !docx.IsParagraph(el) || !strings.HasPrefix(doc.ParagraphStyleName(el), titleStyle) {
			continue
		}
		if reserved(docx.ParagraphText(el)) {
			continue
		}
		writeTitle(el, title, opts)
		return TitleInHeading, el, nil
	}

	pattern := foldPattern(opts.Placeholders...)
	if pattern == nil {
		return TitleNotPlaced, nil, nil
	}
	for _, el := range docx.Blocks(body) {
		for _, t := range docx.TextNodes(el) {
			text := t.Text()
			matches := outside(pattern.FindAllStringIndex(text, -1), text, title)
			if len(matches) == 0 {
				continue
			}
			loc := matches[0]
			t.SetText(text[:loc[0]] + title + text[loc[1]:])
			if t.Space == "w" && t.SelectAttr("xml:space") == nil {
				t.CreateAttr("xml:space", "preserve")
			}
			return TitleInPlaceholder, enclosingParagraph(t, el), nil
		}
	}
	return TitleNotPlaced, nil, nil
}

// enclosingParagraph returns the nearest paragraph above t, or block when
// there is none.
func enclosingParagraph(t, block *etree.Element) *etree.Element {
	for el := t.Parent(); el != nil; el = el.Parent() {
		if docx.IsParagraph(el) {
			return el
		}
		if el == block {
			break
		}
	}
	return block
}

func writeTitle(p *etree.Element, title string, opts Options) {
	docx.ClearRuns(p)
	docx.AddRun(p, title, docx.RunProps{Bold: true, HalfPoints: opts.TitleHalfPoints})
}

func reservedHeadings(opts Options) func(text string) bool {
	var names []string
	names = append(names, opts.ContentsTitles...)
	names = append(names, opts.AboutTitles...)
	names = append(names, opts.SectionTargets...)
	return func(text string) bool {
		text = strings.ToLower(normalizeText(text))
		if text == "" {
			return false
		}
		for _, n := range names {
			if text == strings.ToLower(n) {
				return true
			}
		}
		return false
	}
}
