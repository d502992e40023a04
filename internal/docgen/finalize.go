package docgen

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

const spacerParagraphs = 2

// textEscaper matches how the serializer writes character data.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ReattachAboutBlock appends the detached nodes at the end of the body,
// after spacer paragraphs and a page break. It does nothing for an empty
// block.
func ReattachAboutBlock(doc *docx.Document, detached []*etree.Element) error {
	if len(detached) == 0 {
		return nil
	}
	body, err := doc.Body()
	if err != nil {
		return err
	}

	nodes := make([]*etree.Element, 0, len(detached)+spacerParagraphs+1)
	for i := 0; i < spacerParagraphs; i++ {
		nodes = append(nodes, docx.NewParagraph(""))
	}
	pageBreak := docx.NewParagraph("")
	docx.AddBreak(pageBreak, "page")
	nodes = append(nodes, pageBreak)
	nodes = append(nodes, detached...)

	docx.Append(body, nodes...)
	return nil
}

// SweepPlaceholders replaces every placeholder left in the body, headers
// and footers with title and strips the About sentinel. Matches split over
// several runs of one paragraph are handled, and text already reading title
// is not touched again. It returns the number of replacements.
func SweepPlaceholders(doc *docx.Document, title string, opts Options) (int, error) {
	placeholders := foldPattern(opts.Placeholders...)
	sentinel := foldPattern(opts.Sentinel)

	parts := append([]string{doc.MainPartName()}, doc.HeaderFooterParts()...)
	total := 0
	for _, name := range parts {
		part, err := doc.Part(name)
		if err != nil {
			return total, err
		}
		if part.Root() == nil {
			continue
		}
		for _, group := range paragraphGroups(part.Root()) {
			total += replaceAcross(group, placeholders, title, title)
			total += replaceAcross(group, sentinel, "", "")
		}
	}
	return total, nil
}

// SweepSerialized runs the placeholder sweep once more over the raw XML of
// the named parts of a serialized package.
func SweepSerialized(data []byte, parts []string, title string, opts Options) ([]byte, error) {
	placeholders := foldPattern(opts.Placeholders...)
	sentinel := foldPattern(opts.Sentinel)

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(title)); err != nil {
		return nil, err
	}

	return docx.RewriteParts(data, parts, func(_ string, content []byte) []byte {
		content = replaceLiteral(placeholders, content, escaped.Bytes(), textEscaper.Replace(title))
		return replaceLiteral(sentinel, content, nil, "")
	})
}

// replaceLiteral replaces the matches of re that do not overlap keep.
func replaceLiteral(re *regexp.Regexp, content, repl []byte, keep string) []byte {
	if re == nil {
		return content
	}
	matches := outside(re.FindAllIndex(content, -1), string(content), keep)
	if len(matches) == 0 {
		return content
	}
	var out bytes.Buffer
	last := 0
	for _, m := range matches {
		out.Write(content[last:m[0]])
		out.Write(repl)
		last = m[1]
	}
	out.Write(content[last:])
	return out.Bytes()
}
