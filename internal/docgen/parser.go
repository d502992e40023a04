package docgen

import (
	"regexp"
	"strings"

	"gcloud-docgen/internal/docx"

	"golang.org/x/net/html"
)

var numberPrefix = regexp.MustCompile(`^[\s\p{Z}]*(?:\d+[\s\p{Z}]*[.)]|•)[\s\p{Z}]*`)

// StripNumberPrefix removes list numbering such as "1. ", "2) " or a
// bullet from the start of s. Non-breaking and thin spaces count as
// whitespace.
func StripNumberPrefix(s string) string {
	return strings.TrimSpace(numberPrefix.ReplaceAllString(s, ""))
}

// Parse reads a service description back into a payload: the title is the
// first Heading 1, and paragraphs are assigned to the section heading they
// follow. Heading 3 paragraphs open service definition subsections. Parsing
// stops at the About block.
func Parse(data []byte, opts Options) (*Payload, error) {
	doc, err := docx.Open(data)
	if err != nil {
		return nil, err
	}
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}

	h := headings{doc: doc, prefix: opts.HeadingPrefix}
	out := &Payload{}
	section := ""
	var sub *Subsection
	var content []string

	flush := func() {
		if sub == nil {
			return
		}
		sub.Content = strings.Join(content, "")
		out.ServiceDefinition = append(out.ServiceDefinition, *sub)
		sub, content = nil, nil
	}

	for _, el := range docx.Blocks(body) {
		if !docx.IsParagraph(el) {
			continue
		}
		text := strings.TrimSpace(docx.ParagraphText(el))
		if text == "" {
			continue
		}

		if h.is(el) {
			lower := strings.ToLower(text)
			if isAboutTitle(lower, opts) {
				break
			}
			level := h.level(el)
			switch {
			case out.Title == "" && level == 1 && !reservedHeadings(opts)(text):
				out.Title = text
				continue
			case strings.Contains(lower, strings.ToLower(SectionShortDescription)):
				flush()
				section = SectionShortDescription
				continue
			case strings.Contains(lower, strings.ToLower(SectionFeatures)):
				flush()
				section = SectionFeatures
				continue
			case strings.Contains(lower, strings.ToLower(SectionBenefits)):
				flush()
				section = SectionBenefits
				continue
			case strings.Contains(lower, strings.ToLower(SectionDefinition)):
				flush()
				section = SectionDefinition
				continue
			case level == 3:
				flush()
				section = SectionDefinition
				sub = &Subsection{Subtitle: text}
				continue
			}
		}

		switch section {
		case SectionShortDescription:
			if out.Description != "" {
				out.Description += " "
			}
			out.Description += text
		case SectionFeatures:
			if item := StripNumberPrefix(text); item != "" {
				out.Features = append(out.Features, item)
			}
		case SectionBenefits:
			if item := StripNumberPrefix(text); item != "" {
				out.Benefits = append(out.Benefits, item)
			}
		case SectionDefinition:
			if sub != nil {
				content = append(content, "<p>"+html.EscapeString(text)+"</p>")
			}
		}
	}
	flush()

	return out, nil
}

func isAboutTitle(lower string, opts Options) bool {
	for _, title := range opts.AboutTitles {
		if title != "" && strings.HasPrefix(lower, strings.ToLower(title)) {
			return true
		}
	}
	return false
}
