package docgen

import (
	"context"
	"fmt"
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// Insertion is the input of InsertContent.
type Insertion struct {
	Payload Payload
	// Retained maps section targets to the template headings kept by
	// ExciseSections. They are moved into place instead of duplicated.
	Retained map[string]*etree.Element
	// RepeatTitle adds a Heading 1 with the title ahead of the sections.
	RepeatTitle bool
	Fetcher     ImageFetcher
}

// InsertContent builds the content sections right after the Contents
// region, or after the last body block when the template has none. Every
// node is placed with insert-after so the resulting order is exact. It
// returns the last inserted node and the best-effort failures met on the
// way.
func InsertContent(ctx context.Context, doc *docx.Document, in Insertion, opts Options) (*etree.Element, []*RecoverableError, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, nil, err
	}

	h := headings{doc: doc, prefix: opts.HeadingPrefix}
	b := &builder{
		ctx:    ctx,
		doc:    doc,
		body:   body,
		opts:   opts,
		cursor: contentsAnchor(body, h, opts),
		styles: map[string]styleRef{},
		images: &imageEmbedder{doc: doc, fetcher: in.Fetcher, maxWidth: opts.MaxImageWidthEMU, maxPixels: opts.MaxImagePixels},
	}

	p := in.Payload
	if in.RepeatTitle {
		if _, err := b.heading(1, p.Title); err != nil {
			return nil, nil, err
		}
	}

	if err := b.section(SectionShortDescription, in.Retained); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(p.Description) != "" {
		para, err := b.paragraph("Normal")
		if err != nil {
			return nil, nil, err
		}
		docx.AddRun(para, strings.TrimSpace(p.Description), docx.RunProps{})
	}

	if err := b.section(SectionFeatures, in.Retained); err != nil {
		return nil, nil, err
	}
	if err := b.numbered(p.Features); err != nil {
		return nil, nil, err
	}

	if err := b.section(SectionBenefits, in.Retained); err != nil {
		return nil, nil, err
	}
	if err := b.numbered(p.Benefits); err != nil {
		return nil, nil, err
	}

	if p.HasServiceDefinition() || in.Retained[SectionDefinition] != nil {
		if err := b.section(SectionDefinition, in.Retained); err != nil {
			return nil, nil, err
		}
		for _, sub := range p.ServiceDefinition {
			if err := b.subsection(sub); err != nil {
				return nil, nil, err
			}
		}
	}

	return b.cursor, b.warnings, nil
}

// contentsAnchor returns the last node of the Contents region: the
// Contents paragraph and whatever follows it up to the next heading.
func contentsAnchor(body *etree.Element, h headings, opts Options) *etree.Element {
	blocks := docx.Blocks(body)
	contents := findContents(blocks, opts)
	if contents == nil {
		if len(blocks) == 0 {
			return nil
		}
		return blocks[len(blocks)-1]
	}
	last := contents
	for el := docx.NextSibling(contents); el != nil && !docx.IsSectPr(el) && !h.is(el); el = docx.NextSibling(el) {
		last = el
	}
	return last
}

// findContents returns the body-level block holding the Contents title:
// the paragraph itself, or a table-of-contents control that wraps it.
func findContents(blocks []*etree.Element, opts Options) *etree.Element {
	for _, el := range blocks {
		switch {
		case docx.IsParagraph(el):
			if isContentsTitle(el, opts) {
				return el
			}
		case docx.IsSdt(el):
			for _, p := range docx.Descendants(el, "w", "p") {
				if isContentsTitle(p, opts) {
					return el
				}
			}
		}
	}
	return nil
}

func isContentsTitle(p *etree.Element, opts Options) bool {
	text := normalizeText(docx.ParagraphText(p))
	for _, title := range opts.ContentsTitles {
		if strings.EqualFold(text, title) {
			return true
		}
	}
	return false
}

type styleRef struct {
	id      string
	created bool
}

// builder places new nodes one after another starting at cursor.
type builder struct {
	ctx      context.Context
	doc      *docx.Document
	body     *etree.Element
	opts     Options
	cursor   *etree.Element
	styles   map[string]styleRef
	images   *imageEmbedder
	warnings []*RecoverableError
}

func (b *builder) warn(err *RecoverableError) {
	b.warnings = append(b.warnings, err)
}

func (b *builder) place(node *etree.Element) {
	if b.cursor == nil {
		docx.Append(b.body, node)
	} else {
		docx.InsertAfter(b.cursor, node)
	}
	b.cursor = node
}

func (b *builder) style(name string) (styleRef, error) {
	if name == "" || name == "Normal" {
		return styleRef{}, nil
	}
	if ref, ok := b.styles[name]; ok {
		return ref, nil
	}
	id, created, err := b.doc.EnsureParagraphStyle(name)
	if err != nil {
		return styleRef{}, fmt.Errorf("style %q: %w", name, err)
	}
	ref := styleRef{id: id, created: created}
	b.styles[name] = ref
	return ref, nil
}

// paragraph places an empty paragraph with the named style.
func (b *builder) paragraph(styleName string) (*etree.Element, error) {
	ref, err := b.style(styleName)
	if err != nil {
		return nil, err
	}
	p := docx.NewParagraph(ref.id)
	if b.opts.SpaceAfter > 0 {
		docx.SetSpacingAfter(p, b.opts.SpaceAfter)
	}
	b.place(p)
	return p, nil
}

func (b *builder) headingStyle(level int) string {
	return fmt.Sprintf("%s %d", b.opts.HeadingPrefix, level)
}

func (b *builder) heading(level int, text string) (*etree.Element, error) {
	p, err := b.paragraph(b.headingStyle(level))
	if err != nil {
		return nil, err
	}
	docx.AddRun(p, text, docx.RunProps{})
	return p, nil
}

// section moves the retained heading for target into place, or creates a
// level 2 heading when the template had none.
func (b *builder) section(target string, retained map[string]*etree.Element) error {
	if el := retained[target]; el != nil {
		if b.opts.SpaceAfter > 0 {
			docx.SetSpacingAfter(el, b.opts.SpaceAfter)
		}
		if el != b.cursor {
			b.place(el)
		}
		return nil
	}
	_, err := b.heading(2, target)
	return err
}

// numbered writes one paragraph per item, prefixed "N. " in a bold colored
// run. Numbering starts at 1 on every call.
func (b *builder) numbered(items []string) error {
	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n++
		p, err := b.paragraph("Normal")
		if err != nil {
			return err
		}
		docx.AddRun(p, fmt.Sprintf("%d. ", n), docx.RunProps{Bold: true, Color: b.opts.NumeralColor})
		docx.AddRun(p, item, docx.RunProps{})
	}
	return nil
}

func (b *builder) subsection(sub Subsection) error {
	if title := strings.TrimSpace(sub.Subtitle); title != "" {
		if _, err := b.heading(3, title); err != nil {
			return err
		}
	}
	if strings.TrimSpace(sub.Content) != "" {
		skip := ""
		if b.opts.DropRepeatedSubtitle {
			skip = sub.Subtitle
		}
		if err := b.renderHTML(sub.Content, skip); err != nil {
			return err
		}
	}
	for _, src := range sub.Images {
		if strings.TrimSpace(src) == "" {
			continue
		}
		if err := b.image(src); err != nil {
			return err
		}
	}

	rows, err := sub.tableText()
	if err != nil {
		b.warn(&RecoverableError{Stage: StageContentInserted, Kind: KindTableMalformed, Subject: sub.Subtitle, Err: err})
		return nil
	}
	if rows == nil {
		return nil
	}
	tbl := docx.NewTable(rows, docx.TableOptions{HeaderRow: true, SpaceAfter: b.opts.SpaceAfter})
	if tbl == nil {
		b.warn(&RecoverableError{Stage: StageContentInserted, Kind: KindTableMalformed, Subject: sub.Subtitle,
			Err: fmt.Errorf("table has no columns")})
		return nil
	}
	b.place(tbl)
	return nil
}

// image places a paragraph holding src, or its text placeholder when the
// picture cannot be embedded.
func (b *builder) image(src string) error {
	p, err := b.paragraph("Normal")
	if err != nil {
		return err
	}
	if werr := b.images.embed(b.ctx, p, src); werr != nil {
		docx.AddRun(p, imagePlaceholder(src), docx.RunProps{})
		b.warn(werr)
	}
	return nil
}
