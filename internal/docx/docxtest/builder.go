// Package docxtest builds small WordprocessingML packages for tests and
// reads them back as a flat outline.
package docxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"gcloud-docgen/internal/docx"
)

const (
	wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" ` +
		`xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"`

	sectPr = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr>`

	stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="0"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:outlineLvl w:val="2"/></w:pPr></w:style>
<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/><w:basedOn w:val="Normal"/></w:style>
<w:style w:type="character" w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style>
</w:styles>`

	settingsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:zoom w:percent="100"/><w:defaultTabStop w:val="720"/><w:compat/><w:rsids><w:rsidRoot w:val="00000001"/></w:rsids></w:settings>`
)

// Builder accumulates body blocks and optional parts.
type Builder struct {
	blocks      []string
	headers     []string
	footers     []string
	noStyles    bool
	noSettings  bool
	settingsXML string
	styles      []string
}

func New() *Builder {
	return &Builder{}
}

func esc(s string) string {
	return html.EscapeString(s)
}

func run(text string) string {
	return fmt.Sprintf(`<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, esc(text))
}

// Heading adds a paragraph styled HeadingN.
func (b *Builder) Heading(level int, text string) *Builder {
	return b.Styled(fmt.Sprintf("Heading%d", level), text)
}

// Para adds an unstyled paragraph.
func (b *Builder) Para(text string) *Builder {
	return b.Styled("", text)
}

// Styled adds a paragraph with the given style id.
func (b *Builder) Styled(styleID, text string) *Builder {
	pPr := ""
	if styleID != "" {
		pPr = fmt.Sprintf(`<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, styleID)
	}
	b.blocks = append(b.blocks, fmt.Sprintf(`<w:p>%s%s</w:p>`, pPr, run(text)))
	return b
}

// SplitPara adds a paragraph whose text is split over one run per part.
func (b *Builder) SplitPara(parts ...string) *Builder {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(run(part))
	}
	b.blocks = append(b.blocks, fmt.Sprintf(`<w:p>%s</w:p>`, sb.String()))
	return b
}

// HyperlinkHeading adds a Heading 1 paragraph whose text sits in a hyperlink.
func (b *Builder) HyperlinkHeading(text string) *Builder {
	b.blocks = append(b.blocks, fmt.Sprintf(
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:hyperlink w:anchor="top">%s</w:hyperlink>%s</w:p>`,
		run(text), run(" (draft)")))
	return b
}

// Textbox adds a paragraph anchoring a text box whose content is text.
func (b *Builder) Textbox(text string) *Builder {
	b.blocks = append(b.blocks, fmt.Sprintf(
		`<w:p><w:r><mc:AlternateContent><mc:Choice Requires="wps"><w:drawing><wps:wsp><wps:txbx><w:txbxContent><w:p>%s</w:p></w:txbxContent></wps:txbx></wps:wsp></w:drawing></mc:Choice><mc:Fallback><w:pict/></mc:Fallback></mc:AlternateContent></w:r></w:p>`,
		run(text)))
	return b
}

// ShapeText adds a paragraph containing DrawingML text (a:t).
func (b *Builder) ShapeText(text string) *Builder {
	b.blocks = append(b.blocks, fmt.Sprintf(
		`<w:p><w:r><w:drawing><a:graphic><a:graphicData><a:p><a:r><a:t>%s</a:t></a:r></a:p></a:graphicData></a:graphic></w:drawing></w:r></w:p>`,
		esc(text)))
	return b
}

// TOC adds a complex TOC field spanning one paragraph per entry.
func (b *Builder) TOC(entries ...string) *Builder {
	if len(entries) == 0 {
		entries = []string{"Entry"}
	}
	for i, entry := range entries {
		var sb strings.Builder
		sb.WriteString(`<w:p><w:pPr><w:pStyle w:val="TOC1"/></w:pPr>`)
		if i == 0 {
			sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
			sb.WriteString(`<w:r><w:instrText xml:space="preserve"> TOC \o "1-3" \h \z \u </w:instrText></w:r>`)
			sb.WriteString(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
		}
		sb.WriteString(run(entry))
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r><w:r><w:instrText xml:space="preserve"> PAGEREF _Toc1 \h </w:instrText></w:r><w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
		sb.WriteString(run("2"))
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
		if i == len(entries)-1 {
			sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
		}
		sb.WriteString(`</w:p>`)
		b.blocks = append(b.blocks, sb.String())
	}
	return b
}

// TOCSdt adds a TOC wrapped in a content control, as Word inserts it.
func (b *Builder) TOCSdt(entry string) *Builder {
	b.blocks = append(b.blocks, fmt.Sprintf(
		`<w:sdt><w:sdtPr><w:docPartObj><w:docPartGallery w:val="Table of Contents"/><w:docPartUnique/></w:docPartObj></w:sdtPr><w:sdtContent><w:p><w:r><w:fldChar w:fldCharType="begin"/></w:r><w:r><w:instrText xml:space="preserve"> TOC \o "1-3" </w:instrText></w:r><w:r><w:fldChar w:fldCharType="separate"/></w:r>%s<w:r><w:fldChar w:fldCharType="end"/></w:r></w:p></w:sdtContent></w:sdt>`,
		run(entry)))
	return b
}

// PageBreak adds a paragraph holding only a page break.
func (b *Builder) PageBreak() *Builder {
	b.blocks = append(b.blocks, `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
	return b
}

// Table adds a simple one-row table.
func (b *Builder) Table(cells ...string) *Builder {
	var sb strings.Builder
	sb.WriteString(`<w:tbl><w:tblPr/><w:tblGrid/><w:tr>`)
	for _, c := range cells {
		sb.WriteString(fmt.Sprintf(`<w:tc><w:p>%s</w:p></w:tc>`, run(c)))
	}
	sb.WriteString(`</w:tr></w:tbl>`)
	b.blocks = append(b.blocks, sb.String())
	return b
}

// Raw adds a literal body block.
func (b *Builder) Raw(xml string) *Builder {
	b.blocks = append(b.blocks, xml)
	return b
}

// Header adds a header part containing text.
func (b *Builder) Header(text string) *Builder {
	b.headers = append(b.headers, text)
	return b
}

// Footer adds a footer part containing text.
func (b *Builder) Footer(text string) *Builder {
	b.footers = append(b.footers, text)
	return b
}

// Style adds a paragraph style definition to word/styles.xml.
func (b *Builder) Style(id, name string) *Builder {
	b.styles = append(b.styles, fmt.Sprintf(
		`<w:style w:type="paragraph" w:styleId="%s"><w:name w:val="%s"/><w:basedOn w:val="Normal"/></w:style>`,
		esc(id), esc(name)))
	return b
}

// WithoutStyles omits word/styles.xml.
func (b *Builder) WithoutStyles() *Builder {
	b.noStyles = true
	return b
}

// WithoutSettings omits word/settings.xml.
func (b *Builder) WithoutSettings() *Builder {
	b.noSettings = true
	return b
}

// Settings replaces the default settings part.
func (b *Builder) Settings(xml string) *Builder {
	b.settingsXML = xml
	return b
}

// Build returns the package bytes.
func (b *Builder) Build() []byte {
	type entry struct {
		name string
		data string
	}

	var overrides, rels strings.Builder
	relID := 0
	addRel := func(relType, target string) {
		relID++
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/%s" Target="%s"/>`, relID, relType, target)
	}

	var parts []entry

	if !b.noStyles {
		addRel("styles", "styles.xml")
		overrides.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
		styles := strings.Replace(stylesXML, "</w:styles>", strings.Join(b.styles, "")+"</w:styles>", 1)
		parts = append(parts, entry{"word/styles.xml", styles})
	}
	if !b.noSettings {
		settings := settingsXML
		if b.settingsXML != "" {
			settings = b.settingsXML
		}
		addRel("settings", "settings.xml")
		overrides.WriteString(`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>`)
		parts = append(parts, entry{"word/settings.xml", settings})
	}

	hf := func(kind string, texts []string) {
		for i, text := range texts {
			name := fmt.Sprintf("%s%d.xml", kind, i+1)
			tag := "hdr"
			if kind == "footer" {
				tag = "ftr"
			}
			addRel(kind, name)
			fmt.Fprintf(&overrides, `<Override PartName="/word/%s" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.%s+xml"/>`, name, kind)
			parts = append(parts, entry{"word/" + name, fmt.Sprintf(
				`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:%s %s><w:p>%s</w:p></w:%s>`,
				tag, wordNS, run(text), tag)})
		}
	}
	hf("header", b.headers)
	hf("footer", b.footers)

	document := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document %s><w:body>%s%s</w:body></w:document>`,
		wordNS, strings.Join(b.blocks, ""), sectPr)

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		overrides.String() + `</Types>`

	rootRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`

	docRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		rels.String() + `</Relationships>`

	all := append([]entry{
		{docx.ContentTypesPart, contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", document},
		{"word/_rels/document.xml.rels", docRels},
	}, parts...)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range all {
		w, err := zw.Create(e.name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
