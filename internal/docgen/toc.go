package docgen

import (
	"fmt"
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// TOCInstruction builds the table from heading levels 1-3 with hyperlinked
// entries and no page numbers in web view.
const TOCInstruction = ` TOC \o "1-3" \h \z \u `

const tocHint = "Right-click to update the table of contents."

const settingsSkeleton = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:settings>`

// Elements that follow w:updateFields in the settings schema.
var afterUpdateFields = map[string]bool{
	"hdrShapeDefaults": true, "footnotePr": true, "endnotePr": true, "compat": true,
	"docVars": true, "rsids": true, "mathPr": true, "attachedSchema": true,
	"themeFontLang": true, "clrSchemeMapping": true, "doNotIncludeSubdocsInStats": true,
	"doNotAutoCompressPictures": true, "forceUpgrade": true, "captions": true,
	"readModeInkLockDown": true, "smartTagType": true, "schemaLibrary": true,
	"shapeDefaults": true, "doNotEmbedSmartTags": true, "decimalSymbol": true,
	"listSeparator": true,
}

// RebuildTOC removes every existing TOC field and writes a fresh one under
// the Contents heading, then asks Word to refresh fields on open. Without
// a Contents heading nothing is inserted and a recoverable error is
// returned.
func RebuildTOC(doc *docx.Document, opts Options) (*RecoverableError, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}

	hoistContentsTitle(body, opts)
	removeTOCFields(body)

	contents := findContents(docx.Blocks(body), opts)
	if contents == nil {
		return &RecoverableError{
			Stage: StageTocRebuilt,
			Kind:  KindContentsNotFound,
			Err:   fmt.Errorf("no paragraph titled %s", strings.Join(opts.ContentsTitles, " or ")),
		}, nil
	}

	h := headings{doc: doc, prefix: opts.HeadingPrefix}
	docx.RemoveFollowing(contents, h.is)

	field := tocParagraph()
	next := docx.NextSibling(contents)
	if next == nil || docx.IsSectPr(next) || !docx.HasPageBreakBefore(next) {
		docx.AddBreak(field, "page")
	}
	docx.InsertAfter(contents, field)

	if err := enableUpdateFields(doc); err != nil {
		return nil, err
	}
	return nil, nil
}

// hoistContentsTitle moves a Contents title out of a table-of-contents
// control so it survives the removal of the control.
func hoistContentsTitle(body *etree.Element, opts Options) {
	for _, el := range docx.Blocks(body) {
		if !docx.IsSdt(el) || !isTOCSdt(el) {
			continue
		}
		for _, p := range docx.Descendants(el, "w", "p") {
			if isContentsTitle(p, opts) {
				docx.InsertBefore(el, p)
				break
			}
		}
	}
}

func tocParagraph() *etree.Element {
	p := docx.NewParagraph("")

	begin := p.CreateElement("w:r").CreateElement("w:fldChar")
	begin.CreateAttr("w:fldCharType", "begin")
	begin.CreateAttr("w:dirty", "true")

	instr := p.CreateElement("w:r").CreateElement("w:instrText")
	instr.CreateAttr("xml:space", "preserve")
	instr.SetText(TOCInstruction)

	p.CreateElement("w:r").CreateElement("w:fldChar").CreateAttr("w:fldCharType", "separate")
	docx.AddRun(p, tocHint, docx.RunProps{})
	p.CreateElement("w:r").CreateElement("w:fldChar").CreateAttr("w:fldCharType", "end")
	return p
}

// removeTOCFields deletes TOC content controls, simple TOC fields and the
// body-level blocks spanned by complex TOC fields.
func removeTOCFields(body *etree.Element) {
	for _, el := range docx.Blocks(body) {
		if docx.IsSdt(el) && isTOCSdt(el) {
			docx.Detach(el)
		}
	}

	type openField struct {
		instr strings.Builder
		start int
	}

	blocks := docx.Blocks(body)
	remove := make([]bool, len(blocks))
	var stack []*openField
	for i, el := range blocks {
		for _, node := range fieldNodes(el) {
			switch {
			case node.Tag == "fldSimple":
				if isTOCInstruction(node.SelectAttrValue("w:instr", "")) {
					remove[i] = true
				}
			case node.Tag == "instrText":
				if len(stack) > 0 {
					stack[len(stack)-1].instr.WriteString(node.Text())
				}
			case node.Tag == "fldChar":
				switch node.SelectAttrValue("w:fldCharType", "") {
				case "begin":
					stack = append(stack, &openField{start: i})
				case "end":
					if len(stack) == 0 {
						continue
					}
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					if isTOCInstruction(top.instr.String()) {
						for j := top.start; j <= i; j++ {
							remove[j] = true
						}
					}
				}
			}
		}
	}

	for i, el := range blocks {
		if remove[i] {
			docx.Detach(el)
		}
	}
}

func fieldNodes(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Space == "w" && (child.Tag == "fldChar" || child.Tag == "instrText" || child.Tag == "fldSimple") {
				out = append(out, child)
				if child.Tag != "fldSimple" {
					continue
				}
			}
			walk(child)
		}
	}
	walk(el)
	return out
}

func isTOCInstruction(instr string) bool {
	fields := strings.Fields(instr)
	return len(fields) > 0 && strings.EqualFold(fields[0], "TOC")
}

func isTOCSdt(sdt *etree.Element) bool {
	for _, gallery := range docx.Descendants(sdt, "w", "docPartGallery") {
		if strings.Contains(gallery.SelectAttrValue("w:val", ""), "Table of Contents") {
			return true
		}
	}
	return false
}

// enableUpdateFields sets w:updateFields in the settings part, creating
// the part when the template lacks one.
func enableUpdateFields(doc *docx.Document) error {
	settings, err := doc.EnsureMainPart("word/settings.xml", docx.RelTypeSettings, docx.ContentTypeSettings, settingsSkeleton)
	if err != nil {
		return fmt.Errorf("settings part: %w", err)
	}
	root := settings.Root()
	if root == nil {
		return fmt.Errorf("settings part has no root")
	}

	if existing := root.SelectElement("w:updateFields"); existing != nil {
		if attr := existing.SelectAttr("w:val"); attr != nil {
			attr.Value = "true"
		} else {
			existing.CreateAttr("w:val", "true")
		}
		return nil
	}

	update := etree.NewElement("w:updateFields")
	update.CreateAttr("w:val", "true")
	for _, child := range root.ChildElements() {
		if child.Space == "w" && afterUpdateFields[child.Tag] {
			root.InsertChildAt(child.Index(), update)
			return nil
		}
	}
	root.AddChild(update)
	return nil
}
