package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Child element order inside w:pPr and w:rPr. Word rejects documents whose
// property children are out of schema order.
var (
	pPrOrder = []string{
		"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr", "widowControl",
		"numPr", "suppressLineNumbers", "pBdr", "shd", "tabs", "suppressAutoHyphens",
		"kinsoku", "wordWrap", "overflowPunct", "topLinePunct", "autoSpaceDE", "autoSpaceDN",
		"bidi", "adjustRightInd", "snapToGrid", "spacing", "ind", "contextualSpacing",
		"mirrorIndents", "suppressOverlap", "jc", "textDirection", "textAlignment",
		"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr", "pPrChange",
	}
	rPrOrder = []string{
		"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike", "dstrike",
		"outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid", "vanish",
		"webHidden", "color", "spacing", "w", "kern", "position", "sz", "szCs", "highlight",
		"u", "effect", "bdr", "shd", "fitText", "vertAlign", "rtl", "cs", "em", "lang",
		"eastAsianLayout", "specVanish", "oMath",
	}
)

// ensureOrdered returns the w:<tag> child of parent, inserting it at its
// schema position when absent.
func ensureOrdered(parent *etree.Element, tag string, order []string) *etree.Element {
	if existing := parent.SelectElement("w:" + tag); existing != nil {
		return existing
	}

	rank := func(t string) int {
		for i, o := range order {
			if o == t {
				return i
			}
		}
		return len(order)
	}

	want := rank(tag)
	el := etree.NewElement("w:" + tag)
	for _, child := range parent.ChildElements() {
		if child.Space == "w" && rank(child.Tag) > want {
			parent.InsertChildAt(child.Index(), el)
			return el
		}
	}
	parent.AddChild(el)
	return el
}

// Properties returns the w:pPr of p, creating it as the first child.
func Properties(p *etree.Element) *etree.Element {
	if pPr := p.SelectElement("w:pPr"); pPr != nil {
		return pPr
	}
	pPr := etree.NewElement("w:pPr")
	p.InsertChildAt(0, pPr)
	return pPr
}

// ParagraphStyleID returns the w:pStyle value of p, or "".
func ParagraphStyleID(p *etree.Element) string {
	pPr := p.SelectElement("w:pPr")
	if pPr == nil {
		return ""
	}
	if ps := pPr.SelectElement("w:pStyle"); ps != nil {
		return ps.SelectAttrValue("w:val", "")
	}
	return ""
}

// SetParagraphStyle sets the w:pStyle of p.
func SetParagraphStyle(p *etree.Element, styleID string) {
	ps := ensureOrdered(Properties(p), "pStyle", pPrOrder)
	setVal(ps, "w:val", styleID)
}

// SetSpacingAfter sets an explicit space-after in twips.
func SetSpacingAfter(p *etree.Element, twips int) {
	spacing := ensureOrdered(Properties(p), "spacing", pPrOrder)
	setVal(spacing, "w:after", strconv.Itoa(twips))
}

// SpacingAfter returns the explicit space-after of p and whether it is set.
func SpacingAfter(p *etree.Element) (int, bool) {
	pPr := p.SelectElement("w:pPr")
	if pPr == nil {
		return 0, false
	}
	spacing := pPr.SelectElement("w:spacing")
	if spacing == nil {
		return 0, false
	}
	v := spacing.SelectAttr("w:after")
	if v == nil {
		return 0, false
	}
	n, err := strconv.Atoi(v.Value)
	return n, err == nil
}

// HasPageBreakBefore reports whether p starts on a new page, either through
// w:pageBreakBefore or a leading page break run.
func HasPageBreakBefore(p *etree.Element) bool {
	if pPr := p.SelectElement("w:pPr"); pPr != nil {
		if pb := pPr.SelectElement("w:pageBreakBefore"); pb != nil {
			v := pb.SelectAttrValue("w:val", "true")
			return v != "false" && v != "0"
		}
	}
	for _, br := range Descendants(p, "w", "br") {
		if br.SelectAttrValue("w:type", "") == "page" {
			return true
		}
	}
	return false
}

func setVal(el *etree.Element, key, value string) {
	if attr := el.SelectAttr(key); attr != nil {
		attr.Value = value
		return
	}
	el.CreateAttr(key, value)
}

// NewParagraph creates an unparented paragraph with an optional style.
func NewParagraph(styleID string) *etree.Element {
	p := etree.NewElement("w:p")
	if styleID != "" {
		SetParagraphStyle(p, styleID)
	}
	return p
}

// RunProps describes direct run formatting.
type RunProps struct {
	Bold      bool
	Italic    bool
	Underline bool
	Color     string
	// HalfPoints is the font size in half points; 0 leaves it inherited.
	HalfPoints int
}

func (rp RunProps) empty() bool {
	return !rp.Bold && !rp.Italic && !rp.Underline && rp.Color == "" && rp.HalfPoints == 0
}

// ApplyRunProps sets direct formatting on run r, keeping existing
// properties it does not touch.
func ApplyRunProps(r *etree.Element, rp RunProps) {
	if rp.empty() {
		return
	}
	rPr := r.SelectElement("w:rPr")
	if rPr == nil {
		rPr = etree.NewElement("w:rPr")
		r.InsertChildAt(0, rPr)
	}
	if rp.Bold {
		ensureOrdered(rPr, "b", rPrOrder)
	}
	if rp.Italic {
		ensureOrdered(rPr, "i", rPrOrder)
	}
	if rp.Color != "" {
		setVal(ensureOrdered(rPr, "color", rPrOrder), "w:val", rp.Color)
	}
	if rp.HalfPoints > 0 {
		size := strconv.Itoa(rp.HalfPoints)
		setVal(ensureOrdered(rPr, "sz", rPrOrder), "w:val", size)
		setVal(ensureOrdered(rPr, "szCs", rPrOrder), "w:val", size)
	}
	if rp.Underline {
		setVal(ensureOrdered(rPr, "u", rPrOrder), "w:val", "single")
	}
}

// AddRun appends a text run to p. Newlines in text become line breaks.
func AddRun(p *etree.Element, text string, rp RunProps) *etree.Element {
	r := p.CreateElement("w:r")
	ApplyRunProps(r, rp)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			r.CreateElement("w:br")
		}
		if line == "" {
			continue
		}
		t := r.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(line)
	}
	return r
}

// AddBreak appends a run holding a single break. breakType "page" starts a
// new page; "" is a line break.
func AddBreak(p *etree.Element, breakType string) *etree.Element {
	r := p.CreateElement("w:r")
	br := r.CreateElement("w:br")
	if breakType != "" {
		br.CreateAttr("w:type", breakType)
	}
	return r
}

// ParagraphText concatenates the w:t text of el, skipping text boxes and
// the fallback copy of alternate content. Tabs and breaks are rendered as
// whitespace.
func ParagraphText(el *etree.Element) string {
	var sb strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			switch {
			case child.Space == "w" && child.Tag == "txbxContent":
				continue
			case child.Space == "mc" && child.Tag == "Fallback":
				continue
			case child.Space == "w" && child.Tag == "t":
				sb.WriteString(child.Text())
			case child.Space == "w" && child.Tag == "tab":
				sb.WriteString("\t")
			case child.Space == "w" && (child.Tag == "br" || child.Tag == "cr"):
				sb.WriteString("\n")
			default:
				walk(child)
			}
		}
	}
	walk(el)
	return sb.String()
}

// TextNodes returns every w:t and a:t element under el in document order,
// including text inside shapes and text boxes.
func TextNodes(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Tag == "t" && (child.Space == "w" || child.Space == "a") {
				out = append(out, child)
				continue
			}
			walk(child)
		}
	}
	walk(el)
	return out
}

// ClearRuns removes runs, hyperlinks and simple fields from p, keeping its
// properties and bookmarks.
func ClearRuns(p *etree.Element) {
	for _, child := range p.ChildElements() {
		if child.Space != "w" {
			continue
		}
		switch child.Tag {
		case "r", "hyperlink", "fldSimple", "smartTag", "ins":
			p.RemoveChild(child)
		}
	}
}
