package docx

import (
	"strconv"

	"github.com/beevik/etree"
)

// TableOptions controls the generated table layout.
type TableOptions struct {
	// WidthTwips is the total table width split evenly across columns.
	WidthTwips int
	// HeaderRow renders the first row bold and repeats it across pages.
	HeaderRow bool
	// SpaceAfter is applied to every cell paragraph when positive.
	SpaceAfter int
}

// NewTable builds a bordered table. Short rows are padded to the widest
// row. It returns nil for an empty grid.
func NewTable(rows [][]string, opts TableOptions) *etree.Element {
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return nil
	}
	if opts.WidthTwips <= 0 {
		opts.WidthTwips = 9000
	}
	colWidth := strconv.Itoa(opts.WidthTwips / cols)

	tbl := etree.NewElement("w:tbl")
	tblPr := tbl.CreateElement("w:tblPr")
	tblW := tblPr.CreateElement("w:tblW")
	tblW.CreateAttr("w:w", strconv.Itoa(opts.WidthTwips))
	tblW.CreateAttr("w:type", "dxa")

	borders := tblPr.CreateElement("w:tblBorders")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		b := borders.CreateElement("w:" + side)
		b.CreateAttr("w:val", "single")
		b.CreateAttr("w:sz", "4")
		b.CreateAttr("w:space", "0")
		b.CreateAttr("w:color", "auto")
	}
	tblPr.CreateElement("w:tblLook").CreateAttr("w:val", "04A0")

	grid := tbl.CreateElement("w:tblGrid")
	for i := 0; i < cols; i++ {
		grid.CreateElement("w:gridCol").CreateAttr("w:w", colWidth)
	}

	for i, row := range rows {
		tr := tbl.CreateElement("w:tr")
		header := opts.HeaderRow && i == 0
		if header {
			tr.CreateElement("w:trPr").CreateElement("w:tblHeader")
		}
		for c := 0; c < cols; c++ {
			text := ""
			if c < len(row) {
				text = row[c]
			}
			tc := tr.CreateElement("w:tc")
			tcW := tc.CreateElement("w:tcPr").CreateElement("w:tcW")
			tcW.CreateAttr("w:w", colWidth)
			tcW.CreateAttr("w:type", "dxa")

			p := NewParagraph("")
			if opts.SpaceAfter > 0 {
				SetSpacingAfter(p, opts.SpaceAfter)
			}
			if text != "" {
				AddRun(p, text, RunProps{Bold: header})
			}
			tc.AddChild(p)
		}
	}

	return tbl
}
