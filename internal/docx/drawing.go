package docx

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// EMUPerPixel converts 96 DPI pixels to English Metric Units.
const EMUPerPixel = 9525

// EnsureNamespace declares prefix on the main part root if missing.
func (d *Document) EnsureNamespace(prefix, uri string) error {
	doc, err := d.Part(d.mainPart)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("main part has no root")
	}
	if root.SelectAttr("xmlns:"+prefix) == nil {
		root.CreateAttr("xmlns:"+prefix, uri)
	}
	return nil
}

func (d *Document) drawingID() (int, error) {
	if d.nextDrawingID == 0 {
		body, err := d.Body()
		if err != nil {
			return 0, err
		}
		maxID := 0
		for _, docPr := range Descendants(body, "wp", "docPr") {
			if n, err := strconv.Atoi(docPr.SelectAttrValue("id", "")); err == nil && n > maxID {
				maxID = n
			}
		}
		d.nextDrawingID = maxID + 1
	}
	id := d.nextDrawingID
	d.nextDrawingID++
	return id, nil
}

// InlineImage is an embedded picture ready to be placed in a run.
type InlineImage struct {
	RelID  string
	Name   string
	Width  int64 // EMU
	Height int64 // EMU
}

// AddInlineImage appends a run containing img to p.
func (d *Document) AddInlineImage(p *etree.Element, img InlineImage) (*etree.Element, error) {
	if err := d.EnsureNamespace("wp", NSWP); err != nil {
		return nil, err
	}
	if err := d.EnsureNamespace("r", NSR); err != nil {
		return nil, err
	}
	id, err := d.drawingID()
	if err != nil {
		return nil, err
	}

	cx := strconv.FormatInt(img.Width, 10)
	cy := strconv.FormatInt(img.Height, 10)
	name := fmt.Sprintf("Picture %d", id)

	r := p.CreateElement("w:r")
	inline := r.CreateElement("w:drawing").CreateElement("wp:inline")
	for _, k := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(k, "0")
	}

	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", cx)
	extent.CreateAttr("cy", cy)

	effect := inline.CreateElement("wp:effectExtent")
	for _, k := range []string{"l", "t", "r", "b"} {
		effect.CreateAttr(k, "0")
	}

	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", strconv.Itoa(id))
	docPr.CreateAttr("name", name)

	locks := inline.CreateElement("wp:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks")
	locks.CreateAttr("xmlns:a", NSA)
	locks.CreateAttr("noChangeAspect", "1")

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", NSA)
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", NSPic)

	pic := data.CreateElement("pic:pic")
	pic.CreateAttr("xmlns:pic", NSPic)

	nvPicPr := pic.CreateElement("pic:nvPicPr")
	cNvPr := nvPicPr.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", "0")
	cNvPr.CreateAttr("name", img.Name)
	nvPicPr.CreateElement("pic:cNvPicPr")

	blipFill := pic.CreateElement("pic:blipFill")
	blipFill.CreateElement("a:blip").CreateAttr("r:embed", img.RelID)
	blipFill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", cx)
	ext.CreateAttr("cy", cy)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")

	return r, nil
}

// FitWidth scales pixel dimensions to EMU, shrinking proportionally when
// the width exceeds maxWidth.
func FitWidth(widthPx, heightPx int, maxWidth int64) (int64, int64) {
	w := int64(widthPx) * EMUPerPixel
	h := int64(heightPx) * EMUPerPixel
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
	}
	return w, h
}
