package docx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

const stylesSkeleton = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"></w:styles>`

var (
	headingStyleID   = regexp.MustCompile(`^[Hh]eading(\d)$`)
	headingStyleName = regexp.MustCompile(`^[Hh]eading (\d)$`)
)

// Styles maps paragraph style ids to their display names.
type Styles struct {
	root     *etree.Element
	nameByID map[string]string
	idByName map[string]string
}

// Styles loads the style table of the document. A template without a
// styles part yields an empty table.
func (d *Document) Styles() (*Styles, error) {
	if d.styles != nil {
		return d.styles, nil
	}

	s := &Styles{nameByID: map[string]string{}, idByName: map[string]string{}}
	if target, ok := d.RelationshipTarget(d.mainPart, RelTypeStyles); ok && d.HasPart(target) {
		doc, err := d.Part(target)
		if err != nil {
			return nil, err
		}
		s.root = doc.Root()
	}
	if s.root != nil {
		for _, style := range s.root.SelectElements("w:style") {
			if style.SelectAttrValue("w:type", "paragraph") != "paragraph" {
				continue
			}
			s.index(style)
		}
	}

	d.styles = s
	return s, nil
}

func (s *Styles) index(style *etree.Element) {
	id := style.SelectAttrValue("w:styleId", "")
	if id == "" {
		return
	}
	name := id
	if n := style.SelectElement("w:name"); n != nil {
		name = NormalizeStyleName(n.SelectAttrValue("w:val", id))
	}
	s.nameByID[id] = name
	s.idByName[strings.ToLower(name)] = id
}

// Name returns the display name of the paragraph style id.
func (s *Styles) Name(id string) string {
	if id == "" {
		return "Normal"
	}
	if name, ok := s.nameByID[id]; ok {
		return name
	}
	if m := headingStyleID.FindStringSubmatch(id); m != nil {
		return "Heading " + m[1]
	}
	return id
}

// ID returns the style id for a display name, if the table defines it.
func (s *Styles) ID(name string) (string, bool) {
	id, ok := s.idByName[strings.ToLower(NormalizeStyleName(name))]
	return id, ok
}

// NormalizeStyleName maps Word's lowercase built-in names ("heading 1",
// "toc 2") to the names shown in the UI.
func NormalizeStyleName(name string) string {
	if name == "" || name != strings.ToLower(name) {
		return name
	}
	words := strings.Fields(name)
	for i, w := range words {
		if w == "toc" {
			words[i] = "TOC"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParagraphStyleName returns the display name of p's paragraph style.
func (d *Document) ParagraphStyleName(p *etree.Element) string {
	styles, err := d.Styles()
	if err != nil {
		return ParagraphStyleID(p)
	}
	return styles.Name(ParagraphStyleID(p))
}

// EnsureParagraphStyle returns the style id for name, adding a minimal
// definition when the template does not have one. created reports whether
// a definition was added.
func (d *Document) EnsureParagraphStyle(name string) (id string, created bool, err error) {
	styles, err := d.Styles()
	if err != nil {
		return "", false, err
	}
	if id, ok := styles.ID(name); ok {
		return id, false, nil
	}

	if styles.root == nil {
		doc, err := d.EnsureMainPart("word/styles.xml", RelTypeStyles, ContentTypeStyles, stylesSkeleton)
		if err != nil {
			return "", false, fmt.Errorf("create styles part: %w", err)
		}
		styles.root = doc.Root()
	}

	id = strings.ReplaceAll(name, " ", "")
	if _, exists := styles.nameByID[id]; exists {
		return id, false, nil
	}
	style := styles.root.CreateElement("w:style")
	style.CreateAttr("w:type", "paragraph")
	style.CreateAttr("w:styleId", id)
	style.CreateElement("w:name").CreateAttr("w:val", strings.ToLower(name))
	style.CreateElement("w:basedOn").CreateAttr("w:val", "Normal")
	style.CreateElement("w:next").CreateAttr("w:val", "Normal")
	style.CreateElement("w:qFormat")

	pPr := style.CreateElement("w:pPr")
	if m := headingStyleName.FindStringSubmatch(name); m != nil {
		pPr.CreateElement("w:keepNext")
		level := int(m[1][0] - '1')
		pPr.CreateElement("w:outlineLvl").CreateAttr("w:val", fmt.Sprint(level))
		style.CreateElement("w:rPr").CreateElement("w:b")
	} else if strings.HasPrefix(name, "List") {
		ind := pPr.CreateElement("w:ind")
		ind.CreateAttr("w:left", "720")
		ind.CreateAttr("w:hanging", "360")
	}

	styles.index(style)
	return id, true, nil
}
