// Package docx reads, edits and writes WordprocessingML packages.
//
// A Document keeps every archive entry in its original order. XML parts are
// parsed on first access with etree and written back on Bytes; untouched
// entries are copied byte for byte. Element lookups assume the prefixes Word
// itself writes (w, a, wp, r, mc, pic).
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

const (
	NSW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	nsPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsContentTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"
	relTypeOfficeDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"

	ContentTypesPart = "[Content_Types].xml"
	DefaultMainPart  = "word/document.xml"
)

var headerFooterPart = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

// Document is an opened .docx package.
type Document struct {
	order  []string
	raw    map[string][]byte
	parsed map[string]*etree.Document

	mainPart      string
	styles        *Styles
	nextDrawingID int
}

// Open parses the archive bytes of a .docx file.
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	d := &Document{
		raw:    make(map[string][]byte, len(zr.File)),
		parsed: make(map[string]*etree.Document),
	}

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		if _, dup := d.raw[f.Name]; !dup {
			d.order = append(d.order, f.Name)
		}
		d.raw[f.Name] = content
	}

	if _, ok := d.raw[ContentTypesPart]; !ok {
		return nil, fmt.Errorf("not a docx package: missing %s", ContentTypesPart)
	}

	d.mainPart = d.resolveMainPart()
	if _, ok := d.raw[d.mainPart]; !ok {
		return nil, fmt.Errorf("not a docx package: missing %s", d.mainPart)
	}

	return d, nil
}

func (d *Document) resolveMainPart() string {
	rels, err := d.Part("_rels/.rels")
	if err != nil {
		return DefaultMainPart
	}
	for _, rel := range rels.FindElements("//Relationship") {
		if rel.SelectAttrValue("Type", "") == relTypeOfficeDoc {
			return strings.TrimPrefix(rel.SelectAttrValue("Target", DefaultMainPart), "/")
		}
	}
	return DefaultMainPart
}

// MainPartName is the archive path of the main document part.
func (d *Document) MainPartName() string {
	return d.mainPart
}

// HasPart reports whether the archive contains name.
func (d *Document) HasPart(name string) bool {
	_, ok := d.raw[name]
	return ok
}

// PartNames returns archive entry names in their original order.
func (d *Document) PartNames() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Part returns the parsed XML tree of name, parsing it on first use.
func (d *Document) Part(name string) (*etree.Document, error) {
	if doc, ok := d.parsed[name]; ok {
		return doc, nil
	}
	data, ok := d.raw[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}

	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse part %s: %w", name, err)
	}
	d.parsed[name] = doc
	return doc, nil
}

// SetPart registers a new XML part, appending it to the archive order.
func (d *Document) SetPart(name string, doc *etree.Document) {
	if _, ok := d.raw[name]; !ok {
		d.order = append(d.order, name)
		d.raw[name] = nil
	}
	d.parsed[name] = doc
}

// SetRaw stores binary content under name and drops any parsed tree.
func (d *Document) SetRaw(name string, data []byte) {
	if _, ok := d.raw[name]; !ok {
		d.order = append(d.order, name)
	}
	d.raw[name] = data
	delete(d.parsed, name)
}

// Body returns the w:body element of the main part.
func (d *Document) Body() (*etree.Element, error) {
	doc, err := d.Part(d.mainPart)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("main part has no root element")
	}
	body := root.SelectElement("w:body")
	if body == nil {
		return nil, fmt.Errorf("main part has no w:body")
	}
	return body, nil
}

// HeaderFooterParts lists header and footer parts in a stable order.
func (d *Document) HeaderFooterParts() []string {
	var names []string
	for _, name := range d.order {
		if headerFooterPart.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// WordXMLParts lists every XML part under word/, excluding relationships.
func (d *Document) WordXMLParts() []string {
	var names []string
	for _, name := range d.order {
		if strings.HasPrefix(name, "word/") && path.Ext(name) == ".xml" && !strings.Contains(name, "/_rels/") {
			names = append(names, name)
		}
	}
	return names
}

// Bytes serializes the package, writing parsed parts back as XML.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range d.order {
		content := d.raw[name]
		if doc, ok := d.parsed[name]; ok {
			out, err := doc.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("serialize part %s: %w", name, err)
			}
			content = out
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// RewriteParts applies fn to the serialized bytes of each named part of an
// already serialized package and returns the rebuilt archive.
func RewriteParts(data []byte, names []string, fn func(name string, content []byte) []byte) ([]byte, error) {
	doc, err := Open(data)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		content, ok := doc.raw[name]
		if !ok {
			continue
		}
		doc.raw[name] = fn(name, content)
		delete(doc.parsed, name)
	}
	return doc.Bytes()
}

// Raw returns the unparsed bytes of name as read from the archive.
func (d *Document) Raw(name string) ([]byte, bool) {
	data, ok := d.raw[name]
	return data, ok
}
