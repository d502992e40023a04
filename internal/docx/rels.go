package docx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	RelTypeImage    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeSettings = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings"
	RelTypeStyles   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"

	ContentTypeSettings = "application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"
	ContentTypeStyles   = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
)

// relsPartName returns the relationships part that belongs to part.
func relsPartName(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

func (d *Document) relationships(part string) (*etree.Document, error) {
	name := relsPartName(part)
	if d.HasPart(name) {
		return d.Part(name)
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", nsPackageRels)
	d.SetPart(name, doc)
	return doc, nil
}

// RelationshipTarget resolves the archive path of the first relationship of
// relType declared by part. The boolean is false when none exists.
func (d *Document) RelationshipTarget(part, relType string) (string, bool) {
	if !d.HasPart(relsPartName(part)) {
		return "", false
	}
	rels, err := d.Part(relsPartName(part))
	if err != nil || rels.Root() == nil {
		return "", false
	}
	for _, rel := range rels.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relType {
			target := rel.SelectAttrValue("Target", "")
			if strings.HasPrefix(target, "/") {
				return strings.TrimPrefix(target, "/"), true
			}
			return path.Join(path.Dir(part), target), true
		}
	}
	return "", false
}

// AddRelationship declares a new relationship from part and returns its id.
func (d *Document) AddRelationship(part, relType, target string) (string, error) {
	rels, err := d.relationships(part)
	if err != nil {
		return "", err
	}
	root := rels.Root()
	if root == nil {
		return "", fmt.Errorf("relationships of %s have no root", part)
	}

	maxID := 0
	for _, rel := range root.SelectElements("Relationship") {
		id := rel.SelectAttrValue("Id", "")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > maxID {
			maxID = n
		}
	}

	id := fmt.Sprintf("rId%d", maxID+1)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	return id, nil
}

func (d *Document) contentTypes() (*etree.Element, error) {
	doc, err := d.Part(ContentTypesPart)
	if err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%s has no root", ContentTypesPart)
	}
	return doc.Root(), nil
}

// EnsureDefaultContentType registers contentType for files with extension ext.
func (d *Document) EnsureDefaultContentType(ext, contentType string) error {
	root, err := d.contentTypes()
	if err != nil {
		return err
	}
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return nil
		}
	}
	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", contentType)
	root.InsertChildAt(0, def)
	return nil
}

// EnsureOverride registers an explicit content type for partName.
func (d *Document) EnsureOverride(partName, contentType string) error {
	root, err := d.contentTypes()
	if err != nil {
		return err
	}
	key := "/" + partName
	for _, ov := range root.SelectElements("Override") {
		if ov.SelectAttrValue("PartName", "") == key {
			return nil
		}
	}
	ov := root.CreateElement("Override")
	ov.CreateAttr("PartName", key)
	ov.CreateAttr("ContentType", contentType)
	return nil
}

// EnsureMainPart returns the part related to the main document with
// relType, creating name from skeleton when the template lacks it.
func (d *Document) EnsureMainPart(name, relType, contentType, skeleton string) (*etree.Document, error) {
	if target, ok := d.RelationshipTarget(d.mainPart, relType); ok && d.HasPart(target) {
		return d.Part(target)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(skeleton); err != nil {
		return nil, fmt.Errorf("parse skeleton for %s: %w", name, err)
	}
	d.SetPart(name, doc)

	rel, err := filepathRel(path.Dir(d.mainPart), name)
	if err != nil {
		return nil, err
	}
	if _, err := d.AddRelationship(d.mainPart, relType, rel); err != nil {
		return nil, err
	}
	if err := d.EnsureOverride(name, contentType); err != nil {
		return nil, err
	}
	return doc, nil
}

func filepathRel(dir, name string) (string, error) {
	prefix := dir + "/"
	if !strings.HasPrefix(name, prefix) {
		return "", fmt.Errorf("part %s is outside %s", name, dir)
	}
	return strings.TrimPrefix(name, prefix), nil
}

// AddMedia stores an image under word/media and relates it to the main
// document. It returns the relationship id to embed.
func (d *Document) AddMedia(ext, contentType string, data []byte) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	n := 1
	for {
		if !d.HasPart(fmt.Sprintf("word/media/image%d.%s", n, ext)) {
			break
		}
		n++
	}
	name := fmt.Sprintf("word/media/image%d.%s", n, ext)
	d.SetRaw(name, data)

	if err := d.EnsureDefaultContentType(ext, contentType); err != nil {
		return "", err
	}

	target, err := filepathRel(path.Dir(d.mainPart), name)
	if err != nil {
		return "", err
	}
	return d.AddRelationship(d.mainPart, RelTypeImage, target)
}
