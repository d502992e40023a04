package docx

import (
	"github.com/beevik/etree"
)

// IsSectPr reports whether el is the body-level section properties element.
func IsSectPr(el *etree.Element) bool {
	return el != nil && el.Space == "w" && el.Tag == "sectPr"
}

func IsParagraph(el *etree.Element) bool {
	return el != nil && el.Space == "w" && el.Tag == "p"
}

func IsTable(el *etree.Element) bool {
	return el != nil && el.Space == "w" && el.Tag == "tbl"
}

func IsSdt(el *etree.Element) bool {
	return el != nil && el.Space == "w" && el.Tag == "sdt"
}

// Blocks returns the content children of body, without the trailing
// w:sectPr.
func Blocks(body *etree.Element) []*etree.Element {
	children := body.ChildElements()
	out := make([]*etree.Element, 0, len(children))
	for _, child := range children {
		if !IsSectPr(child) {
			out = append(out, child)
		}
	}
	return out
}

// NextSibling returns the next element sibling of el, or nil.
func NextSibling(el *etree.Element) *etree.Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	for i := el.Index() + 1; i < len(parent.Child); i++ {
		if next, ok := parent.Child[i].(*etree.Element); ok {
			return next
		}
	}
	return nil
}

// PrevSibling returns the previous element sibling of el, or nil.
func PrevSibling(el *etree.Element) *etree.Element {
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	for i := el.Index() - 1; i >= 0; i-- {
		if prev, ok := parent.Child[i].(*etree.Element); ok {
			return prev
		}
	}
	return nil
}

// Detach removes el from its parent. It is a no-op for unparented nodes.
func Detach(el *etree.Element) {
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
	}
}

// InsertAfter places node directly after anchor in anchor's parent,
// detaching node from wherever it currently lives.
func InsertAfter(anchor, node *etree.Element) {
	parent := anchor.Parent()
	if parent == nil {
		return
	}
	Detach(node)
	parent.InsertChildAt(anchor.Index()+1, node)
}

// InsertBefore places node directly before anchor.
func InsertBefore(anchor, node *etree.Element) {
	parent := anchor.Parent()
	if parent == nil {
		return
	}
	Detach(node)
	parent.InsertChildAt(anchor.Index(), node)
}

// Append adds nodes at the end of body, keeping w:sectPr last.
func Append(body *etree.Element, nodes ...*etree.Element) {
	var sectPr *etree.Element
	for _, child := range body.ChildElements() {
		if IsSectPr(child) {
			sectPr = child
		}
	}
	for _, node := range nodes {
		if sectPr != nil {
			InsertBefore(sectPr, node)
		} else {
			Detach(node)
			body.AddChild(node)
		}
	}
}

// RemoveRange removes the siblings from first through last inclusive and
// returns how many elements were removed. last must follow first.
func RemoveRange(first, last *etree.Element) int {
	removed := 0
	for el := first; el != nil; {
		next := NextSibling(el)
		Detach(el)
		removed++
		if el == last {
			break
		}
		el = next
	}
	return removed
}

// RemoveFollowing removes the siblings after anchor until stop matches or
// the section properties are reached. The stopping element is kept.
func RemoveFollowing(anchor *etree.Element, stop func(*etree.Element) bool) int {
	removed := 0
	for el := NextSibling(anchor); el != nil && !IsSectPr(el) && !stop(el); {
		next := NextSibling(el)
		Detach(el)
		removed++
		el = next
	}
	return removed
}

// DetachFrom removes node and every following sibling except w:sectPr and
// returns them in document order, unparented.
func DetachFrom(node *etree.Element) []*etree.Element {
	var out []*etree.Element
	for el := node; el != nil && !IsSectPr(el); {
		next := NextSibling(el)
		Detach(el)
		out = append(out, el)
		el = next
	}
	return out
}

// BlockAncestor returns the direct child of body that contains el, or nil.
func BlockAncestor(body, el *etree.Element) *etree.Element {
	for cur := el; cur != nil; cur = cur.Parent() {
		if cur.Parent() == body {
			return cur
		}
	}
	return nil
}

// HasAncestor reports whether any ancestor of el has the given prefix and tag.
func HasAncestor(el *etree.Element, space, tag string) bool {
	for cur := el.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Space == space && cur.Tag == tag {
			return true
		}
	}
	return false
}

// Descendants walks el depth first in document order and returns every
// element matching space and tag.
func Descendants(el *etree.Element, space, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Space == space && child.Tag == tag {
				out = append(out, child)
			}
			walk(child)
		}
	}
	walk(el)
	return out
}
