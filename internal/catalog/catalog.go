// Package catalog names generated artifacts and the metadata files that sit
// next to them in document storage.
package catalog

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DocType is the document kind embedded in canonical filenames.
type DocType string

const (
	DocTypeServiceDescription DocType = "SERVICE DESC"
	DocTypePricing            DocType = "Pricing Doc"
)

const (
	ExtDocx = "docx"
	ExtPDF  = "pdf"

	draftSuffix = "_draft"
)

// Placement identifies one logical document in storage.
type Placement struct {
	FrameworkVersion string `json:"frameworkVersion"`
	Lot              string `json:"lot"`
	ServiceName      string `json:"serviceName"`
	// Folder overrides the derived folder when the document already lives
	// somewhere else.
	Folder string `json:"folder,omitempty"`
	Draft  bool   `json:"draft"`
}

// FolderPath returns the folder holding every artifact of the document.
func (p Placement) FolderPath() string {
	if p.Folder != "" {
		return strings.Trim(p.Folder, "/")
	}
	return path.Join(
		"GCloud "+p.FrameworkVersion,
		"PA Services",
		"Cloud Support Services LOT "+p.Lot,
		strings.ReplaceAll(strings.TrimSpace(p.ServiceName), " ", "_"),
	)
}

// FileName returns "PA GC<v> <docType> <service>[_draft].<ext>".
func (p Placement) FileName(docType DocType, ext string) string {
	name := fmt.Sprintf("PA GC%s %s %s", p.FrameworkVersion, docType, strings.TrimSpace(p.ServiceName))
	if p.Draft {
		name += draftSuffix
	}
	return name + "." + ext
}

// Key returns the storage key of the artifact.
func (p Placement) Key(docType DocType, ext string) string {
	return path.Join(p.FolderPath(), p.FileName(docType, ext))
}

// Counterpart returns the same placement with the draft flag flipped.
func (p Placement) Counterpart() Placement {
	p.Draft = !p.Draft
	return p
}

// Validate checks the fields needed to derive a key.
func (p Placement) Validate() error {
	if strings.TrimSpace(p.ServiceName) == "" {
		return fmt.Errorf("placement service name is required")
	}
	if p.Folder == "" && (p.FrameworkVersion == "" || p.Lot == "") {
		return fmt.Errorf("placement needs a framework version and lot, or a folder")
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9 _.-]+`)

// OpaqueFilename returns "<title>_<8 hex>.docx" for documents generated
// without a placement.
func OpaqueFilename(title string) string {
	base := strings.TrimSpace(unsafeFilename.ReplaceAllString(title, ""))
	base = strings.Join(strings.Fields(base), "_")
	if base == "" {
		base = "service_description"
	}
	return fmt.Sprintf("%s_%s.%s", base, uuid.NewString()[:8], ExtDocx)
}
