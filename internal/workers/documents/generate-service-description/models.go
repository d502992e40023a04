package generateservicedescription

import (
	"gcloud-docgen/internal/docgen"
)

// Input is the job variables of one generation.
type Input struct {
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Features          []string            `json:"features"`
	Benefits          []string            `json:"benefits"`
	ServiceDefinition []docgen.Subsection `json:"serviceDefinition,omitempty"`

	// Placement. Without a service name the document is stored under an
	// opaque name.
	ServiceName      string `json:"serviceName,omitempty"`
	FrameworkVersion string `json:"frameworkVersion,omitempty"`
	Lot              string `json:"lot,omitempty"`
	Folder           string `json:"folder,omitempty"`
	Draft            bool   `json:"draft"`

	Owner        string `json:"owner,omitempty"`
	Sponsor      string `json:"sponsor,omitempty"`
	EditedBy     string `json:"editedBy,omitempty"`
	TemplatePath string `json:"templatePath,omitempty"`
}

func (in *Input) payload() docgen.Payload {
	return docgen.Payload{
		Title:             in.Title,
		Description:       in.Description,
		Features:          in.Features,
		Benefits:          in.Benefits,
		ServiceDefinition: in.ServiceDefinition,
	}
}

type Output struct {
	DocumentGenerated bool     `json:"documentGenerated"`
	GenerationID      string   `json:"generationId"`
	Filename          string   `json:"filename"`
	WordKey           string   `json:"wordKey"`
	PDFKey            string   `json:"pdfKey,omitempty"`
	Draft             bool     `json:"draft"`
	NewProposal       bool     `json:"newProposal"`
	RemovedKeys       []string `json:"removedKeys,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}
