// Package docgen turns the service description template and a content
// payload into a finished Word document.
package docgen

import (
	"strings"

	"gcloud-docgen/internal/common/config"
)

// Content headings, in the order they appear in a generated document.
const (
	SectionShortDescription = "Short Service Description"
	SectionFeatures         = "Key Service Features"
	SectionBenefits         = "Key Service Benefits"
	SectionDefinition       = "Service Definition"
)

// AboutSentinel marks where the trailing About block starts.
const AboutSentinel = "{{ABOUT_PA_START}}"

// Options tunes the transformation. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// HeadingPrefix is the style-name prefix that marks a section boundary.
	HeadingPrefix string
	// NumeralColor is the hex color of list numerals.
	NumeralColor string
	// SpaceAfter is the explicit paragraph spacing in twips.
	SpaceAfter int
	// TitleHalfPoints is the title font size (48 = 24pt).
	TitleHalfPoints int
	// MaxImageWidthEMU caps embedded image width.
	MaxImageWidthEMU int64
	// MaxImagePixels caps the width*height of images that must be decoded
	// and re-encoded.
	MaxImagePixels int
	// ExciseSubheadings extends excision past deeper headings, stopping at
	// the next heading of the same or a higher level.
	ExciseSubheadings bool
	// DropRepeatedSubtitle drops a leading h3 in subsection content whose
	// text equals the subtitle already written as a heading.
	DropRepeatedSubtitle bool

	Placeholders   []string
	Sentinel       string
	AboutTitles    []string
	SectionTargets []string
	ContentsTitles []string
}

func DefaultOptions() Options {
	return Options{
		HeadingPrefix:    "Heading",
		NumeralColor:     "FF0000",
		SpaceAfter:       120,
		TitleHalfPoints:  48,
		MaxImageWidthEMU: 5486400,
		MaxImagePixels:   40_000_000,
		Placeholders:     []string{"ENTER SERVICE NAME HERE", "Add Title", "{{SERVICE_NAME}}"},
		Sentinel:         AboutSentinel,
		AboutTitles:      []string{"About PA", "About Us"},
		SectionTargets: []string{
			SectionShortDescription,
			SectionFeatures,
			SectionBenefits,
			SectionDefinition,
		},
		ContentsTitles:       []string{"contents", "table of contents"},
		DropRepeatedSubtitle: true,
	}
}

// OptionsFromConfig overlays the configured values on the defaults.
func OptionsFromConfig(cfg config.DocgenConfig) Options {
	opts := DefaultOptions()
	if cfg.HeadingPrefix != "" {
		opts.HeadingPrefix = cfg.HeadingPrefix
	}
	if cfg.NumeralColor != "" {
		opts.NumeralColor = strings.TrimPrefix(strings.ToUpper(cfg.NumeralColor), "#")
	}
	if cfg.SpaceAfter > 0 {
		opts.SpaceAfter = cfg.SpaceAfter
	}
	if cfg.MaxImageWidthEMU > 0 {
		opts.MaxImageWidthEMU = cfg.MaxImageWidthEMU
	}
	if cfg.MaxImagePixels > 0 {
		opts.MaxImagePixels = cfg.MaxImagePixels
	}
	opts.ExciseSubheadings = cfg.ExciseSubheadings
	return opts
}
