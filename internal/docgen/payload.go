package docgen

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload is the caller content substituted into the template.
type Payload struct {
	Title             string       `json:"title" yaml:"title"`
	Description       string       `json:"description" yaml:"description"`
	Features          []string     `json:"features" yaml:"features"`
	Benefits          []string     `json:"benefits" yaml:"benefits"`
	ServiceDefinition []Subsection `json:"service_definition,omitempty" yaml:"service_definition,omitempty"`
}

// Subsection is one entry of the Service Definition section. Content is
// an HTML fragment.
type Subsection struct {
	Subtitle string   `json:"subtitle" yaml:"subtitle"`
	Content  string   `json:"content" yaml:"content"`
	Images   []string `json:"images,omitempty" yaml:"images,omitempty"`
	// Table rows hold scalar cells. Any other cell value makes the table
	// malformed and it is skipped.
	Table [][]interface{} `json:"table,omitempty" yaml:"table,omitempty"`
}

// tableText converts the table cells to strings.
func (s Subsection) tableText() ([][]string, error) {
	if len(s.Table) == 0 {
		return nil, nil
	}
	out := make([][]string, len(s.Table))
	cells := 0
	for i, row := range s.Table {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			text, err := cellText(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			out[i][j] = text
			cells++
		}
	}
	if cells == 0 {
		return nil, fmt.Errorf("table has no cells")
	}
	return out, nil
}

func cellText(v interface{}) (string, error) {
	switch c := v.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case bool:
		return strconv.FormatBool(c), nil
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(c), nil
	case int64:
		return strconv.FormatInt(c, 10), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}

// HasServiceDefinition reports whether any subsection carries content.
func (p Payload) HasServiceDefinition() bool {
	for _, s := range p.ServiceDefinition {
		if strings.TrimSpace(s.Subtitle) != "" || strings.TrimSpace(s.Content) != "" ||
			len(s.Images) > 0 || len(s.Table) > 0 {
			return true
		}
	}
	return false
}
