package catalog

import (
	"bufio"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Metadata is the owner file stored in each proposal folder.
type Metadata struct {
	Service      string `json:"service" yaml:"service"`
	Owner        string `json:"owner" yaml:"owner"`
	Sponsor      string `json:"sponsor" yaml:"sponsor"`
	LastEditedBy string `json:"lastEditedBy,omitempty" yaml:"lastEditedBy,omitempty"`
}

// OwnerMetadataKey returns the key of the owner file inside folder.
func OwnerMetadataKey(folder, owner string) string {
	return path.Join(folder, fmt.Sprintf("OWNER %s.txt", strings.TrimSpace(owner)))
}

// IsOwnerMetadataKey reports whether key names an owner file.
func IsOwnerMetadataKey(key string) bool {
	base := path.Base(key)
	return strings.HasPrefix(base, "OWNER ") && strings.HasSuffix(base, ".txt")
}

// Format renders the numbered plain-text layout.
func (m Metadata) Format() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "1. SERVICE: %s\n", m.Service)
	fmt.Fprintf(&sb, "2. OWNER: %s\n", m.Owner)
	fmt.Fprintf(&sb, "3. SPONSOR: %s\n", m.Sponsor)
	if m.LastEditedBy != "" {
		fmt.Fprintf(&sb, "4. LAST EDITED BY: %s\n", m.LastEditedBy)
	}
	return []byte(sb.String())
}

var metadataLine = regexp.MustCompile(`(?i)^\s*\d+\.\s*(SERVICE|OWNER|SPONSOR|LAST EDITED BY)\s*:\s*(.*)$`)

// ParseMetadata reads an owner file. Unknown lines are ignored.
func ParseMetadata(data []byte) Metadata {
	var m Metadata
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		match := metadataLine.FindStringSubmatch(sc.Text())
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[2])
		switch strings.ToUpper(match[1]) {
		case "SERVICE":
			m.Service = value
		case "OWNER":
			m.Owner = value
		case "SPONSOR":
			m.Sponsor = value
		case "LAST EDITED BY":
			m.LastEditedBy = value
		}
	}
	return m
}
