package docgen

import (
	"regexp"
	"strconv"
	"strings"

	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
)

// headings classifies paragraphs by style name.
type headings struct {
	doc    *docx.Document
	prefix string
}

func (h headings) is(el *etree.Element) bool {
	return docx.IsParagraph(el) && strings.HasPrefix(h.doc.ParagraphStyleName(el), h.prefix)
}

// level returns the outline level of a heading paragraph, or 0 when the
// style name carries no number.
func (h headings) level(el *etree.Element) int {
	fields := strings.Fields(strings.TrimPrefix(h.doc.ParagraphStyleName(el), h.prefix))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return n
}

// boundary returns the stop predicate used when clearing below start.
func (h headings) boundary(start *etree.Element, nested bool) func(*etree.Element) bool {
	if !nested {
		return h.is
	}
	startLevel := h.level(start)
	return func(el *etree.Element) bool {
		if !h.is(el) {
			return false
		}
		lvl := h.level(el)
		return startLevel == 0 || lvl == 0 || lvl <= startLevel
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldPattern matches any of literals case-insensitively.
func foldPattern(literals ...string) *regexp.Regexp {
	quoted := make([]string, 0, len(literals))
	for _, l := range literals {
		if l != "" {
			quoted = append(quoted, regexp.QuoteMeta(l))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// replaceAcross replaces every match of re in the combined text of nodes.
// Matches may span several nodes: the replacement is written where a match
// starts and the rest of the match is trimmed from the following nodes.
// Matches overlapping an occurrence of keep are left alone. It returns the
// number of replacements.
func replaceAcross(nodes []*etree.Element, re *regexp.Regexp, repl, keep string) int {
	if re == nil || len(nodes) == 0 {
		return 0
	}

	texts := make([]string, len(nodes))
	starts := make([]int, len(nodes))
	ends := make([]int, len(nodes))
	var sb strings.Builder
	for i, n := range nodes {
		starts[i] = sb.Len()
		texts[i] = n.Text()
		sb.WriteString(texts[i])
		ends[i] = sb.Len()
	}
	combined := sb.String()
	matches := outside(re.FindAllStringIndex(combined, -1), combined, keep)
	if len(matches) == 0 {
		return 0
	}

	changed := make([]bool, len(nodes))
	for m := len(matches) - 1; m >= 0; m-- {
		ms, me := matches[m][0], matches[m][1]
		first := true
		for i := range nodes {
			ns, ne := starts[i], ends[i]
			if ne <= ms || ns >= me {
				continue
			}
			ls := max(ms, ns) - ns
			le := min(me, ne) - ns
			insert := ""
			if first {
				insert = repl
				first = false
			}
			texts[i] = texts[i][:ls] + insert + texts[i][le:]
			changed[i] = true
		}
	}

	for i, n := range nodes {
		if !changed[i] {
			continue
		}
		n.SetText(texts[i])
		if n.Space == "w" && n.SelectAttr("xml:space") == nil {
			n.CreateAttr("xml:space", "preserve")
		}
	}
	return len(matches)
}

// outside drops the matches that overlap an occurrence of keep in text. A
// title may itself contain a placeholder token and must survive every sweep.
func outside(matches [][]int, text, keep string) [][]int {
	if keep == "" || len(matches) == 0 {
		return matches
	}
	var spans [][2]int
	for i := 0; i <= len(text); {
		j := strings.Index(text[i:], keep)
		if j < 0 {
			break
		}
		spans = append(spans, [2]int{i + j, i + j + len(keep)})
		i += j + len(keep)
	}
	if len(spans) == 0 {
		return matches
	}

	kept := make([][]int, 0, len(matches))
	for _, m := range matches {
		overlaps := false
		for _, s := range spans {
			if m[0] < s[1] && s[0] < m[1] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	return kept
}

// paragraphGroups splits the text nodes under root by their nearest
// paragraph (w:p or a:p). Paragraphs nested in text boxes form their own
// groups.
func paragraphGroups(root *etree.Element) [][]*etree.Element {
	var groups [][]*etree.Element
	var walk func(el *etree.Element, group int)
	walk = func(el *etree.Element, group int) {
		for _, child := range el.ChildElements() {
			switch {
			case child.Tag == "p" && (child.Space == "w" || child.Space == "a"):
				groups = append(groups, nil)
				walk(child, len(groups)-1)
			case child.Tag == "t" && (child.Space == "w" || child.Space == "a"):
				if group < 0 {
					groups = append(groups, nil)
					group = len(groups) - 1
				}
				groups[group] = append(groups[group], child)
			default:
				walk(child, group)
			}
		}
	}
	walk(root, -1)
	return groups
}
