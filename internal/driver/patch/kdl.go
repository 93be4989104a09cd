package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
)

var quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// kdlDoc is a KDL document with each byte classified. Bytes that are
// neither code nor comment belong to string literals.
type kdlDoc struct {
	text    string
	code    []bool
	comment []bool
	depth   []int
}

type kdlBlock struct {
	start, open, close int
}

func parseKDL(text string) kdlDoc {
	d := kdlDoc{
		text:    text,
		code:    make([]bool, len(text)),
		comment: make([]bool, len(text)),
		depth:   make([]int, len(text)),
	}
	depth := 0
	var inString, escaped, lineComment, blockComment bool
	for i := 0; i < len(text); i++ {
		ch := text[i]
		d.depth[i] = depth
		switch {
		case lineComment:
			if ch == '\n' {
				lineComment = false
				d.code[i] = true
			} else {
				d.comment[i] = true
			}
		case blockComment:
			d.comment[i] = true
			if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
				blockComment = false
				i++
				d.depth[i], d.comment[i] = depth, true
			}
		case inString:
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
		case ch == '/' && i+1 < len(text) && (text[i+1] == '/' || text[i+1] == '*'):
			lineComment = text[i+1] == '/'
			blockComment = !lineComment
			d.comment[i] = true
			i++
			d.depth[i], d.comment[i] = depth, true
		case ch == '"':
			inString = true
		default:
			d.code[i] = true
			if ch == '{' {
				depth++
			} else if ch == '}' && depth > 0 {
				depth--
			}
		}
	}
	return d
}

// uncommented returns text[from:to] with comments blanked out. Offsets
// are preserved.
func (d kdlDoc) uncommented(from, to int) string {
	b := []byte(d.text[from:to])
	for i := range b {
		if d.comment[from+i] && b[i] != '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}

// block finds the first node matching header between from and to at the
// given depth. A header is a node name followed by quoted arguments the
// node must carry, in any order.
func (d kdlDoc) block(header string, from, to, depth int) (kdlBlock, bool) {
	name, args := splitHeader(header)
	for i := from; i+len(name) <= to; i++ {
		if !d.code[i] || d.depth[i] != depth || !strings.HasPrefix(d.text[i:], name) {
			continue
		}
		end := i + len(name)
		if (i > 0 && isIdent(d.text[i-1])) || (end < len(d.text) && isIdent(d.text[end])) {
			continue
		}
		open := d.openBrace(end, to, depth)
		if open < 0 || !hasArgs(d.text[end:open], args) {
			continue
		}
		if close := d.matchBrace(open, to); close >= 0 {
			return kdlBlock{start: i, open: open, close: close}, true
		}
	}
	return kdlBlock{}, false
}

// openBrace returns the brace opening the children of the node whose
// header continues at from, or -1 when the node has none.
func (d kdlDoc) openBrace(from, to, depth int) int {
	for i := from; i < to; i++ {
		if !d.code[i] || d.depth[i] != depth {
			continue
		}
		switch d.text[i] {
		case '{':
			return i
		case ';', '\n', '}':
			return -1
		}
	}
	return -1
}

func (d kdlDoc) matchBrace(open, to int) int {
	level := 0
	for i := open; i < to; i++ {
		if !d.code[i] {
			continue
		}
		switch d.text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}

// childIndent guesses the indentation of b's children from the first
// indented child, falling back to four spaces past b's own.
func (d kdlDoc) childIndent(b kdlBlock) string {
	parent := lineIndent(d.text, b.start)
	lines := strings.Split(d.uncommented(b.open+1, b.close), "\n")
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if len(lead) > len(parent) {
			return lead
		}
	}
	return parent + "    "
}

// insertChild adds node as the last child of b, or at the end of the
// document when b is nil.
func (d kdlDoc) insertChild(b *kdlBlock, node ...string) string {
	if b == nil {
		return withNewline(d.text) + strings.Join(node, "\n") + "\n"
	}
	indent := d.childIndent(*b)
	var sb strings.Builder
	for _, l := range node {
		sb.WriteString(indent + l + "\n")
	}
	lineStart := strings.LastIndexByte(d.text[:b.close], '\n') + 1
	if lineStart > b.open && strings.TrimSpace(d.text[lineStart:b.close]) == "" {
		return d.text[:lineStart] + sb.String() + d.text[lineStart:]
	}
	return d.text[:b.close] + "\n" + sb.String() + lineIndent(d.text, b.start) + d.text[b.close:]
}

// ensureSection creates the missing nodes of path and returns the text
// with the innermost node's position.
func ensureSection(text string, path []string) (string, kdlBlock) {
	for {
		d := parseKDL(text)
		var parent *kdlBlock
		from, to := 0, len(text)
		missing := ""
		for depth, header := range path {
			b, ok := d.block(header, from, to, depth)
			if !ok {
				missing = header
				break
			}
			parent = &b
			from, to = b.open+1, b.close
		}
		if missing == "" {
			return text, *parent
		}
		text = d.insertChild(parent, missing+" {", "}")
	}
}

// editKDL applies a kdl-mode patch. The section is created when missing,
// every Key inside it is rewritten to Value, and Line is added unless a
// child already matches Pattern (or equals Line).
func editKDL(spec *step.PatchSpec, content string) (string, error) {
	path := strings.Split(spec.Section, "/")
	for i := range path {
		path[i] = strings.TrimSpace(path[i])
	}
	text, b := ensureSection(content, path)

	if spec.Key != "" {
		d := parseKDL(text)
		body := d.uncommented(b.open+1, b.close)
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(spec.Key))
		locs := re.FindAllStringIndex(body, -1)
		value := fmt.Sprint(spec.Value)
		for i := len(locs) - 1; i >= 0; i-- {
			start, end := b.open+1+locs[i][0], b.open+1+locs[i][1]
			if text[start:end] == value {
				continue
			}
			text = text[:start] + value + text[end:]
		}
		text, b = ensureSection(text, path)
	}

	if spec.Line == "" {
		return text, nil
	}
	d := parseKDL(text)
	body := d.uncommented(b.open+1, b.close)
	present := false
	if spec.Pattern != "" {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return content, fmt.Errorf("%w: %v", driver.ErrPermanent, err)
		}
		present = re.MatchString(body)
	} else {
		present = hasLine(trimLines(body), spec.Line)
	}
	if present {
		return text, nil
	}
	return d.insertChild(&b, spec.Line), nil
}

func splitHeader(header string) (string, []string) {
	name := header
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		name = header[:i]
	}
	var args []string
	for _, m := range quotedRe.FindAllStringSubmatch(header, -1) {
		args = append(args, strings.ToLower(m[1]))
	}
	return name, args
}

func hasArgs(header string, want []string) bool {
	have := make(map[string]bool)
	for _, m := range quotedRe.FindAllStringSubmatch(header, -1) {
		have[strings.ToLower(m[1])] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}

func isIdent(c byte) bool {
	return c == '_' || c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func lineIndent(text string, pos int) string {
	start := strings.LastIndexByte(text[:pos], '\n') + 1
	end := start
	for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
		end++
	}
	return text[start:end]
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}
