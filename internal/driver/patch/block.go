package patch

import (
	"fmt"
	"strings"
)

const (
	blockStartFmt = "# >>> envira %s >>>"
	blockEndFmt   = "# <<< envira %s <<<"
)

// readBlock returns the body between the managed markers for name and
// whether the block exists.
func readBlock(content, name string) (string, bool) {
	start := fmt.Sprintf(blockStartFmt, name)
	end := fmt.Sprintf(blockEndFmt, name)

	startIdx := strings.Index(content, start)
	if startIdx == -1 {
		return "", false
	}
	endIdx := strings.Index(content[startIdx:], end)
	if endIdx == -1 {
		return "", false
	}
	endIdx += startIdx

	body := startIdx + len(start)
	if body < len(content) && content[body] == '\n' {
		body++
	}
	if body >= endIdx {
		return "", true
	}
	return content[body:endIdx], true
}

// writeBlock replaces the managed block for name, or appends it. A start
// marker without an end marker is replaced through to the end of content.
func writeBlock(content, name, body string) string {
	start := fmt.Sprintf(blockStartFmt, name)
	end := fmt.Sprintf(blockEndFmt, name)
	block := start + "\n" + withNewline(body) + end + "\n"

	startIdx := strings.Index(content, start)
	if startIdx == -1 {
		if content != "" {
			content = withNewline(content) + "\n"
		}
		return content + block
	}

	endIdx := strings.Index(content[startIdx:], end)
	if endIdx == -1 {
		return content[:startIdx] + block
	}
	after := startIdx + endIdx + len(end)
	if after < len(content) && content[after] == '\n' {
		after++
	}
	return content[:startIdx] + block + content[after:]
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
