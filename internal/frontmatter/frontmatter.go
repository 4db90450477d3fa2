// Package frontmatter splits the "---" header block that chapter files and imported markdown
// start with.
package frontmatter

import "strings"

const fence = "---"

// Split separates a leading front matter block from the body. The block opens with a "---" line
// at offset 0 and closes at the next line that is exactly "---" (trailing blanks allowed). One
// blank line after the closing fence belongs to the block, since that is how chapters are
// written. ok is false when text has no complete block; body is then text unchanged.
func Split(text string) (header, body string, ok bool) {
	first, rest, found := strings.Cut(text, "\n")
	if !found || strings.TrimRight(first, " \t\r") != fence {
		return "", text, false
	}

	off := 0
	for off <= len(rest) {
		line, after, more := strings.Cut(rest[off:], "\n")
		if strings.TrimRight(line, " \t\r") == fence {
			header = strings.TrimSuffix(rest[:off], "\n")
			if !more {
				return header, "", true
			}
			if blank, tail, cut := strings.Cut(after, "\n"); cut && strings.TrimSpace(blank) == "" {
				after = tail
			} else if strings.TrimSpace(after) == "" {
				after = ""
			}
			return header, after, true
		}
		if !more {
			break
		}
		off += len(line) + 1
	}
	return "", text, false
}

// Strip returns text without its front matter block.
func Strip(text string) string {
	_, body, _ := Split(text)
	return body
}
