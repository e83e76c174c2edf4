package mask

import (
	"bytes"
	"strconv"
	"strings"
)

// rewriteTextNodes applies fn to the character content of every <tag>
// element in a raw XML part, splicing replacements in place. Everything
// outside touched text nodes is preserved byte-for-byte; nodes whose text
// is unchanged by fn keep their original bytes, original escaping included.
//
// The target elements (w:t, t) cannot nest in the formats handled here, so
// a flat scan for the start/end tag pair is sufficient and avoids
// re-serializing the whole part.
func rewriteTextNodes(data []byte, tag string, fn func(string) string) []byte {
	open := []byte("<" + tag)
	closing := []byte("</" + tag + ">")

	var out bytes.Buffer
	out.Grow(len(data))

	pos := 0
	for {
		idx := indexStartTag(data, pos, open)
		if idx < 0 {
			out.Write(data[pos:])
			break
		}

		tagEnd := bytes.IndexByte(data[idx:], '>')
		if tagEnd < 0 {
			out.Write(data[pos:])
			break
		}
		tagEnd += idx

		// Self-closing element carries no text
		if data[tagEnd-1] == '/' {
			out.Write(data[pos : tagEnd+1])
			pos = tagEnd + 1
			continue
		}

		end := bytes.Index(data[tagEnd+1:], closing)
		if end < 0 {
			out.Write(data[pos:])
			break
		}
		end += tagEnd + 1

		raw := data[tagEnd+1 : end]
		text := unescapeText(string(raw))
		masked := fn(text)

		out.Write(data[pos : tagEnd+1])
		if masked == text {
			out.Write(raw)
		} else {
			out.WriteString(escapeText(masked))
		}
		out.Write(closing)

		pos = end + len(closing)
	}

	return out.Bytes()
}

// indexStartTag finds the next occurrence of open that is a real start tag,
// not a longer tag name sharing the prefix (e.g. <tabColor for <t).
func indexStartTag(data []byte, pos int, open []byte) int {
	for {
		idx := bytes.Index(data[pos:], open)
		if idx < 0 {
			return -1
		}
		idx += pos

		next := idx + len(open)
		if next < len(data) {
			switch data[next] {
			case '>', '/', ' ', '\t', '\r', '\n':
				return idx
			}
		}
		pos = idx + 1
	}
}

// escapeText escapes the characters that must not appear literally in XML
// character data.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// unescapeText resolves the predefined XML entities and numeric character
// references in raw character data.
func unescapeText(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}

		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			b.WriteString(s[i:])
			break
		}
		entity := s[i+1 : i+semi]

		switch {
		case entity == "amp":
			b.WriteByte('&')
		case entity == "lt":
			b.WriteByte('<')
		case entity == "gt":
			b.WriteByte('>')
		case entity == "quot":
			b.WriteByte('"')
		case entity == "apos":
			b.WriteByte('\'')
		case strings.HasPrefix(entity, "#x") || strings.HasPrefix(entity, "#X"):
			if n, err := strconv.ParseInt(entity[2:], 16, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString(s[i : i+semi+1])
			}
		case strings.HasPrefix(entity, "#"):
			if n, err := strconv.ParseInt(entity[1:], 10, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString(s[i : i+semi+1])
			}
		default:
			b.WriteString(s[i : i+semi+1])
		}

		i += semi + 1
	}

	return b.String()
}
