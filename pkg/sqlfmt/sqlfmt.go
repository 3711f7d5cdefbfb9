// Package sqlfmt formats SQL for display: keywords uppercased, major
// clauses on their own lines. It is a presentation formatter, not a parser:
// string literals, quoted identifiers and comments pass through untouched.
package sqlfmt

import "strings"

// keywords get uppercased wherever they appear as bare words.
var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "into": true,
	"values": true, "update": true, "set": true, "delete": true, "create": true,
	"table": true, "index": true, "drop": true, "alter": true, "add": true,
	"column": true, "primary": true, "key": true, "foreign": true,
	"references": true, "constraint": true, "unique": true, "not": true,
	"null": true, "default": true, "if": true, "exists": true, "and": true,
	"or": true, "on": true, "as": true, "in": true, "is": true, "join": true,
	"left": true, "right": true, "inner": true, "outer": true, "group": true,
	"by": true, "order": true, "limit": true, "offset": true, "having": true,
	"union": true, "all": true, "distinct": true, "cascade": true,
	"policy": true, "enable": true, "row": true, "level": true,
	"security": true, "grant": true, "revoke": true, "using": true,
	"with": true, "check": true, "begin": true, "commit": true,
	"rollback": true, "returning": true, "asc": true, "desc": true,
}

// clause keywords start a new line when they open a clause.
var clauseStarters = map[string]bool{
	"FROM": true, "WHERE": true, "VALUES": true, "SET": true, "GROUP": true,
	"ORDER": true, "LIMIT": true, "HAVING": true, "RETURNING": true,
}

// Format normalizes sql for display. Empty input stays empty.
func Format(sql string) string {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return ""
	}

	var out strings.Builder
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if keywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		if clauseStarters[w] && out.Len() > 0 {
			trimTrailingSpace(&out)
			out.WriteByte('\n')
		}
		out.WriteString(w)
	}

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			// String literal or quoted identifier: copy verbatim through the
			// closing quote (doubled quotes escape themselves).
			flush()
			j := i + 1
			for j < len(sql) {
				if sql[j] == c {
					if j+1 < len(sql) && sql[j+1] == c {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			out.WriteString(sql[i:j])
			i = j

		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			// Line comment: copy through end of line.
			flush()
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				j = len(sql) - i
			}
			out.WriteString(sql[i : i+j])
			i += j

		case isWordByte(c):
			word.WriteByte(c)
			i++

		default:
			flush()
			out.WriteByte(c)
			i++
		}
	}
	flush()

	return collapseBlankRuns(out.String())
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	trimmed := strings.TrimRight(s, " \t")
	if len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

// collapseBlankRuns limits consecutive blank lines to one.
func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blanks := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
