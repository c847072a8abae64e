package sql

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/tabula/dialect"
)

// Raw is a SQL fragment that is written into statements verbatim,
// instead of being bound as an argument or quoted as a literal.
//
//	e.SetField("joined_at", sql.Raw("CURRENT_TIMESTAMP"))
type Raw string

// QuoteIdent quotes an identifier for the given dialect.
func QuoteIdent(name, ident string) string {
	if name == dialect.MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Quote returns v as a SQL literal of the given dialect.
func Quote(name string, v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case Raw:
		return string(v)
	case bool:
		if name == dialect.Postgres {
			return strings.ToUpper(strconv.FormatBool(v))
		}
		if v {
			return "1"
		}
		return "0"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return quoteString(name, v)
	case []byte:
		if name == dialect.Postgres {
			return `'\x` + hex.EncodeToString(v) + "'"
		}
		return "X'" + hex.EncodeToString(v) + "'"
	case time.Time:
		return quoteString(name, v.Format("2006-01-02 15:04:05.999999999Z07:00"))
	case fmt.Stringer:
		return quoteString(name, v.String())
	default:
		return quoteString(name, fmt.Sprint(v))
	}
}

// quoteString single-quotes s. Backslashes are escaped only for MySQL,
// the other dialects treat them literally.
func quoteString(name, s string) string {
	if name == dialect.MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Inline replaces the placeholders of query with the quoted arguments.
// Placeholders inside string literals are left untouched.
func Inline(name, query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	var (
		sb      strings.Builder
		next    int
		inQuote bool
	)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			sb.WriteByte(c)
		case inQuote:
			sb.WriteByte(c)
		case c == '?' && name != dialect.Postgres && next < len(args):
			sb.WriteString(Quote(name, args[next]))
			next++
		case c == '$' && name == dialect.Postgres:
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(query[i+1 : j])
			if err != nil || n < 1 || n > len(args) {
				sb.WriteByte(c)
				continue
			}
			sb.WriteString(Quote(name, args[n-1]))
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
