package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// span is a half-open byte range [start, end) into the document text.
type span struct {
	start, end int
}

// field is one key/value pair of an inline table.
type field struct {
	key   []string
	raw   span // key as written, quotes included
	value span
}

// statement is a top-level key/value line. line runs from the first byte of
// the line to the byte before its newline, so a trailing comment is included.
type statement struct {
	table  []string
	array  bool
	key    []string
	raw    span
	value  span
	line   span
	inline []field
}

type header struct {
	path  []string
	array bool
	line  span
}

// layout is the positional view of a document: where every table header and
// key/value statement lives in the text.
type layout struct {
	headers []header
	stmts   []statement
}

type scanner struct {
	src string
	pos int
}

func scan(src string) (*layout, error) {
	s := &scanner{src: src}
	l := &layout{}
	var table []string
	var array bool
	for {
		s.skipBlank()
		if s.eof() {
			return l, nil
		}
		start := lineStart(src, s.pos)
		if s.peek() == '[' {
			h, err := s.header()
			if err != nil {
				return nil, err
			}
			if err := s.endOfLine(); err != nil {
				return nil, err
			}
			h.line = span{start, s.pos}
			table, array = h.path, h.array
			l.headers = append(l.headers, h)
			continue
		}

		keyStart := s.pos
		key, err := s.key()
		if err != nil {
			return nil, err
		}
		keyEnd := trimRight(src, keyStart, s.pos)
		s.skipSpace()
		if s.peek() != '=' {
			return nil, s.errorf("expected '=' after key %q", strings.Join(key, "."))
		}
		s.pos++
		s.skipSpace()
		valueStart := s.pos
		inline, err := s.value()
		if err != nil {
			return nil, err
		}
		st := statement{
			table:  table,
			array:  array,
			key:    key,
			raw:    span{keyStart, keyEnd},
			value:  span{valueStart, s.pos},
			inline: inline,
		}
		if err := s.endOfLine(); err != nil {
			return nil, err
		}
		st.line = span{start, s.pos}
		l.stmts = append(l.stmts, st)
	}
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) errorf(format string, args ...any) error {
	line := strings.Count(s.src[:min(s.pos, len(s.src))], "\n") + 1
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for !s.eof() && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

// skipBlank skips whitespace, newlines and comments.
func (s *scanner) skipBlank() {
	for !s.eof() {
		switch s.src[s.pos] {
		case ' ', '\t', '\r', '\n':
			s.pos++
		case '#':
			s.skipComment()
		default:
			return
		}
	}
}

func (s *scanner) skipComment() {
	for !s.eof() && s.src[s.pos] != '\n' {
		s.pos++
	}
}

// endOfLine consumes trailing whitespace and an optional comment, stopping
// before the line terminator.
func (s *scanner) endOfLine() error {
	s.skipSpace()
	if s.peek() == '#' {
		s.skipComment()
	}
	if s.eof() {
		return nil
	}
	if s.src[s.pos] == '\n' {
		if s.pos > 0 && s.src[s.pos-1] == '\r' {
			s.pos--
		}
		return nil
	}
	if strings.HasPrefix(s.src[s.pos:], "\r\n") {
		return nil
	}
	return s.errorf("unexpected %q after value", s.src[s.pos])
}

func (s *scanner) header() (header, error) {
	h := header{}
	s.pos++
	if s.peek() == '[' {
		h.array = true
		s.pos++
	}
	s.skipSpace()
	path, err := s.key()
	if err != nil {
		return h, err
	}
	h.path = path
	s.skipSpace()
	closing := "]"
	if h.array {
		closing = "]]"
	}
	if !strings.HasPrefix(s.src[s.pos:], closing) {
		return h, s.errorf("unterminated table header")
	}
	s.pos += len(closing)
	return h, nil
}

func (s *scanner) key() ([]string, error) {
	var parts []string
	for {
		s.skipSpace()
		part, err := s.simpleKey()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		s.skipSpace()
		if s.peek() != '.' {
			return parts, nil
		}
		s.pos++
	}
}

func (s *scanner) simpleKey() (string, error) {
	switch s.peek() {
	case '"':
		start := s.pos
		if err := s.str(); err != nil {
			return "", err
		}
		k, err := strconv.Unquote(s.src[start:s.pos])
		if err != nil {
			return "", s.errorf("invalid quoted key %s", s.src[start:s.pos])
		}
		return k, nil
	case '\'':
		start := s.pos
		if err := s.str(); err != nil {
			return "", err
		}
		return s.src[start+1 : s.pos-1], nil
	}
	start := s.pos
	for !s.eof() && isBareKeyChar(s.src[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return "", s.errorf("expected a key")
	}
	return s.src[start:s.pos], nil
}

func isBareKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}

// value consumes one TOML value. Fields are returned when it is an inline table.
func (s *scanner) value() ([]field, error) {
	if s.eof() {
		return nil, s.errorf("missing value")
	}
	switch s.peek() {
	case '"', '\'':
		return nil, s.str()
	case '[':
		return nil, s.array()
	case '{':
		return s.inlineTable()
	}
	return nil, s.scalar()
}

func (s *scanner) str() error {
	q := s.src[s.pos]
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(s.src[s.pos:], triple) {
		s.pos += 3
		for !s.eof() {
			if q == '"' && s.src[s.pos] == '\\' {
				s.pos += 2
				continue
			}
			if strings.HasPrefix(s.src[s.pos:], triple) {
				s.pos += 3
				// Up to two more quote characters still belong to the content.
				for i := 0; i < 2 && s.peek() == q; i++ {
					s.pos++
				}
				return nil
			}
			s.pos++
		}
		return s.errorf("unterminated multi-line string")
	}
	s.pos++
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			return s.errorf("unterminated string")
		case q == '"' && c == '\\':
			s.pos += 2
			continue
		case c == q:
			s.pos++
			return nil
		}
		s.pos++
	}
	return s.errorf("unterminated string")
}

func (s *scanner) array() error {
	s.pos++
	for {
		s.skipBlank()
		if s.eof() {
			return s.errorf("unterminated array")
		}
		if s.peek() == ']' {
			s.pos++
			return nil
		}
		if _, err := s.value(); err != nil {
			return err
		}
		s.skipBlank()
		switch s.peek() {
		case ',':
			s.pos++
		case ']':
			s.pos++
			return nil
		default:
			return s.errorf("expected ',' or ']' in array")
		}
	}
}

func (s *scanner) inlineTable() ([]field, error) {
	s.pos++
	var fields []field
	for {
		s.skipBlank()
		if s.eof() {
			return nil, s.errorf("unterminated inline table")
		}
		if s.peek() == '}' {
			s.pos++
			return fields, nil
		}
		keyStart := s.pos
		key, err := s.key()
		if err != nil {
			return nil, err
		}
		keyEnd := s.pos
		s.skipSpace()
		if s.peek() != '=' {
			return nil, s.errorf("expected '=' after key %q", strings.Join(key, "."))
		}
		s.pos++
		s.skipSpace()
		valueStart := s.pos
		if _, err := s.value(); err != nil {
			return nil, err
		}
		fields = append(fields, field{
			key:   key,
			raw:   span{keyStart, trimRight(s.src, keyStart, keyEnd)},
			value: span{valueStart, s.pos},
		})
		s.skipBlank()
		switch s.peek() {
		case ',':
			s.pos++
		case '}':
			s.pos++
			return fields, nil
		default:
			return nil, s.errorf("expected ',' or '}' in inline table")
		}
	}
}

// scalar consumes a number, boolean or date/time.
func (s *scanner) scalar() error {
	start := s.pos
	for !s.eof() {
		c := s.src[s.pos]
		if c == ' ' && isDate(s.src[start:s.pos]) && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]) {
			s.pos++
			continue
		}
		if strings.IndexByte(" \t\r\n,]}#", c) >= 0 {
			break
		}
		s.pos++
	}
	if s.pos == start {
		return s.errorf("invalid value")
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range []byte(s) {
		if i != 4 && i != 7 && !isDigit(c) {
			return false
		}
	}
	return true
}

func trimRight(src string, start, end int) int {
	for end > start && (src[end-1] == ' ' || src[end-1] == '\t') {
		end--
	}
	return end
}

func lineStart(src string, pos int) int {
	return strings.LastIndexByte(src[:pos], '\n') + 1
}

// nextLine returns the offset of the first byte after the line terminator at pos.
func nextLine(src string, pos int) int {
	switch {
	case strings.HasPrefix(src[pos:], "\r\n"):
		return pos + 2
	case strings.HasPrefix(src[pos:], "\n"):
		return pos + 1
	}
	return pos
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasPrefixPath(p, prefix []string) bool {
	return len(p) >= len(prefix) && samePath(p[:len(prefix)], prefix)
}
