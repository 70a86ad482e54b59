package lisp

import "unicode"

// scanner is a rune cursor that tracks row and column.
type scanner struct {
	input []rune
	pos   int
	row   int
	col   int
}

type mark struct {
	pos, row, col int
}

func newScanner(input string) *scanner {
	return &scanner{input: []rune(input), row: 1, col: 1}
}

func (s *scanner) atEnd() bool { return s.pos >= len(s.input) }

func (s *scanner) peek() rune {
	if s.atEnd() {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) next() rune {
	ch := s.input[s.pos]
	s.pos++
	if ch == '\n' {
		s.row++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) position() Pos { return Pos{Row: s.row, Col: s.col} }

func (s *scanner) mark() mark { return mark{s.pos, s.row, s.col} }

func (s *scanner) reset(m mark) { s.pos, s.row, s.col = m.pos, m.row, m.col }

// skipWhitespace skips whitespace and ; comments.
func (s *scanner) skipWhitespace() {
	for !s.atEnd() {
		ch := s.peek()
		if ch == ';' {
			for !s.atEnd() && s.peek() != '\n' {
				s.next()
			}
			continue
		}
		if !unicode.IsSpace(ch) {
			return
		}
		s.next()
	}
}

// scanToken consumes runes up to the next delimiter.
func (s *scanner) scanToken() string {
	start := s.pos
	for !s.atEnd() && !isDelimiter(s.peek()) {
		s.next()
	}
	return string(s.input[start:s.pos])
}

// scanUntil consumes runes up to (not including) stop. If stop never
// appears the cursor is left where it started and ok is false.
func (s *scanner) scanUntil(stop rune) (text string, ok bool) {
	m := s.mark()
	start := s.pos
	for !s.atEnd() && s.peek() != stop {
		s.next()
	}
	if s.atEnd() {
		s.reset(m)
		return "", false
	}
	return string(s.input[start:s.pos]), true
}

func isDelimiter(ch rune) bool {
	switch ch {
	case '(', ')', '[', ']', '"', ';':
		return true
	}
	return unicode.IsSpace(ch)
}
