package mml

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenKind int

const (
	TokNote TokenKind = iota + 1
	TokRest
	TokOctave
	TokOctaveUp
	TokOctaveDown
	TokLength
	TokTempo
	TokVolume
	TokProgram
	TokPan
	TokQuantize
	TokTie
	TokLoopStart
	TokLoopBreak
	TokLoopEnd
	TokTrackSep
)

// Token is one lexical element. Value holds the numeric argument; HasValue
// is false when the argument was omitted (e.g. "c" vs "c8").
type Token struct {
	Kind       TokenKind
	Pos        int
	Note       byte // 'c'..'b' for TokNote
	Accidental int  // semitone shift from + # -
	Value      int
	HasValue   bool
	Dots       int
}

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// Lex is the first MML pass: comments are stripped and the source is split
// into tokens. Commands are case-insensitive.
func Lex(src string) ([]Token, error) {
	src = stripComments(src)
	tokens := make([]Token, 0, len(src))
	depth := 0
	for i := 0; i < len(src); {
		ch := lower(src[i])
		// a bar line outside of a loop is decoration
		if isSpace(ch) || ch == '|' && depth == 0 {
			i++
			continue
		}
		tok := Token{Pos: i}
		i++
		switch {
		case isNote(ch):
			tok.Kind = TokNote
			tok.Note = ch
			for i < len(src) {
				switch src[i] {
				case '+', '#':
					tok.Accidental++
					i++
					continue
				case '-':
					tok.Accidental--
					i++
					continue
				}
				break
			}
			i = lexLength(src, i, &tok)
		case ch == 'r':
			tok.Kind = TokRest
			i = lexLength(src, i, &tok)
		case ch == 'l':
			tok.Kind = TokLength
			i = lexLength(src, i, &tok)
			if !tok.HasValue {
				return nil, fmt.Errorf("missing length after 'l' at %d", tok.Pos)
			}
		case ch == 'o':
			tok.Kind = TokOctave
			i = lexNumber(src, i, &tok)
		case ch == '<':
			tok.Kind = TokOctaveDown
		case ch == '>':
			tok.Kind = TokOctaveUp
		case ch == 't':
			tok.Kind = TokTempo
			i = lexNumber(src, i, &tok)
		case ch == 'v':
			tok.Kind = TokVolume
			i = lexNumber(src, i, &tok)
		case ch == '@':
			tok.Kind = TokProgram
			i = lexNumber(src, i, &tok)
		case ch == 'p':
			tok.Kind = TokPan
			i = lexNumber(src, i, &tok)
		case ch == 'q':
			tok.Kind = TokQuantize
			i = lexNumber(src, i, &tok)
		case ch == '&' || ch == '^':
			// "c4&8" extends the previous note; "c4&c8" ties two notes
			tok.Kind = TokTie
			i = lexLength(src, i, &tok)
		case ch == '[':
			tok.Kind = TokLoopStart
			depth++
		case ch == '|':
			tok.Kind = TokLoopBreak
		case ch == ']':
			tok.Kind = TokLoopEnd
			i = lexNumber(src, i, &tok)
			depth--
		case ch == ';':
			tok.Kind = TokTrackSep
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", src[i-1], tok.Pos)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func lexNumber(src string, at int, tok *Token) int {
	start := at
	v := 0
	for at < len(src) && unicode.IsDigit(rune(src[at])) {
		v = v*10 + int(src[at]-'0')
		at++
	}
	if at > start {
		tok.Value = v
		tok.HasValue = true
	}
	return at
}

func lexLength(src string, at int, tok *Token) int {
	at = lexNumber(src, at, tok)
	for at < len(src) && src[at] == '.' {
		tok.Dots++
		at++
	}
	return at
}

func stripComments(src string) string {
	var out strings.Builder
	out.Grow(len(src))
	for i := 0; i < len(src); i++ {
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '*' {
			i += 2
			for i < len(src) {
				if i+1 < len(src) && src[i] == '*' && src[i+1] == '/' {
					i++
					break
				}
				i++
			}
			continue
		}
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out.WriteByte('\n')
			}
			continue
		}
		out.WriteByte(src[i])
	}
	return out.String()
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
func isNote(b byte) bool  { _, ok := noteOffsets[b]; return ok }
