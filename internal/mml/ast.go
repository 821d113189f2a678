package mml

import "fmt"

// Node is a single command or a loop block. Loop nodes carry their body in
// Body (before a '|' break) and Tail (after it); the tail is skipped on the
// final repetition.
type Node struct {
	Token  Token
	Loop   bool
	Body   []Node
	Tail   []Node
	Repeat int
}

// AST is the second pass output: one node list per ';'-separated track.
type AST struct {
	Tracks [][]Node
}

// BuildAST groups tokens into tracks and nested loop blocks.
func BuildAST(tokens []Token) (*AST, error) {
	ast := &AST{}
	pos := 0
	for {
		nodes, next, err := buildNodes(tokens, pos, 0)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			ast.Tracks = append(ast.Tracks, nodes)
		}
		if next >= len(tokens) {
			break
		}
		// tokens[next] is a track separator
		pos = next + 1
	}
	return ast, nil
}

func buildNodes(tokens []Token, at, depth int) ([]Node, int, error) {
	nodes := make([]Node, 0, 16)
	for at < len(tokens) {
		tok := tokens[at]
		switch tok.Kind {
		case TokTrackSep:
			if depth > 0 {
				return nil, at, fmt.Errorf("track separator inside loop at %d", tok.Pos)
			}
			return nodes, at, nil
		case TokLoopStart:
			loop, next, err := buildLoop(tokens, at+1, depth+1)
			if err != nil {
				return nil, at, err
			}
			loop.Token = tok
			nodes = append(nodes, loop)
			at = next
			continue
		case TokLoopEnd, TokLoopBreak:
			if depth == 0 {
				return nil, at, fmt.Errorf("unmatched %q at %d", loopChar(tok.Kind), tok.Pos)
			}
			return nodes, at, nil
		}
		nodes = append(nodes, Node{Token: tok})
		at++
	}
	if depth > 0 {
		return nil, at, fmt.Errorf("unclosed '['")
	}
	return nodes, at, nil
}

func buildLoop(tokens []Token, at, depth int) (Node, int, error) {
	body, next, err := buildNodes(tokens, at, depth)
	if err != nil {
		return Node{}, next, err
	}
	loop := Node{Loop: true, Body: body}
	if next < len(tokens) && tokens[next].Kind == TokLoopBreak {
		tail, after, err := buildNodes(tokens, next+1, depth)
		if err != nil {
			return Node{}, after, err
		}
		if after < len(tokens) && tokens[after].Kind == TokLoopBreak {
			return Node{}, after, fmt.Errorf("second '|' in loop at %d", tokens[after].Pos)
		}
		loop.Tail = tail
		next = after
	}
	if next >= len(tokens) || tokens[next].Kind != TokLoopEnd {
		return Node{}, next, fmt.Errorf("unclosed '['")
	}
	loop.Repeat = 2
	if end := tokens[next]; end.HasValue {
		loop.Repeat = end.Value
	}
	if loop.Repeat < 1 {
		loop.Repeat = 1
	}
	return loop, next + 1, nil
}

func loopChar(k TokenKind) byte {
	if k == TokLoopBreak {
		return '|'
	}
	return ']'
}
