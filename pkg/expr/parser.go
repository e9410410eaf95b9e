package expr

import "strconv"

// node is one typed AST node. Expressions are parsed once and walked by
// the evaluator; no string re-interpolation happens at evaluation time.
type node interface {
	pos() int
}

type literalNode struct {
	value  any
	offset int
}

func (n *literalNode) pos() int { return n.offset }

type pathNode struct {
	parts  []string
	offset int
}

func (n *pathNode) pos() int { return n.offset }

type callNode struct {
	name   string
	args   []node
	offset int
}

func (n *callNode) pos() int { return n.offset }

type unaryNode struct {
	operand node
	offset  int
}

func (n *unaryNode) pos() int { return n.offset }

type binaryNode struct {
	op     tokenKind
	left   node
	right  node
	offset int
}

func (n *binaryNode) pos() int { return n.offset }

type parser struct {
	input   string
	tokens  []token
	current int
}

// Parse turns an expression string into an AST. Callers that evaluate
// the same expression repeatedly (the scheduler does, for job
// conditions) can parse once and reuse the result.
func Parse(input string) (node, error) {
	lex := &lexer{input: input}

	var tokens []token

	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, tok)

		if tok.kind == tokenEOF {
			break
		}
	}

	p := &parser{input: input, tokens: tokens}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.peek().kind != tokenEOF {
		return nil, newError(ErrKindSyntax, input, p.peek().pos, "unexpected token %q", p.peek().text)
	}

	return root, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenOr {
		op := p.advance()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: tokenOr, left: left, right: right, offset: op.pos}
	}

	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenAnd {
		op := p.advance()

		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}

		left = &binaryNode{op: tokenAnd, left: left, right: right, offset: op.pos}
	}

	return left, nil
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	switch p.peek().kind {
	case tokenEq, tokenNotEq, tokenLess, tokenLessEq, tokenGreater, tokenGreaterEq:
		op := p.advance()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &binaryNode{op: op.kind, left: left, right: right, offset: op.pos}, nil
	default:
		return left, nil
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokenNot {
		op := p.advance()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &unaryNode{operand: operand, offset: op.pos}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.advance()

	switch tok.kind {
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.peek().kind != tokenRParen {
			return nil, newError(ErrKindSyntax, p.input, p.peek().pos, "expected closing parenthesis")
		}

		p.advance()

		return inner, nil
	case tokenString:
		return &literalNode{value: tok.text, offset: tok.pos}, nil
	case tokenNumber:
		num, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, newError(ErrKindSyntax, p.input, tok.pos, "invalid number %q", tok.text)
		}

		return &literalNode{value: num, offset: tok.pos}, nil
	case tokenIdent:
		return p.parseIdent(tok)
	default:
		return nil, newError(ErrKindSyntax, p.input, tok.pos, "unexpected token %q", tok.text)
	}
}

// parseIdent handles keyword literals, dotted context paths, and
// function calls.
func (p *parser) parseIdent(tok token) (node, error) {
	switch tok.text {
	case "true":
		return &literalNode{value: true, offset: tok.pos}, nil
	case "false":
		return &literalNode{value: false, offset: tok.pos}, nil
	case "null":
		return &literalNode{value: nil, offset: tok.pos}, nil
	}

	if p.peek().kind == tokenLParen {
		p.advance()

		var args []node

		for p.peek().kind != tokenRParen {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}

			args = append(args, arg)

			if p.peek().kind == tokenComma {
				p.advance()
			}
		}

		p.advance() // closing parenthesis

		return &callNode{name: tok.text, args: args, offset: tok.pos}, nil
	}

	parts := []string{tok.text}

	for p.peek().kind == tokenDot {
		p.advance()

		part := p.advance()
		if part.kind != tokenIdent {
			return nil, newError(ErrKindSyntax, p.input, part.pos, "expected property name after '.'")
		}

		parts = append(parts, part.text)
	}

	return &pathNode{parts: parts, offset: tok.pos}, nil
}

func (p *parser) peek() token {
	return p.tokens[p.current]
}

func (p *parser) advance() token {
	tok := p.tokens[p.current]
	if tok.kind != tokenEOF {
		p.current++
	}

	return tok
}
