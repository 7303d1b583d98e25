package chain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EvaluateCondition evaluates a transition condition against vars. The
// grammar is a small boolean language: == != > < >= <= && || !, parentheses,
// numbers, single or double quoted strings, true/false/null and dotted
// variable paths. An empty expression is false.
func EvaluateCondition(expr string, vars map[string]interface{}) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}

	p := &condParser{tokens: tokens, vars: vars}
	val, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos < len(p.tokens) {
		return false, fmt.Errorf("unexpected token %q at position %d", p.tokens[p.pos].value, p.pos)
	}
	return truthy(val), nil
}

// CheckCondition reports whether expr parses, without resolving variables
func CheckCondition(expr string) error {
	expr = placeholderPattern.ReplaceAllString(expr, "null")
	_, err := EvaluateCondition(expr, nil)
	return err
}

type tokenKind int

const (
	tkNumber tokenKind = iota
	tkString
	tkIdent
	tkOp
	tkLParen
	tkRParen
)

type token struct {
	kind  tokenKind
	value string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		ch := runes[i]

		switch {
		case unicode.IsSpace(ch):
			i++

		case ch == '(':
			tokens = append(tokens, token{tkLParen, "("})
			i++

		case ch == ')':
			tokens = append(tokens, token{tkRParen, ")"})
			i++

		case ch == '"' || ch == '\'':
			s, n, err := readString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tkString, s})
			i = n

		case i+1 < len(runes) && isTwoCharOp(string(runes[i:i+2])):
			op := string(runes[i : i+2])
			// JavaScript-style strict operators collapse to their loose forms
			if (op == "==" || op == "!=") && i+2 < len(runes) && runes[i+2] == '=' {
				i++
			}
			tokens = append(tokens, token{tkOp, op})
			i += 2

		case ch == '>' || ch == '<' || ch == '!':
			tokens = append(tokens, token{tkOp, string(ch)})
			i++

		case isDigit(ch) || (ch == '-' && i+1 < len(runes) && isDigit(runes[i+1]) && isNumberStart(tokens)):
			num, n := readNumber(runes, i)
			tokens = append(tokens, token{tkNumber, num})
			i = n

		case isIdentStart(ch):
			ident, n := readIdent(runes, i)
			tokens = append(tokens, token{tkIdent, ident})
			i = n

		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
		}
	}

	return tokens, nil
}

func isTwoCharOp(s string) bool {
	switch s {
	case "==", "!=", ">=", "<=", "&&", "||":
		return true
	}
	return false
}

// readString reads a quoted literal starting at runes[start]. Escapes follow
// Go syntax, so literals written by strconv.Quote read back unchanged; an
// unknown escape yields the escaped character.
func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	for i := start + 1; i < len(runes); {
		switch runes[i] {
		case quote:
			return sb.String(), i + 1, nil
		case '\\':
			if i+1 >= len(runes) {
				i++
				continue
			}
			end := i + 10
			if end > len(runes) {
				end = len(runes)
			}
			chunk := string(runes[i:end])
			value, _, tail, err := strconv.UnquoteChar(chunk, byte(quote))
			if err != nil {
				sb.WriteRune(runes[i+1])
				i += 2
				continue
			}
			sb.WriteRune(value)
			i += utf8.RuneCountInString(chunk) - utf8.RuneCountInString(tail)
		default:
			sb.WriteRune(runes[i])
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", start)
}

func readNumber(runes []rune, start int) (string, int) {
	i := start
	if runes[i] == '-' {
		i++
	}
	for i < len(runes) && isDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			i++
		}
	}
	return string(runes[start:i]), i
}

func readIdent(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && isIdentPart(runes[i]) {
		i++
	}
	return string(runes[start:i]), i
}

func isDigit(ch rune) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch rune) bool { return unicode.IsLetter(ch) || ch == '_' || ch == '$' }
func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$' || ch == '.'
}

// isNumberStart reports whether a '-' begins a negative literal
func isNumberStart(preceding []token) bool {
	if len(preceding) == 0 {
		return true
	}
	last := preceding[len(preceding)-1]
	return last.kind == tkOp || last.kind == tkLParen
}

type condParser struct {
	tokens []token
	pos    int
	vars   map[string]interface{}
}

func (p *condParser) peekOp(ops ...string) (string, bool) {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tkOp {
		return "", false
	}
	for _, op := range ops {
		if p.tokens[p.pos].value == op {
			return op, true
		}
	}
	return "", false
}

func (p *condParser) parseOr() (interface{}, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp("||"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
}

func (p *condParser) parseAnd() (interface{}, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp("&&"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
}

func (p *condParser) parseComparison() (interface{}, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOp("==", "!=", ">", "<", ">=", "<=")
	if !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return compare(left, op, right), nil
}

func (p *condParser) parseUnary() (interface{}, error) {
	if _, ok := p.peekOp("!"); ok {
		p.pos++
		val, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(val), nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (interface{}, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.tokens[p.pos]
	p.pos++

	switch t.kind {
	case tkNumber:
		return strconv.ParseFloat(t.value, 64)

	case tkString:
		return t.value, nil

	case tkIdent:
		switch t.value {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null", "undefined":
			return nil, nil
		}
		val, _ := lookupPath(p.vars, t.value)
		return val, nil

	case tkLParen:
		val, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tkRParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return val, nil

	default:
		return nil, fmt.Errorf("unexpected token %q", t.value)
	}
}

// compare applies op to two values. Numbers (and numeric strings) compare
// numerically, booleans compare by value and everything else compares as text.
// nil equals only nil and orders below any other value.
func compare(left interface{}, op string, right interface{}) bool {
	if left == nil && right == nil {
		return op == "==" || op == ">=" || op == "<="
	}
	if left == nil || right == nil {
		switch op {
		case "==":
			return false
		case "!=":
			return true
		}
		if left == nil {
			return op == "<" || op == "<="
		}
		return op == ">" || op == ">="
	}

	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			switch op {
			case "==":
				return lb == rb
			case "!=":
				return lb != rb
			}
			return false
		}
	}

	// A boolean against a number counts as 1 or 0.
	if _, ok := toFloat64(right); ok {
		if lb, ok := left.(bool); ok {
			left = boolNumber(lb)
		}
	}
	if _, ok := toFloat64(left); ok {
		if rb, ok := right.(bool); ok {
			right = boolNumber(rb)
		}
	}

	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case "<":
			return lf < rf
		case ">=":
			return lf >= rf
		case "<=":
			return lf <= rf
		}
	}

	ls, rs := stringify(left), stringify(right)
	switch op {
	case "==":
		return ls == rs
	case "!=":
		return ls != rs
	case ">":
		return ls > rs
	case "<":
		return ls < rs
	case ">=":
		return ls >= rs
	case "<=":
		return ls <= rs
	}
	return false
}

// truthy follows JavaScript truthiness: nil, false, 0 and "" are false
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil && strings.TrimSpace(val) != "" {
			return f, true
		}
	}
	return 0, false
}
