package expression

import (
	"strconv"
	"strings"
	"unicode"
)

// Compiled is a parsed `when` expression: a disjunction of AND groups.
type Compiled struct {
	Source string
	Groups []LogicalExpression
}

var symbolOperators = map[string]string{
	"==":          OpEqual,
	"!=":          OpNotEqual,
	"<":           OpLessThan,
	"<=":          OpLessThanEqual,
	">":           OpGreaterThan,
	">=":          OpGreaterThanEqual,
	"contains":    OpContains,
	"startsWith":  OpStartsWith,
	"starts_with": OpStartsWith,
	"endsWith":    OpEndsWith,
	"ends_with":   OpEndsWith,
	"matches":     OpRegexMatch,
	"is_a":        OpIsA,
}

// Compile parses expressions of the form
//
//	error.type == "CORE:CONNECTIVITY" && vars.attempt < 3 || vars.force
//
// && binds tighter than ||. A bare field means "== true" and !field "!= true".
func Compile(expr string) (*Compiled, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &EvaluationError{Expression: expr, Message: "empty expression"}
	}

	p := &parser{src: expr, tokens: tokens}
	compiled := &Compiled{Source: expr}

	for {
		group, err := p.andGroup()
		if err != nil {
			return nil, err
		}
		compiled.Groups = append(compiled.Groups, group)

		if p.done() {
			return compiled, nil
		}
		if p.next().text != "||" {
			return nil, p.errorf("expected || or &&")
		}
	}
}

type token struct {
	text   string
	quoted bool
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) errorf(msg string) error {
	return &EvaluationError{Expression: p.src, Message: msg + " at token " + strconv.Itoa(p.pos)}
}

func (p *parser) andGroup() (LogicalExpression, error) {
	group := LogicalExpression{Logic: LogicAnd}
	for {
		cond, err := p.condition()
		if err != nil {
			return group, err
		}
		group.Conditions = append(group.Conditions, cond)

		if p.done() || p.peek().text != "&&" || p.peek().quoted {
			return group, nil
		}
		p.next()
	}
}

func (p *parser) condition() (ConditionExpression, error) {
	if p.done() {
		return ConditionExpression{}, p.errorf("missing condition")
	}

	negate := false
	field := p.next()
	if field.text == "!" && !field.quoted {
		negate = true
		field = p.next()
	}
	if field.quoted || field.text == "" || isPunct(field.text) {
		return ConditionExpression{}, p.errorf("expected field")
	}

	op, isOp := symbolOperators[p.peek().text]
	if negate || p.done() || !isOp || p.peek().quoted {
		operator := OpEqual
		if negate {
			operator = OpNotEqual
		}
		return ConditionExpression{Field: field.text, Operator: operator, Value: true}, nil
	}
	p.next()

	if p.done() {
		return ConditionExpression{}, p.errorf("missing value")
	}
	value := p.next()
	if !value.quoted && isPunct(value.text) {
		return ConditionExpression{}, p.errorf("expected value")
	}

	fieldName := field.text
	if op == OpIsA && fieldName == "error.type" {
		fieldName = "error.ancestors"
	}
	return ConditionExpression{Field: fieldName, Operator: op, Value: literal(value)}, nil
}

func isPunct(s string) bool {
	switch s {
	case "&&", "||", "!":
		return true
	}
	_, isOp := symbolOperators[s]
	return isOp && !unicode.IsLetter(rune(s[0]))
}

func literal(t token) any {
	if t.quoted {
		return t.text
	}
	switch t.text {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if f, err := strconv.ParseFloat(t.text, 64); err == nil {
		return f
	}
	return t.text
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '"' || r == '\'':
			j := i + 1
			var b strings.Builder
			for j < len(runes) && runes[j] != r {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				b.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, &EvaluationError{Expression: src, Message: "unterminated string"}
			}
			tokens = append(tokens, token{text: b.String(), quoted: true})
			i = j + 1

		case strings.ContainsRune("=!<>&|", r):
			j := i + 1
			if j < len(runes) && strings.ContainsRune("=&|", runes[j]) {
				j++
			}
			text := string(runes[i:j])
			if text == "=" || text == "&" || text == "|" {
				return nil, &EvaluationError{Expression: src, Message: "unexpected " + text}
			}
			tokens = append(tokens, token{text: text})
			i = j

		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune("=!<>&|\"'", runes[j]) {
				j++
			}
			tokens = append(tokens, token{text: string(runes[i:j])})
			i = j
		}
	}
	return tokens, nil
}
