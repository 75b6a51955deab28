package witschema

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/callwire/errors"
)

var primitives = map[string]func() wit.Type{
	"bool":    func() wit.Type { return wit.Bool{} },
	"s8":      func() wit.Type { return wit.S8{} },
	"u8":      func() wit.Type { return wit.U8{} },
	"s16":     func() wit.Type { return wit.S16{} },
	"u16":     func() wit.Type { return wit.U16{} },
	"s32":     func() wit.Type { return wit.S32{} },
	"u32":     func() wit.Type { return wit.U32{} },
	"s64":     func() wit.Type { return wit.S64{} },
	"u64":     func() wit.Type { return wit.U64{} },
	"f32":     func() wit.Type { return wit.F32{} },
	"f64":     func() wit.Type { return wit.F64{} },
	"float32": func() wit.Type { return wit.F32{} },
	"float64": func() wit.Type { return wit.F64{} },
	"char":    func() wit.Type { return wit.Char{} },
	"string":  func() wit.Type { return wit.String{} },
	"ndarray": func() wit.Type { return NDArray() },
}

// ParseType parses a WIT type expression such as "list<tuple<s64, string>>".
// Supported forms are the primitives, list<T>, option<T>, tuple<T, ...>,
// enum<a, b, ...> and ndarray.
func ParseType(expr string) (wit.Type, error) {
	p := &parser{src: expr}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseTypes parses a comma separated list of type expressions. An empty
// string yields no types.
func ParseTypes(expr string) ([]wit.Type, error) {
	p := &parser{src: expr}
	p.skipSpace()
	if p.done() {
		return nil, nil
	}
	var types []wit.Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		p.skipSpace()
		if p.done() {
			return types, nil
		}
		if !p.consume(',') {
			return nil, p.errorf("expected ',' at offset %d", p.pos)
		}
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool {
	return p.pos >= len(p.src)
}

func (p *parser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *parser) consume(c byte) bool {
	p.skipSpace()
	if !p.done() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for !p.done() {
		c := p.src[p.pos]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseType() (wit.Type, error) {
	name := p.ident()
	if name == "" {
		return nil, p.errorf("expected type at offset %d", p.pos)
	}

	switch name {
	case "list", "option":
		if !p.consume('<') {
			return nil, p.errorf("%s needs a type argument", name)
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if !p.consume('>') {
			return nil, p.errorf("unclosed %s<", name)
		}
		if name == "list" {
			return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: elem}}, nil

	case "tuple":
		if !p.consume('<') {
			return nil, p.errorf("tuple needs type arguments")
		}
		var types []wit.Type
		for {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			types = append(types, t)
			if p.consume('>') {
				return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}, nil
			}
			if !p.consume(',') {
				return nil, p.errorf("expected ',' or '>' in tuple at offset %d", p.pos)
			}
		}

	case "enum":
		if !p.consume('<') {
			return nil, p.errorf("enum needs case names")
		}
		var cases []wit.EnumCase
		for {
			c := p.ident()
			if c == "" {
				return nil, p.errorf("expected enum case at offset %d", p.pos)
			}
			cases = append(cases, wit.EnumCase{Name: c})
			if p.consume('>') {
				return &wit.TypeDef{Kind: &wit.Enum{Cases: cases}}, nil
			}
			if !p.consume(',') {
				return nil, p.errorf("expected ',' or '>' in enum at offset %d", p.pos)
			}
		}
	}

	if mk, ok := primitives[name]; ok {
		return mk(), nil
	}
	return nil, p.errorf("unknown type %q", name)
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.ParseFailed("type expression "+strings.TrimSpace(p.src), fmt.Errorf(format, args...))
}
