package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/pkg/errors"
)

// AttrKind is the type an attribute value must have.
type AttrKind byte

const (
	AttrBoolean AttrKind = iota + 1
	AttrInteger
	AttrFloat
	AttrString
	AttrConst
	AttrUnion
)

func (k AttrKind) String() string {
	switch k {
	case AttrBoolean:
		return "boolean"
	case AttrInteger:
		return "integer"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	case AttrConst:
		return "const"
	case AttrUnion:
		return "union"
	}
	return "?"
}

// AttrKindByName maps a type name as written in macro declarations to an AttrKind.
var AttrKindByName = map[string]AttrKind{
	"boolean": AttrBoolean,
	"integer": AttrInteger,
	"float":   AttrFloat,
	"string":  AttrString,
}

// AttrContext is what a validator may inspect about the thing being attributed.
type AttrContext struct {
	Group     *gocp.Group // set for group attributes
	BondOrder int         // set for bond attributes
	Label     string      // label abbreviation ('name) written before the block, if any
}

// AttrRule type-checks one raw attribute value.
type AttrRule struct {
	Kind   AttrKind
	HasMin bool
	Min    float64
	HasMax bool
	Max    float64
	Const  string     // AttrConst
	Union  []AttrRule // AttrUnion; first accepting rule wins

	// Check runs after the type check passes.
	Check func(v AttrValue, ctx *AttrContext) error
}

// AttrSpec binds a rule to a key and its short alias.
type AttrSpec struct {
	Key   string
	Alias string
	Rule  AttrRule
}

// AttrSchema is the set of attributes a block may contain.
type AttrSchema []AttrSpec

// Lookup finds the spec for a key or alias.
func (s AttrSchema) Lookup(key string) (*AttrSpec, bool) {
	for i := range s {
		if s[i].Key == key || (s[i].Alias != "" && s[i].Alias == key) {
			return &s[i], true
		}
	}
	return nil, false
}

// Merge returns a schema holding s followed by the specs of other not already in s.
func (s AttrSchema) Merge(other AttrSchema) AttrSchema {
	merged := make(AttrSchema, 0, len(s)+len(other))
	merged = append(merged, s...)
	for _, spec := range other {
		if _, exists := s.Lookup(spec.Key); !exists {
			merged = append(merged, spec)
		}
	}
	return merged
}

// AttrValue is a type-checked attribute value.
type AttrValue struct {
	Kind  AttrKind // never AttrUnion; the accepting alternative's kind
	Bool  bool
	Int   int
	Float float64
	Str   string // raw text as written
}

// AttrValues maps canonical keys to values.
type AttrValues map[string]AttrValue

func (r *AttrRule) String() string {
	switch r.Kind {
	case AttrConst:
		return fmt.Sprintf("'%s'", r.Const)
	case AttrUnion:
		parts := make([]string, len(r.Union))
		for i := range r.Union {
			parts[i] = r.Union[i].String()
		}
		return strings.Join(parts, " | ")
	case AttrInteger, AttrFloat:
		if r.HasMin && r.HasMax {
			return fmt.Sprintf("%v in [%v, %v]", r.Kind, r.Min, r.Max)
		} else if r.HasMin {
			return fmt.Sprintf("%v >= %v", r.Kind, r.Min)
		} else if r.HasMax {
			return fmt.Sprintf("%v <= %v", r.Kind, r.Max)
		}
	}
	return r.Kind.String()
}

// accept type-checks raw; bare denotes a key written without a value.
func (r *AttrRule) accept(raw string, bare bool) (AttrValue, bool) {
	v := AttrValue{
		Kind: r.Kind,
		Str:  raw,
	}
	switch r.Kind {
	case AttrBoolean:
		switch {
		case bare, raw == "true":
			v.Bool = true
		case raw == "false":
			v.Bool = false
		default:
			return v, false
		}
		return v, true
	case AttrInteger:
		if bare {
			return v, false
		}
		n, ok := ParseInteger(raw)
		if !ok || !r.inBounds(float64(n)) {
			return v, false
		}
		v.Int = n
		v.Float = float64(n)
		return v, true
	case AttrFloat:
		if bare {
			return v, false
		}
		x, ok := ParseNumber(raw)
		if !ok || !r.inBounds(x) {
			return v, false
		}
		v.Float = x
		return v, true
	case AttrString:
		return v, !bare
	case AttrConst:
		return v, !bare && raw == r.Const
	case AttrUnion:
		for i := range r.Union {
			alt := &r.Union[i]
			if av, ok := alt.accept(raw, bare); ok {
				return av, true
			}
		}
	}
	return v, false
}

func (r *AttrRule) inBounds(x float64) bool {
	if r.HasMin && x < r.Min {
		return false
	}
	if r.HasMax && x > r.Max {
		return false
	}
	return true
}

// validate type-checks raw and then runs any validators of the accepting rules.
func (r *AttrRule) validate(raw string, bare bool, ctx *AttrContext) (AttrValue, error, error) {
	v, ok := r.accept(raw, bare)
	if !ok {
		return v, errors.Errorf("expecting %s", r.String()), nil
	}
	if r.Kind == AttrUnion {
		for i := range r.Union {
			alt := &r.Union[i]
			if _, altOK := alt.accept(raw, bare); altOK {
				if alt.Check != nil {
					if err := alt.Check(v, ctx); err != nil {
						return v, nil, err
					}
				}
				break
			}
		}
	}
	if r.Check != nil {
		if err := r.Check(v, ctx); err != nil {
			return v, nil, err
		}
	}
	return v, nil, nil
}

// Validate type-checks a single raw value against this rule; used for macro call arguments built outside the parser.
func (r *AttrRule) Validate(raw string, bare bool, ctx *AttrContext) (AttrValue, error) {
	v, typeErr, checkErr := r.validate(raw, bare, ctx)
	if typeErr != nil {
		return v, errors.Wrap(gocp.ErrBadAttrValue, typeErr.Error())
	}
	if checkErr != nil {
		return v, errors.Wrap(gocp.ErrAttrRejected, checkErr.Error())
	}
	return v, nil
}

type rawAttr struct {
	key   string
	value string
	bare  bool
	pos   int
}

// parseAttrBlock parses `{k:v,k2,...}` at the cursor and validates it against schema.
func (p *parser) parseAttrBlock(schema AttrSchema, ctx *AttrContext, what string) (AttrValues, error) {
	p.advance() // Note: skip '{'

	var raws []rawAttr
	cur := rawAttr{bare: true, pos: p.pos()}
	readingValue := false
	flush := func() {
		if cur.key != "" || !cur.bare {
			raws = append(raws, cur)
		}
	}

scan:
	for {
		switch ch := p.current(); {
		case p.atEnd():
			return nil, gocp.NewExpectError(gocp.ErrUnterminated, gocp.ExpectDelimiter, "delimiter '}' of attribute", p.pos(), "end of input")
		case ch == '}':
			flush()
			p.advance()
			break scan
		case ch == ',':
			flush()
			p.advance()
			cur = rawAttr{bare: true, pos: p.pos()}
			readingValue = false
		case ch == ':' && !readingValue:
			readingValue = true
			cur.bare = false
			p.advance()
		default:
			if readingValue {
				cur.value += string(ch)
			} else {
				cur.key += string(ch)
			}
			p.advance()
		}
	}

	vals := make(AttrValues, len(raws))
	for _, ra := range raws {
		if ra.key == "" {
			return nil, gocp.NewExpectError(gocp.ErrUnknownAttr, gocp.ExpectAttrKey, "", ra.pos, "':'")
		}
		spec, ok := schema.Lookup(ra.key)
		if !ok {
			return nil, gocp.NewError(gocp.ErrUnknownAttr, ra.pos, "Unknown %s attribute '%s'.", what, ra.key)
		}
		v, typeErr, checkErr := spec.Rule.validate(ra.value, ra.bare, ctx)
		if typeErr != nil {
			got := strconv.Quote(ra.value)
			if ra.bare {
				got = "no value"
			}
			return nil, gocp.NewError(gocp.ErrBadAttrValue, ra.pos, "Expecting %s attribute '%s' to be %s, but got %s.", what, spec.Key, spec.Rule.String(), got)
		}
		if checkErr != nil {
			return nil, gocp.NewError(gocp.ErrAttrRejected, ra.pos, "Invalid %s attribute '%s': %v.", what, spec.Key, checkErr)
		}
		vals[spec.Key] = v
	}

	return vals, nil
}

func checkLabelName(v AttrValue, ctx *AttrContext) error {
	if v.Str == "" {
		return errors.New("label is empty")
	}
	for _, r := range v.Str {
		if !isIdentChar(r) {
			return errors.Errorf("label '%s' may only contain letters, digits and '_'", v.Str)
		}
	}
	if ctx != nil && ctx.Label != "" && ctx.Label != v.Str {
		return errors.Errorf("label '%s' conflicts with abbreviation '%s'", v.Str, ctx.Label)
	}
	return nil
}

func checkLineIndex(v AttrValue, ctx *AttrContext) error {
	if ctx != nil && ctx.BondOrder > 0 && v.Int > ctx.BondOrder {
		return errors.Errorf("line %d exceeds bond order %d", v.Int, ctx.BondOrder)
	}
	return nil
}

var labelRule = AttrRule{
	Kind: AttrUnion,
	Union: []AttrRule{
		{Kind: AttrInteger, HasMin: true, Min: 0},
		{Kind: AttrString},
	},
	Check: checkLabelName,
}

// GroupSchema is the attribute schema of atom groups.
var GroupSchema = AttrSchema{
	{Key: "color", Alias: "C", Rule: AttrRule{Kind: AttrString}},
	{Key: "bold", Alias: "B", Rule: AttrRule{Kind: AttrBoolean}},
	{Key: "ref", Alias: "&", Rule: labelRule},
}

// BondSchema is the attribute schema of bonds.
var BondSchema = AttrSchema{
	{Key: "color", Alias: "C", Rule: AttrRule{Kind: AttrString}},
	{Key: "highEnergy", Alias: "HE", Rule: AttrRule{Kind: AttrBoolean}},
	{Key: "from", Alias: "F", Rule: AttrRule{Kind: AttrInteger, HasMin: true, Min: 1, Check: checkLineIndex}},
	{Key: "to", Alias: "T", Rule: AttrRule{Kind: AttrInteger, HasMin: true, Min: 1, Check: checkLineIndex}},
	{Key: "length", Alias: "L", Rule: AttrRule{Kind: AttrFloat, HasMin: true, Min: 0}},
	{Key: "side", Alias: "S", Rule: AttrRule{
		Kind: AttrUnion,
		Union: []AttrRule{
			{Kind: AttrConst, Const: "L"},
			{Kind: AttrConst, Const: "R"},
		},
	}},
}

// CallSchema holds the attributes every macro call accepts.
var CallSchema = AttrSchema{
	{Key: "ref", Alias: "&", Rule: labelRule},
	{Key: "deg", Alias: "D", Rule: AttrRule{Kind: AttrFloat}},
}

func decodeGroupAttrs(vals AttrValues) gocp.GroupAttrs {
	var a gocp.GroupAttrs
	if v, ok := vals["color"]; ok {
		a.Color = v.Str
	}
	if v, ok := vals["bold"]; ok {
		a.Bold = v.Bool
	}
	if v, ok := vals["ref"]; ok {
		a.Ref = v.Str
	}
	return a
}

func decodeBondAttrs(vals AttrValues) gocp.BondAttrs {
	var a gocp.BondAttrs
	if v, ok := vals["color"]; ok {
		a.Color = v.Str
	}
	if v, ok := vals["highEnergy"]; ok {
		a.HighEnergy = v.Bool
	}
	if v, ok := vals["from"]; ok {
		a.From = v.Int
	}
	if v, ok := vals["to"]; ok {
		a.To = v.Int
	}
	if v, ok := vals["length"]; ok {
		length := v.Float
		a.Length = &length
	}
	if v, ok := vals["side"]; ok {
		switch v.Str {
		case "L":
			a.Side = gocp.SideL
		case "R":
			a.Side = gocp.SideR
		}
	}
	return a
}
