package macros

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// LibraryExpr is a parsed macro library file.
type LibraryExpr struct {
	Macros []*MacroExpr `@@*`
}

type MacroExpr struct {
	Pos    lexer.Position
	Name   string        `"macro" @Ident`
	Params []*ParamExpr  `( "(" ( @@ ( "," @@ )* )? ")" )?`
	Kind   string        `( ":" @( "chem" | "attr" ) )?`
	Body   []*ClauseExpr `"{" @@* "}"`
}

type ParamExpr struct {
	Name string `@Ident`
	Type string `":" @Ident`
}

type ClauseExpr struct {
	In     *string       `  "in" @( Ident | Int ) ";"`
	Out    *string       `| "out" @( Ident | Int ) ";"`
	Expose []*ExposeExpr `| "expose" @@ ( "," @@ )* ";"`
	Proto  *string       `| "proto" @String ";"`
}

type ExposeExpr struct {
	Name string     `@( Ident | Int )`
	Dir  *AngleExpr `( "@" @@ )?`
}

type AngleExpr struct {
	Neg   bool    `@"-"?`
	Value float64 `@( Float | Int )`
}

func (a *AngleExpr) Degrees() float64 {
	if a.Neg {
		return -a.Value
	}
	return a.Value
}

var sLibraryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `\(\*([^*]|\*+[^*)])*\*+\)`},
	{Name: "String", Pattern: "`[^`]*`"},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[-@(){};:,]`},
	{Name: "whitespace", Pattern: `\s+`},
})

var sParseLibrary = participle.MustBuild[LibraryExpr](
	participle.Lexer(sLibraryLexer),
	participle.Elide("Comment"),
	participle.Map(stripBackticks, "String"),
)

// stripBackticks takes proto strings raw; formulas use '\' as a bond direction.
func stripBackticks(tok lexer.Token) (lexer.Token, error) {
	tok.Value = tok.Value[1 : len(tok.Value)-1]
	return tok, nil
}
