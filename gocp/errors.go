package gocp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors
var (
	ErrUnexpectedChar     = errors.New("unexpected character")
	ErrUnterminated       = errors.New("unterminated block")
	ErrTrailingInput      = errors.New("unexpected trailing characters")
	ErrEmptyGroup         = errors.New("empty atom group")
	ErrBadWildcard        = errors.New("wildcard group must be a single '?'")
	ErrBadCollapsed       = errors.New("collapsed carbon must be a single '.'")
	ErrDupModifier        = errors.New("duplicated bond modifier")
	ErrUnknownAttr        = errors.New("unknown attribute")
	ErrBadAttrValue       = errors.New("bad attribute value")
	ErrAttrRejected       = errors.New("attribute rejected")
	ErrUnknownRef         = errors.New("unknown reference")
	ErrSelfLoop           = errors.New("struct bonded to itself")
	ErrUnknownMacro       = errors.New("unknown macro")
	ErrNotChemMacro       = errors.New("macro is not of chemical type")
	ErrBadMacroDef        = errors.New("bad macro definition")
	ErrDupBondDir         = errors.New("duplicated bond direction")
	ErrNoBondDir          = errors.New("no bond direction")
	ErrNoDefaultDir       = errors.New("no default direction")
	ErrCannotInferDir     = errors.New("cannot infer broken line direction")
	ErrDisconnected       = errors.New("structs aren't connected")
	ErrTooDeep            = errors.New("formula nested too deeply")
	ErrUnresolvedBondDirs = errors.New("bond has no resolved direction")
)

// ErrKind classifies an Error.
type ErrKind byte

const (
	KindSyntax ErrKind = iota + 1
	KindAttribute
	KindReference
	KindMacro
	KindGeometry
	KindTopology
	KindLimit
)

func (k ErrKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindAttribute:
		return "attribute"
	case KindReference:
		return "reference"
	case KindMacro:
		return "macro"
	case KindGeometry:
		return "geometry"
	case KindTopology:
		return "topology"
	case KindLimit:
		return "limit"
	}
	return "unknown"
}

var kindOf = map[error]ErrKind{
	ErrUnexpectedChar:     KindSyntax,
	ErrUnterminated:       KindSyntax,
	ErrTrailingInput:      KindSyntax,
	ErrEmptyGroup:         KindSyntax,
	ErrBadWildcard:        KindSyntax,
	ErrBadCollapsed:       KindSyntax,
	ErrDupModifier:        KindSyntax,
	ErrUnknownAttr:        KindAttribute,
	ErrBadAttrValue:       KindAttribute,
	ErrAttrRejected:       KindAttribute,
	ErrUnknownRef:         KindReference,
	ErrSelfLoop:           KindReference,
	ErrUnknownMacro:       KindMacro,
	ErrNotChemMacro:       KindMacro,
	ErrBadMacroDef:        KindMacro,
	ErrDupBondDir:         KindGeometry,
	ErrNoBondDir:          KindGeometry,
	ErrNoDefaultDir:       KindGeometry,
	ErrCannotInferDir:     KindGeometry,
	ErrUnresolvedBondDirs: KindGeometry,
	ErrDisconnected:       KindTopology,
	ErrTooDeep:            KindLimit,
}

// Expectation tags what a parse step expected when it failed.
//
// A caller may recover from a failure only if its tag is the one it anticipated.
type Expectation byte

const (
	ExpectNothing Expectation = iota
	ExpectAtomGroup
	ExpectBond
	ExpectBondDir
	ExpectPrefixBond
	ExpectNumber
	ExpectIdentifier
	ExpectAttrKey
	ExpectAttrValue
	ExpectDelimiter
	ExpectEnd
)

func (e Expectation) String() string {
	switch e {
	case ExpectAtomGroup:
		return "atom group"
	case ExpectBond:
		return "bond"
	case ExpectBondDir:
		return "at least one bond direction"
	case ExpectPrefixBond:
		return "prefix-styled bond"
	case ExpectNumber:
		return "number"
	case ExpectIdentifier:
		return "identifier"
	case ExpectAttrKey:
		return "attribute key"
	case ExpectAttrValue:
		return "attribute value"
	case ExpectDelimiter:
		return "delimiter"
	case ExpectEnd:
		return "end of input"
	}
	return ""
}

// Error is the single error type returned by every stage.
type Error struct {
	Kind   ErrKind
	Expect Expectation // ExpectNothing unless this is an expectation failure
	Pos    int         // byte offset into the original source; -1 if not applicable
	Err    error       // sentinel, see errors.Is
	Detail string
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Err.Error()
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("%s (at %d)", msg, e.Pos)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an Error for the given sentinel with a formatted detail message.
func NewError(sentinel error, pos int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   KindOf(sentinel),
		Pos:    pos,
		Err:    sentinel,
		Detail: fmt.Sprintf(format, args...),
	}
}

// NewExpectError returns an expectation failure: "Expecting <what>, but got <got>."
func NewExpectError(sentinel error, expect Expectation, what string, pos int, got string) *Error {
	if what == "" {
		what = expect.String()
	}
	return &Error{
		Kind:   KindOf(sentinel),
		Expect: expect,
		Pos:    pos,
		Err:    sentinel,
		Detail: fmt.Sprintf("Expecting %s, but got %s.", what, got),
	}
}

// KindOf returns the ErrKind for a sentinel error.
func KindOf(sentinel error) ErrKind {
	return kindOf[sentinel]
}

// KindOfErr returns the ErrKind of any error produced by this module, or 0.
func KindOfErr(err error) ErrKind {
	var cpErr *Error
	if errors.As(err, &cpErr) {
		return cpErr.Kind
	}
	return 0
}

// IsExpecting reports if err is an expectation failure tagged with expect.
func IsExpecting(err error, expect Expectation) bool {
	var cpErr *Error
	if errors.As(err, &cpErr) {
		return cpErr.Expect == expect
	}
	return false
}
