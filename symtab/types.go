package symtab

import "fmt"

// TypeKind discriminates the variants of a TypeDescriptor.
type TypeKind int

const (
	Scalar TypeKind = iota
	FixedArray
	Pointer
	Struct
	Varchar
)

// String returns the string representation of TypeKind
func (k TypeKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case FixedArray:
		return "array"
	case Pointer:
		return "pointer"
	case Struct:
		return "struct"
	case Varchar:
		return "varchar"
	default:
		return "unknown"
	}
}

// TypeDescriptor describes the type of a host variable declaration.
// It is a tagged variant: exactly one of the kind-specific field groups
// is meaningful for a given Kind.
type TypeDescriptor struct {
	Kind TypeKind

	// Scalar and Pointer: the spelled C type ("int", "unsigned char", ...).
	// For Pointer this is the pointee type.
	CType string

	// FixedArray: element type and declared length.
	Elem   *TypeDescriptor
	Length int

	// Struct: ordered member fields and the struct tag ("" for anonymous).
	Tag    string
	Fields []Field

	// Varchar: declared maximum length of the arr member.
	MaxLen int
}

// Field is a named member of a struct descriptor.
type Field struct {
	Name string
	Type *TypeDescriptor
}

// ScalarOf returns a scalar descriptor for a spelled C type.
func ScalarOf(ctype string) *TypeDescriptor {
	return &TypeDescriptor{Kind: Scalar, CType: ctype}
}

// ArrayOf returns a fixed-size array descriptor.
func ArrayOf(elem *TypeDescriptor, length int) *TypeDescriptor {
	return &TypeDescriptor{Kind: FixedArray, Elem: elem, Length: length}
}

// PointerTo returns a pointer descriptor.
func PointerTo(ctype string) *TypeDescriptor {
	return &TypeDescriptor{Kind: Pointer, CType: ctype}
}

// VarcharOf returns a varchar pseudo-type descriptor with the given capacity.
func VarcharOf(maxLen int) *TypeDescriptor {
	return &TypeDescriptor{Kind: Varchar, MaxLen: maxLen}
}

// integerTypes are the C scalar types accepted as indicator variables.
var integerTypes = map[string]bool{
	"int":                true,
	"short":              true,
	"long":               true,
	"long long":          true,
	"unsigned int":       true,
	"unsigned short":     true,
	"unsigned long":      true,
	"unsigned long long": true,
	"signed int":         true,
	"signed short":       true,
	"signed long":        true,
}

// IsInteger reports whether the descriptor is an integer scalar, or a
// fixed-size array of integer scalars (indicator arrays pair with host
// variable arrays element by element).
func (d *TypeDescriptor) IsInteger() bool {
	switch d.Kind {
	case Scalar:
		return integerTypes[d.CType]
	case FixedArray:
		return d.Elem.IsInteger()
	default:
		return false
	}
}

// ArrayLength returns the declared array length, or 1 for non-array types.
func (d *TypeDescriptor) ArrayLength() int {
	if d.Kind == FixedArray {
		return d.Length
	}
	return 1
}

// String renders the descriptor in a C-like spelling for error messages.
func (d *TypeDescriptor) String() string {
	switch d.Kind {
	case Scalar:
		return d.CType
	case FixedArray:
		return fmt.Sprintf("%s[%d]", d.Elem, d.Length)
	case Pointer:
		return d.CType + " *"
	case Struct:
		if d.Tag != "" {
			return "struct " + d.Tag
		}
		return "struct"
	case Varchar:
		return fmt.Sprintf("varchar[%d]", d.MaxLen)
	default:
		return "unknown"
	}
}
