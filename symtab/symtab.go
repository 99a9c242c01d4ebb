package symtab

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrDuplicateDeclaration = errors.New("host variable redeclared in the same scope")
	ErrUnknownHostVariable  = errors.New("host variable is not declared in any enclosing declare section")
	ErrScopeUnderflow       = errors.New("scope exit without matching scope entry")
)

// Declaration is one host variable recorded from a declare section.
type Declaration struct {
	Name string
	Type *TypeDescriptor
	Line int

	// Enclosing is set for members of nested struct declarations and
	// points at the declaration of the containing struct variable.
	// The reference is non-owning.
	Enclosing *Declaration
}

// Table maps host variable names to declarations, scoped to the lexical
// block nesting of the declare sections that introduced them. The outermost
// frame (file scope) is always present.
type Table struct {
	scopes []map[string]*Declaration
}

// New creates a symbol table with the file-level scope open.
func New() *Table {
	return &Table{scopes: []map[string]*Declaration{{}}}
}

// Depth returns the number of open scopes including file scope.
func (t *Table) Depth() int {
	return len(t.scopes)
}

// EnterScope opens a nested scope frame.
func (t *Table) EnterScope() {
	t.scopes = append(t.scopes, map[string]*Declaration{})
}

// ExitScope discards the innermost scope frame and every declaration made
// within it. The file-level frame cannot be exited.
func (t *Table) ExitScope() error {
	if len(t.scopes) == 1 {
		return ErrScopeUnderflow
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
	return nil
}

// Declare records a host variable in the current scope.
func (t *Table) Declare(name string, desc *TypeDescriptor, line int) (*Declaration, error) {
	current := t.scopes[len(t.scopes)-1]
	if prev, ok := current[name]; ok {
		return nil, fmt.Errorf("%w: %s (previous declaration at line %d)", ErrDuplicateDeclaration, name, prev.Line)
	}

	decl := &Declaration{Name: name, Type: desc, Line: line}
	current[name] = decl

	return decl, nil
}

// Lookup resolves a host variable reference to the nearest enclosing
// declaration.
func (t *Table) Lookup(name string) (*Declaration, error) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if decl, ok := t.scopes[i][name]; ok {
			return decl, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownHostVariable, name)
}

// Member resolves a dotted member path (e.g. "person.name" split on dots)
// against a struct-typed declaration. The returned declaration is synthetic:
// it names the full access path and keeps a non-owning back-reference to the
// enclosing declaration.
func (d *Declaration) Member(path []string) (*Declaration, error) {
	current := d

	for _, part := range path {
		if current.Type.Kind != Struct {
			return nil, fmt.Errorf("%w: %s is not a struct (member %s)", ErrUnknownHostVariable, current.Name, part)
		}

		var field *Field
		for i := range current.Type.Fields {
			if current.Type.Fields[i].Name == part {
				field = &current.Type.Fields[i]
				break
			}
		}
		if field == nil {
			return nil, fmt.Errorf("%w: %s has no member %s", ErrUnknownHostVariable, current.Name, part)
		}

		current = &Declaration{
			Name:      current.Name + "." + part,
			Type:      field.Type,
			Line:      d.Line,
			Enclosing: current,
		}
	}

	return current, nil
}
