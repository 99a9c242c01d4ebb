package sqlparser

import "github.com/shibukawa/esqlc/symtab"

// StatementKind is the action kind of an embedded SQL statement, decided by
// its leading keywords.
type StatementKind int

const (
	KindExecute StatementKind = iota
	KindSelectInto
	KindConnect
	KindDisconnect
	KindSetConnection
	KindDeclareCursor
	KindOpen
	KindClose
	KindFetch
	KindPrepare
	KindExecutePrepared
	KindExecuteImmediate
	KindDeallocate
	KindTransaction
	KindWhenever
	KindTypeDef
	KindAllocateDescriptor
	KindDeallocateDescriptor
	KindGetDescriptor
	KindSetDescriptor
)

// String returns the string representation of StatementKind
func (k StatementKind) String() string {
	switch k {
	case KindExecute:
		return "execute"
	case KindSelectInto:
		return "select-into"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindSetConnection:
		return "set-connection"
	case KindDeclareCursor:
		return "declare-cursor"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindFetch:
		return "fetch"
	case KindPrepare:
		return "prepare"
	case KindExecutePrepared:
		return "execute-prepared"
	case KindExecuteImmediate:
		return "execute-immediate"
	case KindDeallocate:
		return "deallocate"
	case KindTransaction:
		return "transaction"
	case KindWhenever:
		return "whenever"
	case KindTypeDef:
		return "type"
	case KindAllocateDescriptor:
		return "allocate-descriptor"
	case KindDeallocateDescriptor:
		return "deallocate-descriptor"
	case KindGetDescriptor:
		return "get-descriptor"
	case KindSetDescriptor:
		return "set-descriptor"
	default:
		return "unknown"
	}
}

// BoundVariable is a reference from an embedded SQL statement to a host
// variable declaration, with its optional indicator.
type BoundVariable struct {
	Name      string
	Decl      *symtab.Declaration
	Indicator *symtab.Declaration // nil when no indicator is bound
}

// WheneverCondition is the condition of a WHENEVER directive.
type WheneverCondition int

const (
	CondSQLError WheneverCondition = iota
	CondSQLWarning
	CondNotFound
)

// String returns the string representation of WheneverCondition
func (c WheneverCondition) String() string {
	switch c {
	case CondSQLError:
		return "sqlerror"
	case CondSQLWarning:
		return "sqlwarning"
	case CondNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// WheneverAction is the action of a WHENEVER directive.
type WheneverAction int

const (
	ActContinue WheneverAction = iota
	ActBreak
	ActStop
	ActSQLPrint
	ActGoto
	ActCall
)

// String returns the string representation of WheneverAction
func (a WheneverAction) String() string {
	switch a {
	case ActContinue:
		return "continue"
	case ActBreak:
		return "break"
	case ActStop:
		return "stop"
	case ActSQLPrint:
		return "sqlprint"
	case ActGoto:
		return "goto"
	case ActCall:
		return "do"
	default:
		return "unknown"
	}
}

// WheneverClause is one parsed WHENEVER directive. Target carries the label
// for ActGoto and the call text for ActCall.
type WheneverClause struct {
	Condition WheneverCondition
	Action    WheneverAction
	Target    string
}

// DescriptorItem is one ":var = FIELD" (GET) or "FIELD = :var" (SET) pair
// of a descriptor statement. Field is one of "count", "data", "length",
// "type", "indicator".
type DescriptorItem struct {
	Field string
	Var   BoundVariable
}

// Statement is one parsed and normalized embedded SQL statement.
type Statement struct {
	Kind StatementKind
	Line int

	// Text is the canonicalized statement text with host variable
	// references replaced by positional markers. Empty for statements that
	// translate to dedicated runtime calls (connect, transaction, ...).
	Text string

	// Inputs are host variables bound into the statement, in marker order;
	// Outputs are bound from results (INTO targets).
	Inputs  []BoundVariable
	Outputs []BoundVariable

	Connection string // AT clause target, "" for the default connection
	ConnVar    bool   // AT target is a host variable; emit it as an identifier

	Cursor string // declare-cursor, open, close, fetch
	Name   string // prepared statement, descriptor, or connection name

	// Connect parameters, rendered as C expressions: a quoted string
	// literal for a name, a bare identifier for a host variable, NULL
	// when absent.
	Target   string
	User     string
	Password string
	Command    string          // transaction command text
	Whenever   *WheneverClause // whenever directive
	TypeSpec   string          // KindTypeDef: the aliased C type spelling
	Descriptor struct {
		Number string // VALUE item number ("" for header items); numeric or $n
		Items  []DescriptorItem
	}
}
