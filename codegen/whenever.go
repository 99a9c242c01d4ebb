package codegen

import (
	"strings"

	"github.com/shibukawa/esqlc/sqlparser"
)

// Handler is the action bound to one whenever condition. The zero value is
// CONTINUE, which generates no guard.
type Handler struct {
	Action sqlparser.WheneverAction
	Target string
}

// WheneverContext is the whenever handler state active for one generated
// statement. It is an immutable value threaded through the generator:
// each WHENEVER directive derives a new context with With, so the state
// visible to a statement is exactly the directives that precede it.
type WheneverContext struct {
	NotFound Handler
	Warning  Handler
	Error    Handler
}

// With returns a context with the clause's condition rebound.
func (c WheneverContext) With(clause *sqlparser.WheneverClause) WheneverContext {
	h := Handler{Action: clause.Action, Target: clause.Target}

	switch clause.Condition {
	case sqlparser.CondNotFound:
		c.NotFound = h
	case sqlparser.CondSQLWarning:
		c.Warning = h
	case sqlparser.CondSQLError:
		c.Error = h
	}

	return c
}

// Guards renders the active condition checks in their fixed order:
// not-found first, then warning, then error. A not-found result that also
// carries an error flag must reach the not-found branch, so reordering
// would change behavior.
func (c WheneverContext) Guards() []string {
	guards := make([]string, 0, 3)

	if body := c.NotFound.body(); body != "" {
		guards = append(guards, "if (sqlca.sqlcode == ECPG_NOT_FOUND) "+body)
	}
	if body := c.Warning.body(); body != "" {
		guards = append(guards, "if (sqlca.sqlwarn[0] == 'W') "+body)
	}
	if body := c.Error.body(); body != "" {
		guards = append(guards, "if (sqlca.sqlcode < 0) "+body)
	}

	return guards
}

// body renders the guarded action, or "" for CONTINUE.
func (h Handler) body() string {
	switch h.Action {
	case sqlparser.ActContinue:
		return ""
	case sqlparser.ActBreak:
		return "break;"
	case sqlparser.ActStop:
		return "exit (1);"
	case sqlparser.ActSQLPrint:
		return "sqlprint();"
	case sqlparser.ActGoto:
		return "goto " + h.Target + ";"
	case sqlparser.ActCall:
		target := h.Target
		if !strings.HasSuffix(target, ")") {
			target += "()"
		}
		return target + ";"
	default:
		return ""
	}
}
