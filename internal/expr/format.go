package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/navex/internal/ir"
)

// Format renders n as stable, human-readable text. The output is used in
// logs, CLI output and golden files, so it never includes node identities.
//
//	Set<Post>.Join(Set<Blog>, p => p.BlogId, p_Blog => p_Blog.Id, (p, p_Blog) => new Pair(p, p_Blog))
func Format(n Node) string {
	var b strings.Builder
	format(&b, n)
	return b.String()
}

func format(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		b.WriteString("<nil>")
	case *EntitySet:
		fmt.Fprintf(b, "Set<%s>", n.Entity.Name)
	case *Parameter:
		b.WriteString(n.Name)
	case *Lambda:
		if len(n.Params) == 1 {
			b.WriteString(n.Params[0].Name)
		} else {
			names := make([]string, len(n.Params))
			for i, p := range n.Params {
				names[i] = p.Name
			}
			b.WriteString("(" + strings.Join(names, ", ") + ")")
		}
		b.WriteString(" => ")
		format(b, n.Body)
	case *Member:
		format(b, n.Target)
		b.WriteString("." + n.Name)
	case *Constant:
		b.WriteString(FormatValue(n.Value))
	case *Binary:
		b.WriteByte('(')
		format(b, n.Left)
		b.WriteString(" " + string(n.Op) + " ")
		format(b, n.Right)
		b.WriteByte(')')
	case *Not:
		b.WriteByte('!')
		format(b, n.Operand)
	case *Convert:
		b.WriteString("Convert(")
		format(b, n.Operand)
		b.WriteString(", " + n.typ.String() + ")")
	case *Conditional:
		b.WriteByte('(')
		format(b, n.Test)
		b.WriteString(" ? ")
		format(b, n.IfTrue)
		b.WriteString(" : ")
		format(b, n.IfFalse)
		b.WriteByte(')')
	case *New:
		if n.IsPair() {
			b.WriteString("new Pair(")
			format(b, n.Args[0])
			b.WriteString(", ")
			format(b, n.Args[1])
			b.WriteByte(')')
			return
		}
		b.WriteString("new {")
		for i, m := range n.Members {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(" " + m + " = ")
			format(b, n.Args[i])
		}
		b.WriteString(" }")
	case *Call:
		format(b, n.Args[0])
		b.WriteString("." + string(n.Op) + "(")
		for i, a := range n.Args[1:] {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
		b.WriteByte(')')
	case Extension:
		b.WriteString(n.Describe(Format))
	default:
		fmt.Fprintf(b, "<%T>", n)
	}
}

// FormatValue renders a literal.
func FormatValue(v ir.IRValue) string {
	switch v := v.(type) {
	case ir.IRNull:
		return "null"
	case ir.IRString:
		return fmt.Sprintf("%q", string(v))
	case ir.IRInt:
		return fmt.Sprintf("%d", int64(v))
	case ir.IRBool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
