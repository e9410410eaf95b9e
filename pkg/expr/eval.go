package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/conveyor/pkg/models"
)

// Evaluate parses and evaluates an expression against a context
// snapshot. It is a pure function: no side effects, no retries.
func Evaluate(input string, ctx *Context) (any, error) {
	root, err := Parse(input)
	if err != nil {
		return nil, err
	}

	ev := &evaluator{input: input, ctx: ctx}

	return ev.eval(root)
}

// EvaluateBool evaluates an expression and coerces the result to a
// boolean with the domain's truthiness rules. An empty expression is
// vacuously true; callers that want the success() default apply it
// before calling.
func EvaluateBool(input string, ctx *Context) (bool, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return true, nil
	}

	// Conditions may be written bare or wrapped in ${{ }}.
	if strings.HasPrefix(trimmed, interpOpen) && strings.HasSuffix(trimmed, interpClose) {
		trimmed = strings.TrimSpace(trimmed[len(interpOpen) : len(trimmed)-len(interpClose)])
	}

	value, err := Evaluate(trimmed, ctx)
	if err != nil {
		return false, err
	}

	return Truthy(value), nil
}

// Truthy applies the loose boolean coercion used by step and job
// conditions: false, null, zero, and "" are false, all else true.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case models.Secret:
		return v.Reveal() != ""
	default:
		return true
	}
}

type evaluator struct {
	input string
	ctx   *Context
}

func (e *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil
	case *pathNode:
		return e.evalPath(n)
	case *callNode:
		return e.evalCall(n)
	case *unaryNode:
		value, err := e.eval(n.operand)
		if err != nil {
			return nil, err
		}

		return !Truthy(value), nil
	case *binaryNode:
		return e.evalBinary(n)
	default:
		return nil, newError(ErrKindSyntax, e.input, n.pos(), "unknown node")
	}
}

// evalPath resolves a dotted reference against the context namespaces.
// A path that does not exist at evaluation time is a configuration
// error, never silently empty.
func (e *evaluator) evalPath(n *pathNode) (any, error) {
	root := n.parts[0]

	switch root {
	case "env":
		return e.lookupStringMap(n, e.ctx.env, "env")
	case "vars":
		return e.lookupStringMap(n, e.ctx.vars, "vars")
	case "matrix":
		if len(n.parts) != 2 {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "matrix reference needs exactly one axis name")
		}

		value, ok := e.ctx.matrix[n.parts[1]]
		if !ok {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "matrix has no axis %q", n.parts[1])
		}

		return normalize(value), nil
	case "secrets":
		if len(n.parts) != 2 {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "secrets reference needs exactly one name")
		}

		secret, ok := e.ctx.secrets[n.parts[1]]
		if !ok {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "secret %q is not available", n.parts[1])
		}

		return secret, nil
	case "needs":
		return e.evalOutputsPath(n, e.ctx.needs, "needs", "job")
	case "steps":
		return e.evalOutputsPath(n, e.ctx.steps, "steps", "step")
	default:
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "unknown context %q", root)
	}
}

func (e *evaluator) lookupStringMap(n *pathNode, m map[string]string, ns string) (any, error) {
	if len(n.parts) != 2 {
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s reference needs exactly one name", ns)
	}

	value, ok := m[n.parts[1]]
	if !ok {
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s has no entry %q", ns, n.parts[1])
	}

	return value, nil
}

// evalOutputsPath resolves needs.<id>.outputs.<name> and
// steps.<id>.outputs.<name> shapes. needs.<id>.result is also exposed
// through the same namespace map under the reserved "result" key.
func (e *evaluator) evalOutputsPath(n *pathNode, m map[string]map[string]string, ns, kind string) (any, error) {
	if len(n.parts) < 2 {
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s reference needs a %s id", ns, kind)
	}

	outputs, ok := m[n.parts[1]]
	if !ok {
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s.%s is not available", ns, n.parts[1])
	}

	switch {
	case len(n.parts) == 3 && n.parts[2] == "result":
		result, ok := outputs["result"]
		if !ok {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s.%s has no recorded result", ns, n.parts[1])
		}

		return result, nil
	case len(n.parts) == 4 && n.parts[2] == "outputs":
		value, ok := outputs[n.parts[3]]
		if !ok {
			return nil, newError(ErrKindUnknownReference, e.input, n.offset, "%s.%s has no output %q", ns, n.parts[1], n.parts[3])
		}

		return value, nil
	default:
		return nil, newError(ErrKindUnknownReference, e.input, n.offset, "unsupported %s reference %q", ns, strings.Join(n.parts, "."))
	}
}

func (e *evaluator) evalCall(n *callNode) (any, error) {
	switch n.name {
	case "success":
		if err := e.wantArgs(n, 0); err != nil {
			return nil, err
		}

		return !e.ctx.status.Failed && !e.ctx.status.Cancelled, nil
	case "failure":
		if err := e.wantArgs(n, 0); err != nil {
			return nil, err
		}

		return e.ctx.status.Failed, nil
	case "cancelled":
		if err := e.wantArgs(n, 0); err != nil {
			return nil, err
		}

		return e.ctx.status.Cancelled, nil
	case "always":
		if err := e.wantArgs(n, 0); err != nil {
			return nil, err
		}

		return true, nil
	case "contains":
		return e.evalStringPair(n, strings.Contains)
	case "startsWith":
		return e.evalStringPair(n, strings.HasPrefix)
	case "endsWith":
		return e.evalStringPair(n, strings.HasSuffix)
	case "format":
		return e.evalFormat(n)
	default:
		return nil, newError(ErrKindUnknownFunction, e.input, n.offset, "unknown function %q", n.name)
	}
}

func (e *evaluator) evalStringPair(n *callNode, fn func(string, string) bool) (any, error) {
	if err := e.wantArgs(n, 2); err != nil {
		return nil, err
	}

	left, err := e.eval(n.args[0])
	if err != nil {
		return nil, err
	}

	right, err := e.eval(n.args[1])
	if err != nil {
		return nil, err
	}

	return fn(Stringify(left), Stringify(right)), nil
}

// evalFormat implements format('{0}-{1}', a, b) positional templating.
func (e *evaluator) evalFormat(n *callNode) (any, error) {
	if len(n.args) < 1 {
		return nil, newError(ErrKindType, e.input, n.offset, "format needs a template argument")
	}

	tmplValue, err := e.eval(n.args[0])
	if err != nil {
		return nil, err
	}

	result := Stringify(tmplValue)

	for i, arg := range n.args[1:] {
		value, err := e.eval(arg)
		if err != nil {
			return nil, err
		}

		result = strings.ReplaceAll(result, fmt.Sprintf("{%d}", i), Stringify(value))
	}

	return result, nil
}

func (e *evaluator) evalBinary(n *binaryNode) (any, error) {
	// Boolean operators short-circuit.
	if n.op == tokenAnd || n.op == tokenOr {
		left, err := e.eval(n.left)
		if err != nil {
			return nil, err
		}

		if n.op == tokenAnd && !Truthy(left) {
			return false, nil
		}

		if n.op == tokenOr && Truthy(left) {
			return true, nil
		}

		right, err := e.eval(n.right)
		if err != nil {
			return nil, err
		}

		return Truthy(right), nil
	}

	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}

	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNotEq:
		return !looseEqual(left, right), nil
	default:
		return e.compare(n, left, right)
	}
}

func (e *evaluator) compare(n *binaryNode, left, right any) (any, error) {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if !leftOk || !rightOk {
		return nil, newError(ErrKindType, e.input, n.offset, "ordering comparison needs numeric operands")
	}

	switch n.op {
	case tokenLess:
		return leftNum < rightNum, nil
	case tokenLessEq:
		return leftNum <= rightNum, nil
	case tokenGreater:
		return leftNum > rightNum, nil
	case tokenGreaterEq:
		return leftNum >= rightNum, nil
	default:
		return nil, newError(ErrKindSyntax, e.input, n.offset, "unknown operator")
	}
}

func (e *evaluator) wantArgs(n *callNode, count int) *EvalError {
	if len(n.args) != count {
		return newError(ErrKindType, e.input, n.offset, "%s takes %d argument(s), got %d", n.name, count, len(n.args))
	}

	return nil
}

// Stringify renders a value for interpolation and output assembly.
// Secrets keep their redaction barrier: callers that genuinely need
// plaintext must unwrap models.Secret explicitly.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case models.Secret:
		return v.Reveal()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// looseEqual compares values after normalizing numbers and unwrapping
// secrets, so 'matrix.node == 20' works whether the axis value was
// declared as a number or a string.
func looseEqual(left, right any) bool {
	leftNum, leftOk := toNumber(left)
	rightNum, rightOk := toNumber(right)

	if leftOk && rightOk {
		return leftNum == rightNum
	}

	return Stringify(left) == Stringify(right)
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		num, err := strconv.ParseFloat(v, 64)

		return num, err == nil
	default:
		return 0, false
	}
}

// normalize maps decoded JSON scalars onto the evaluator's value set.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return v
	}
}
