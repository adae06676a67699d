package query

import (
	"fmt"
	"math"
)

// evaluate computes an expression against one record
func (c *execContext) evaluate(expr Expression, rec LogRecord) (interface{}, error) {
	switch e := expr.(type) {
	case *LiteralExpr:
		return e.Value, nil

	case *FieldExpr:
		v, _ := getField(rec, e.Name)
		return v, nil

	case *FunctionExpr:
		return c.callFunction(e, rec)

	case *ComparisonExpr:
		return c.evaluateComparison(e, rec)

	case *LogicalExpr:
		left, err := c.evaluate(e.Left, rec)
		if err != nil {
			return nil, err
		}
		if e.Operator == "NOT" {
			return !isTruthy(left), nil
		}
		// both sides are always evaluated
		right, err := c.evaluate(e.Right, rec)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case "AND":
			return isTruthy(left) && isTruthy(right), nil
		case "OR":
			return isTruthy(left) || isTruthy(right), nil
		}
		return nil, NewRuntimeError("", fmt.Errorf("unknown logical operator %q", e.Operator))

	case *ArithmeticExpr:
		left, err := c.evaluate(e.Left, rec)
		if err != nil {
			return nil, err
		}
		right, err := c.evaluate(e.Right, rec)
		if err != nil {
			return nil, err
		}
		return arithmetic(e.Operator, left, right)
	}

	return nil, NewRuntimeError("", fmt.Errorf("unsupported expression %T", expr))
}

func (c *execContext) evaluateComparison(e *ComparisonExpr, rec LogRecord) (interface{}, error) {
	left, err := c.evaluate(e.Left, rec)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case "IS":
		return (left == nil) != e.Negate, nil

	case "IN":
		for _, item := range e.Values {
			v, err := c.evaluate(item, rec)
			if err != nil {
				return nil, err
			}
			if compare(left, "=", v) {
				return true, nil
			}
		}
		return false, nil
	}

	right, err := c.evaluate(e.Right, rec)
	if err != nil {
		return nil, err
	}

	if e.Operator == "LIKE" {
		if left == nil || right == nil {
			return false, nil
		}
		return c.likeRegexp(valueToString(right)).MatchString(valueToString(left)), nil
	}

	// a multivalue field matches when any of its values does
	if mv, ok := left.([]interface{}); ok {
		for _, item := range mv {
			if compare(item, e.Operator, right) {
				return true, nil
			}
		}
		return false, nil
	}
	return compare(left, e.Operator, right), nil
}

// arithmetic applies + - * / % and string concatenation. null operands
// give null, as does division or modulo by zero.
func arithmetic(op string, left, right interface{}) (interface{}, error) {
	if op == "." {
		return valueToString(left) + valueToString(right), nil
	}
	if left == nil || right == nil {
		return nil, nil
	}

	l, lok := toFloat64(left)
	r, rok := toFloat64(right)
	if op == "+" && (!lok || !rok) {
		// + on strings concatenates
		return valueToString(left) + valueToString(right), nil
	}
	if !lok {
		return nil, NewTypeError(fmt.Sprintf("cannot apply %s to non-numeric value %q", op, valueToString(left)))
	}
	if !rok {
		return nil, NewTypeError(fmt.Sprintf("cannot apply %s to non-numeric value %q", op, valueToString(right)))
	}

	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, nil
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, nil
		}
		return math.Mod(l, r), nil
	}
	return nil, NewRuntimeError("", fmt.Errorf("unknown arithmetic operator %q", op))
}

// callFunction evaluates the arguments and dispatches to the registry.
// now() reads the query clock and mvfilter evaluates its argument once
// per value, so both are handled here.
func (c *execContext) callFunction(fn *FunctionExpr, rec LogRecord) (interface{}, error) {
	switch fn.Name {
	case "now":
		return float64(c.now.Unix()), nil
	case "mvfilter":
		return c.mvfilter(fn, rec)
	}

	f, ok := globalRegistry.Get(fn.Name)
	if !ok {
		if c.exec.opts.StrictFunctions {
			return nil, NewUnknownFunctionError(fn.Name)
		}
		c.warn(fmt.Sprintf("unknown function %q evaluates to null", fn.Name))
		return nil, nil
	}

	if len(fn.Args) < f.MinArity() || (f.MaxArity() >= 0 && len(fn.Args) > f.MaxArity()) {
		return nil, NewInvalidArgumentError(fn.Name, arityMessage(f, len(fn.Args)))
	}

	args := make([]interface{}, len(fn.Args))
	for i, arg := range fn.Args {
		v, err := c.evaluate(arg, rec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	v, err := f.Evaluate(args)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func arityMessage(f Function, got int) string {
	switch {
	case f.MaxArity() == f.MinArity():
		return fmt.Sprintf("%s expects %d argument(s), got %d", f.Name(), f.MinArity(), got)
	case f.MaxArity() < 0:
		return fmt.Sprintf("%s expects at least %d argument(s), got %d", f.Name(), f.MinArity(), got)
	default:
		return fmt.Sprintf("%s expects %d to %d arguments, got %d", f.Name(), f.MinArity(), f.MaxArity(), got)
	}
}

// mvfilter keeps the values of the multivalue field referenced by its
// argument for which the argument is truthy
func (c *execContext) mvfilter(fn *FunctionExpr, rec LogRecord) (interface{}, error) {
	if len(fn.Args) != 1 {
		return nil, NewInvalidArgumentError("mvfilter", fmt.Sprintf("mvfilter expects 1 argument(s), got %d", len(fn.Args)))
	}
	field := firstField(fn.Args[0])
	if field == "" {
		return nil, NewInvalidArgumentError("mvfilter", "mvfilter expression must reference a field")
	}
	v, ok := getField(rec, field)
	if !ok || v == nil {
		return nil, nil
	}

	var kept []interface{}
	scratch := copyRecord(rec, 0)
	for _, item := range toMultivalue(v) {
		scratch[field] = item
		ok, err := c.evaluate(fn.Args[0], scratch)
		if err != nil {
			return nil, err
		}
		if isTruthy(ok) {
			kept = append(kept, item)
		}
	}
	return multivalueResult(kept), nil
}

// firstField returns the first field an expression references
func firstField(expr Expression) string {
	switch e := expr.(type) {
	case *FieldExpr:
		return e.Name
	case *FunctionExpr:
		for _, a := range e.Args {
			if f := firstField(a); f != "" {
				return f
			}
		}
	case *ComparisonExpr:
		if f := firstField(e.Left); f != "" {
			return f
		}
		if e.Right != nil {
			return firstField(e.Right)
		}
	case *LogicalExpr:
		if f := firstField(e.Left); f != "" {
			return f
		}
		if e.Right != nil {
			return firstField(e.Right)
		}
	case *ArithmeticExpr:
		if f := firstField(e.Left); f != "" {
			return f
		}
		return firstField(e.Right)
	}
	return ""
}

// executeEval applies the assignments in order to every record. A record
// whose evaluation fails keeps its original values.
func (c *execContext) executeEval(cmd *EvalCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, 0, len(records))
	var rowErrs rowErrors

	for _, rec := range records {
		next := copyRecord(rec, len(cmd.Assignments))
		failed := false
		for _, a := range cmd.Assignments {
			v, err := c.evaluate(a.Expr, next)
			if err != nil {
				rowErrs.add(err)
				failed = true
				break
			}
			if v == nil {
				delete(next, a.Field)
				continue
			}
			next[a.Field] = v
		}
		if failed {
			out = append(out, rec)
			continue
		}
		out = append(out, next)
	}

	c.warnRows("eval", rowErrs)
	return out
}

// toMultivalue returns v as a list of values
func toMultivalue(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}
	return []interface{}{v}
}

// multivalueResult collapses an empty list to null and a single value to
// a scalar
func multivalueResult(values []interface{}) interface{} {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	}
	return values
}
