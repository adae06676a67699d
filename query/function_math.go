package query

import (
	"math"
	"math/rand/v2"
)

// Math Functions

// unaryMath is the shape shared by the one-argument numeric functions.
// null in gives null out.
func unaryMath(name string, args []interface{}, fn func(float64) (float64, bool)) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	n, err := argNumber(name, args, 0)
	if err != nil {
		return nil, err
	}
	v, ok := fn(n)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// AbsFunc returns the absolute value
type AbsFunc struct{}

func (f *AbsFunc) Name() string  { return "abs" }
func (f *AbsFunc) MinArity() int { return 1 }
func (f *AbsFunc) MaxArity() int { return 1 }
func (f *AbsFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath("abs", args, func(x float64) (float64, bool) { return math.Abs(x), true })
}

// CeilFunc rounds up to the next integer
type CeilFunc struct {
	name string
}

func (f *CeilFunc) Name() string  { return f.name }
func (f *CeilFunc) MinArity() int { return 1 }
func (f *CeilFunc) MaxArity() int { return 1 }
func (f *CeilFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath(f.name, args, func(x float64) (float64, bool) { return math.Ceil(x), true })
}

// FloorFunc rounds down to the previous integer
type FloorFunc struct{}

func (f *FloorFunc) Name() string  { return "floor" }
func (f *FloorFunc) MinArity() int { return 1 }
func (f *FloorFunc) MaxArity() int { return 1 }
func (f *FloorFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath("floor", args, func(x float64) (float64, bool) { return math.Floor(x), true })
}

// RoundFunc rounds half away from zero: round(X [, digits])
type RoundFunc struct{}

func (f *RoundFunc) Name() string  { return "round" }
func (f *RoundFunc) MinArity() int { return 1 }
func (f *RoundFunc) MaxArity() int { return 2 }
func (f *RoundFunc) Evaluate(args []interface{}) (interface{}, error) {
	digits := 0
	if len(args) == 2 {
		d, err := argInt("round", args, 1)
		if err != nil {
			return nil, err
		}
		digits = d
	}
	return unaryMath("round", args, func(x float64) (float64, bool) {
		return roundTo(x, digits), true
	})
}

// roundTo rounds x to the given number of decimal places
func roundTo(x float64, digits int) float64 {
	if digits <= 0 {
		return math.Round(x)
	}
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}

// SqrtFunc returns the square root; negative input gives null
type SqrtFunc struct{}

func (f *SqrtFunc) Name() string  { return "sqrt" }
func (f *SqrtFunc) MinArity() int { return 1 }
func (f *SqrtFunc) MaxArity() int { return 1 }
func (f *SqrtFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath("sqrt", args, func(x float64) (float64, bool) {
		if x < 0 {
			return 0, false
		}
		return math.Sqrt(x), true
	})
}

// PowFunc raises X to the power Y
type PowFunc struct{}

func (f *PowFunc) Name() string  { return "pow" }
func (f *PowFunc) MinArity() int { return 2 }
func (f *PowFunc) MaxArity() int { return 2 }
func (f *PowFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	x, err := argNumber("pow", args, 0)
	if err != nil {
		return nil, err
	}
	y, err := argNumber("pow", args, 1)
	if err != nil {
		return nil, err
	}
	r := math.Pow(x, y)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, nil
	}
	return r, nil
}

// ExpFunc returns e raised to X
type ExpFunc struct{}

func (f *ExpFunc) Name() string  { return "exp" }
func (f *ExpFunc) MinArity() int { return 1 }
func (f *ExpFunc) MaxArity() int { return 1 }
func (f *ExpFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath("exp", args, func(x float64) (float64, bool) {
		r := math.Exp(x)
		return r, !math.IsInf(r, 0)
	})
}

// LnFunc returns the natural logarithm
type LnFunc struct{}

func (f *LnFunc) Name() string  { return "ln" }
func (f *LnFunc) MinArity() int { return 1 }
func (f *LnFunc) MaxArity() int { return 1 }
func (f *LnFunc) Evaluate(args []interface{}) (interface{}, error) {
	return unaryMath("ln", args, func(x float64) (float64, bool) {
		if x <= 0 {
			return 0, false
		}
		return math.Log(x), true
	})
}

// LogFunc returns the logarithm of X: log(X [, base]), base 10 by default
type LogFunc struct{}

func (f *LogFunc) Name() string  { return "log" }
func (f *LogFunc) MinArity() int { return 1 }
func (f *LogFunc) MaxArity() int { return 2 }
func (f *LogFunc) Evaluate(args []interface{}) (interface{}, error) {
	base := 10.0
	if len(args) == 2 {
		b, err := argNumber("log", args, 1)
		if err != nil {
			return nil, err
		}
		base = b
	}
	if base <= 0 || base == 1 {
		return nil, NewInvalidArgumentError("log", "log base must be positive and not 1")
	}
	return unaryMath("log", args, func(x float64) (float64, bool) {
		if x <= 0 {
			return 0, false
		}
		return math.Log(x) / math.Log(base), true
	})
}

// PiFunc returns the constant pi
type PiFunc struct{}

func (f *PiFunc) Name() string  { return "pi" }
func (f *PiFunc) MinArity() int { return 0 }
func (f *PiFunc) MaxArity() int { return 0 }
func (f *PiFunc) Evaluate(args []interface{}) (interface{}, error) {
	return math.Pi, nil
}

// RandomFunc returns a pseudo-random integer in [0, 2^31)
type RandomFunc struct{}

func (f *RandomFunc) Name() string  { return "random" }
func (f *RandomFunc) MinArity() int { return 0 }
func (f *RandomFunc) MaxArity() int { return 0 }
func (f *RandomFunc) Evaluate(args []interface{}) (interface{}, error) {
	return int64(rand.Int32()), nil
}

// MinFunc returns the smallest argument. Numbers compare numerically and
// sort before strings; nulls are ignored.
type MinFunc struct{}

func (f *MinFunc) Name() string  { return "min" }
func (f *MinFunc) MinArity() int { return 1 }
func (f *MinFunc) MaxArity() int { return -1 }
func (f *MinFunc) Evaluate(args []interface{}) (interface{}, error) {
	return extreme(args, -1), nil
}

// MaxFunc returns the largest argument
type MaxFunc struct{}

func (f *MaxFunc) Name() string  { return "max" }
func (f *MaxFunc) MinArity() int { return 1 }
func (f *MaxFunc) MaxArity() int { return -1 }
func (f *MaxFunc) Evaluate(args []interface{}) (interface{}, error) {
	return extreme(args, 1), nil
}

// extreme returns the minimum (sign -1) or maximum (sign 1) of the
// values, flattening multivalues
func extreme(args []interface{}, sign int) interface{} {
	var best interface{}
	for _, arg := range args {
		for _, v := range toMultivalue(arg) {
			if v == nil {
				continue
			}
			if best == nil || compareValues(v, best)*sign > 0 {
				best = v
			}
		}
	}
	return best
}

// ExactFunc returns its argument unchanged; arithmetic is already float64
type ExactFunc struct{}

func (f *ExactFunc) Name() string  { return "exact" }
func (f *ExactFunc) MinArity() int { return 1 }
func (f *ExactFunc) MaxArity() int { return 1 }
func (f *ExactFunc) Evaluate(args []interface{}) (interface{}, error) {
	return args[0], nil
}
