package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents an eval function
type Function interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// MinArity returns the minimum number of arguments
	MinArity() int
	// MaxArity returns the maximum number of arguments (-1 for unlimited)
	MaxArity() int
	// Evaluate evaluates the function with the given arguments
	Evaluate(args []interface{}) (interface{}, error)
}

// FunctionRegistry manages function lookup and registration
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry creates a new function registry
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register registers a function
func (r *FunctionRegistry) Register(f Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[strings.ToLower(f.Name())] = f
}

// Get retrieves a function by name (case-insensitive)
func (r *FunctionRegistry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.functions[strings.ToLower(name)]
	return f, exists
}

// Names returns every callable function name, sorted. It includes the
// functions the evaluator implements itself.
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions)+len(evaluatorFunctions))
	names = append(names, evaluatorFunctions...)
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// evaluatorFunctions need the execution context and are not registered
var evaluatorFunctions = []string{"mvfilter", "now"}

// globalRegistry is the default function registry
var globalRegistry *FunctionRegistry

func init() {
	globalRegistry = NewFunctionRegistry()

	// String functions
	globalRegistry.Register(&LenFunc{})
	globalRegistry.Register(&LowerFunc{})
	globalRegistry.Register(&UpperFunc{})
	globalRegistry.Register(&SubstrFunc{})
	globalRegistry.Register(&TrimFunc{name: "trim"})
	globalRegistry.Register(&TrimFunc{name: "ltrim"})
	globalRegistry.Register(&TrimFunc{name: "rtrim"})
	globalRegistry.Register(&ReplaceFunc{})
	globalRegistry.Register(&SplitFunc{})
	globalRegistry.Register(&URLDecodeFunc{})
	globalRegistry.Register(&PrintfFunc{})
	globalRegistry.Register(&MatchFunc{})
	globalRegistry.Register(&LikeFunc{})

	// Math functions
	globalRegistry.Register(&AbsFunc{})
	globalRegistry.Register(&CeilFunc{name: "ceil"})
	globalRegistry.Register(&CeilFunc{name: "ceiling"})
	globalRegistry.Register(&FloorFunc{})
	globalRegistry.Register(&RoundFunc{})
	globalRegistry.Register(&SqrtFunc{})
	globalRegistry.Register(&PowFunc{})
	globalRegistry.Register(&ExpFunc{})
	globalRegistry.Register(&LnFunc{})
	globalRegistry.Register(&LogFunc{})
	globalRegistry.Register(&PiFunc{})
	globalRegistry.Register(&RandomFunc{})
	globalRegistry.Register(&MinFunc{})
	globalRegistry.Register(&MaxFunc{})
	globalRegistry.Register(&ExactFunc{})

	// Conversion and conditional functions
	globalRegistry.Register(&ToStringFunc{})
	globalRegistry.Register(&ToNumberFunc{})
	globalRegistry.Register(&IfFunc{})
	globalRegistry.Register(&CaseFunc{})
	globalRegistry.Register(&ValidateFunc{})
	globalRegistry.Register(&CoalesceFunc{})
	globalRegistry.Register(&NullIfFunc{})
	globalRegistry.Register(&NullFunc{})
	globalRegistry.Register(&IsNullFunc{negate: false})
	globalRegistry.Register(&IsNullFunc{negate: true})
	globalRegistry.Register(&BoolFunc{value: true})
	globalRegistry.Register(&BoolFunc{value: false})
	globalRegistry.Register(&TypeCheckFunc{name: "isnum"})
	globalRegistry.Register(&TypeCheckFunc{name: "isint"})
	globalRegistry.Register(&TypeCheckFunc{name: "isstr"})
	globalRegistry.Register(&TypeCheckFunc{name: "isbool"})
	globalRegistry.Register(&TypeOfFunc{})

	// Date/time functions
	globalRegistry.Register(&TimeFunc{})
	globalRegistry.Register(&StrftimeFunc{})
	globalRegistry.Register(&StrptimeFunc{})
	globalRegistry.Register(&RelativeTimeFunc{})

	// Multivalue functions
	globalRegistry.Register(&MvCountFunc{})
	globalRegistry.Register(&MvIndexFunc{})
	globalRegistry.Register(&MvAppendFunc{})
	globalRegistry.Register(&MvDedupFunc{})
	globalRegistry.Register(&MvSortFunc{})
	globalRegistry.Register(&MvJoinFunc{})
	globalRegistry.Register(&MvFindFunc{})
	globalRegistry.Register(&MvRangeFunc{})
	globalRegistry.Register(&MvZipFunc{})

	// JSON functions
	globalRegistry.Register(&JSONExtractFunc{})
	globalRegistry.Register(&SpathFunc{})

	// Hash and network functions
	globalRegistry.Register(&HashFunc{name: "md5"})
	globalRegistry.Register(&HashFunc{name: "sha1"})
	globalRegistry.Register(&HashFunc{name: "sha256"})
	globalRegistry.Register(&HashFunc{name: "sha512"})
	globalRegistry.Register(&CIDRMatchFunc{})
}

// GetGlobalRegistry returns the global function registry
func GetGlobalRegistry() *FunctionRegistry {
	return globalRegistry
}

// argNumber converts argument i to a number
func argNumber(fn string, args []interface{}, i int) (float64, error) {
	n, ok := toFloat64(args[i])
	if !ok {
		return 0, NewTypeError(fmt.Sprintf("%s: argument %d must be a number, got %q", fn, i+1, valueToString(args[i])))
	}
	return n, nil
}

// argInt converts argument i to an integer
func argInt(fn string, args []interface{}, i int) (int, error) {
	n, err := argNumber(fn, args, i)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
