package compiler

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// postgresCastName and sqliteCastName map a FieldType to its dialect-specific
// cast/column type name (§3 FieldType table). These tables, plus the function
// and aggregation registries below, are the only process-wide state the
// compiler touches; they are built once at package init and never written to
// afterward (§5).
var postgresCastName = map[FieldType]string{
	FieldTypeString:   "TEXT",
	FieldTypeNumber:   "FLOAT",
	FieldTypeBoolean:  "BOOLEAN",
	FieldTypeObject:   "JSONB",
	FieldTypeDate:     "DATE",
	FieldTypeDatetime: "TIMESTAMP",
	FieldTypeUUID:     "UUID",
}

var sqliteCastName = map[FieldType]string{
	FieldTypeString:   "TEXT",
	FieldTypeNumber:   "REAL",
	FieldTypeBoolean:  "INTEGER",
	FieldTypeObject:   "TEXT",
	FieldTypeDate:     "TEXT",
	FieldTypeDatetime: "TEXT",
	FieldTypeUUID:     "TEXT",
}

// castName returns the dialect's SQL type name for a FieldType.
func castName(dialect Dialect, t FieldType) string {
	if dialect == DialectSQLiteMinimal {
		return sqliteCastName[t]
	}
	return postgresCastName[t]
}

// emitCast wraps expr in the dialect's cast syntax.
func emitCast(dialect Dialect, expr string, t FieldType) string {
	name := castName(dialect, t)
	if dialect == DialectSQLiteMinimal {
		return fmt.Sprintf("CAST(%s AS %s)", expr, name)
	}
	return fmt.Sprintf("(%s)::%s", expr, name)
}

// FunctionEntry is one closed-registry function definition (§4.4 "Function
// registry"). ToSQL, when non-nil, overrides the default `NAME(a1, a2, …)`
// emission for a specific dialect.
type FunctionEntry struct {
	Name          string
	ArgTypes      []ExpressionType
	Variadic      bool
	ReturnType    ExpressionType
	UnsupportedIn map[Dialect]bool
	ToSQL         func(dialect Dialect, args []string) string
	// JSEval mirrors the function's SQL semantics for the partial evaluator
	// (§4.11); nil means the function cannot be folded (none in this
	// registry are JSEval-less, but the hook stays optional for symmetry
	// with ToSQL).
	JSEval func(args []AnyScalar) (AnyScalar, error)
}

func (f *FunctionEntry) supportsDialect(d Dialect) bool {
	return !f.UnsupportedIn[d]
}

var functionRegistry = buildFunctionRegistry()

func lookupFunction(name string) (*FunctionEntry, bool) {
	f, ok := functionRegistry[name]
	return f, ok
}

func buildFunctionRegistry() map[string]*FunctionEntry {
	reg := make(map[string]*FunctionEntry)
	add := func(e *FunctionEntry) { reg[e.Name] = e }

	any1 := []ExpressionType{ExpressionTypeAny}
	num1 := []ExpressionType{ExpressionType(FieldTypeNumber)}
	num2 := []ExpressionType{ExpressionType(FieldTypeNumber), ExpressionType(FieldTypeNumber)}
	bool1 := []ExpressionType{ExpressionType(FieldTypeBoolean)}
	bool2 := []ExpressionType{ExpressionType(FieldTypeBoolean), ExpressionType(FieldTypeBoolean)}
	str1 := []ExpressionType{ExpressionType(FieldTypeString)}

	// Logical
	add(&FunctionEntry{Name: "AND", ArgTypes: bool2, Variadic: true, ReturnType: ExpressionType(FieldTypeBoolean),
		JSEval: jsLogical(func(a, b bool) bool { return a && b }, false)})
	add(&FunctionEntry{Name: "OR", ArgTypes: bool2, Variadic: true, ReturnType: ExpressionType(FieldTypeBoolean),
		JSEval: jsLogical(func(a, b bool) bool { return a || b }, true)})
	add(&FunctionEntry{Name: "NOT", ArgTypes: bool1, ReturnType: ExpressionType(FieldTypeBoolean),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarBoolean, Bool: !args[0].Bool}, nil
		}})

	// Arithmetic
	add(&FunctionEntry{Name: "ADD", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber), JSEval: jsArith(func(a, b float64) float64 { return a + b })})
	add(&FunctionEntry{Name: "SUBTRACT", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber), JSEval: jsArith(func(a, b float64) float64 { return a - b })})
	add(&FunctionEntry{Name: "MULTIPLY", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber), JSEval: jsArith(func(a, b float64) float64 { return a * b })})
	add(&FunctionEntry{Name: "DIVIDE", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber), JSEval: func(args []AnyScalar) (AnyScalar, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		if args[1].Num == 0 {
			return AnyScalar{}, ErrDivisionByZero
		}
		return AnyScalar{Kind: ScalarNumber, Num: args[0].Num / args[1].Num}, nil
	}})
	add(&FunctionEntry{Name: "MOD", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber), JSEval: jsArith(func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return float64(int64(a) % int64(b))
	})})
	add(&FunctionEntry{Name: "POW", ArgTypes: num2, ReturnType: ExpressionType(FieldTypeNumber),
		UnsupportedIn: map[Dialect]bool{DialectSQLiteMinimal: true}, JSEval: jsArith(math.Pow)})
	add(&FunctionEntry{Name: "ABS", ArgTypes: num1, ReturnType: ExpressionType(FieldTypeNumber),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarNumber, Num: math.Abs(args[0].Num)}, nil
		}})
	add(&FunctionEntry{Name: "SQRT", ArgTypes: num1, ReturnType: ExpressionType(FieldTypeNumber),
		UnsupportedIn: map[Dialect]bool{DialectSQLiteMinimal: true},
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			if args[0].Num < 0 {
				return AnyScalar{}, ErrSqrtOfNegative
			}
			return AnyScalar{Kind: ScalarNumber, Num: math.Sqrt(args[0].Num)}, nil
		}})
	add(&FunctionEntry{Name: "CEIL", ArgTypes: num1, ReturnType: ExpressionType(FieldTypeNumber),
		UnsupportedIn: map[Dialect]bool{DialectSQLiteMinimal: true},
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarNumber, Num: math.Ceil(args[0].Num)}, nil
		}})
	add(&FunctionEntry{Name: "FLOOR", ArgTypes: num1, ReturnType: ExpressionType(FieldTypeNumber),
		UnsupportedIn: map[Dialect]bool{DialectSQLiteMinimal: true},
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarNumber, Num: math.Floor(args[0].Num)}, nil
		}})

	// String
	add(&FunctionEntry{Name: "UPPER", ArgTypes: str1, ReturnType: ExpressionType(FieldTypeString),
		JSEval: jsStringUnary(strings.ToUpper)})
	add(&FunctionEntry{Name: "LOWER", ArgTypes: str1, ReturnType: ExpressionType(FieldTypeString),
		JSEval: jsStringUnary(strings.ToLower)})
	add(&FunctionEntry{Name: "LENGTH", ArgTypes: str1, ReturnType: ExpressionType(FieldTypeNumber),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarNumber, Num: float64(len([]rune(args[0].Str)))}, nil
		}})
	add(&FunctionEntry{Name: "CONCAT", ArgTypes: str1, Variadic: true, ReturnType: ExpressionType(FieldTypeString),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			var sb strings.Builder
			for _, a := range args {
				if a.IsNull() {
					return AnyScalar{Kind: ScalarNull}, nil
				}
				sb.WriteString(a.Str)
			}
			return AnyScalar{Kind: ScalarString, Str: sb.String()}, nil
		}})
	add(&FunctionEntry{Name: "SUBSTR", ArgTypes: []ExpressionType{ExpressionType(FieldTypeString), ExpressionType(FieldTypeNumber), ExpressionType(FieldTypeNumber)}, ReturnType: ExpressionType(FieldTypeString),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() || args[1].IsNull() || args[2].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			runes := []rune(args[0].Str)
			start := int(args[1].Num) - 1 // 1-based
			length := int(args[2].Num)
			if start < 0 {
				start = 0
			}
			if start > len(runes) {
				start = len(runes)
			}
			end := start + length
			if end > len(runes) || length < 0 {
				end = len(runes)
			}
			if end < start {
				end = start
			}
			return AnyScalar{Kind: ScalarString, Str: string(runes[start:end])}, nil
		}})
	add(&FunctionEntry{Name: "REPLACE", ArgTypes: []ExpressionType{ExpressionType(FieldTypeString), ExpressionType(FieldTypeString), ExpressionType(FieldTypeString)}, ReturnType: ExpressionType(FieldTypeString),
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			if args[0].IsNull() || args[1].IsNull() || args[2].IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
			return AnyScalar{Kind: ScalarString, Str: strings.ReplaceAll(args[0].Str, args[1].Str, args[2].Str)}, nil
		}})

	// Datetime
	add(&FunctionEntry{Name: "NOW", ReturnType: ExpressionType(FieldTypeDatetime),
		ToSQL: func(dialect Dialect, args []string) string {
			if dialect == DialectSQLiteMinimal {
				return "DATETIME('now','subsec')"
			}
			return "NOW()"
		},
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			return AnyScalar{Kind: ScalarTimestamp, Str: time.Now().UTC().Format("2006-01-02T15:04:05.000000")}, nil
		}})
	add(&FunctionEntry{Name: "CURRENT_DATE", ReturnType: ExpressionType(FieldTypeDate),
		ToSQL: func(dialect Dialect, args []string) string {
			if dialect == DialectSQLiteMinimal {
				return "DATE()"
			}
			return "CURRENT_DATE"
		},
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			return AnyScalar{Kind: ScalarDate, Str: time.Now().UTC().Format("2006-01-02")}, nil
		}})
	for _, part := range []string{"YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "EPOCH"} {
		part := part
		name := "EXTRACT_" + part
		add(&FunctionEntry{Name: name, ArgTypes: []ExpressionType{ExpressionType(FieldTypeDatetime)}, ReturnType: ExpressionType(FieldTypeNumber),
			ToSQL: func(dialect Dialect, args []string) string {
				if dialect == DialectSQLiteMinimal {
					return fmt.Sprintf("CAST(STRFTIME(%s, %s) AS INTEGER)", sqliteStrftimeFormat(part), args[0])
				}
				return fmt.Sprintf("EXTRACT(%s FROM %s)", part, args[0])
			},
			JSEval: jsExtractPart(part)})
	}

	// UUID
	add(&FunctionEntry{Name: "GEN_RANDOM_UUID", ReturnType: ExpressionType(FieldTypeUUID),
		UnsupportedIn: map[Dialect]bool{DialectSQLiteMinimal: true},
		ToSQL:         func(dialect Dialect, args []string) string { return "GEN_RANDOM_UUID()" },
		JSEval: func(args []AnyScalar) (AnyScalar, error) {
			return AnyScalar{Kind: ScalarUUID, Str: uuid.New().String()}, nil
		}})

	// Conditional, variadic comparison/coalesce families.
	add(&FunctionEntry{Name: "GREATEST_STRING", ArgTypes: str1, Variadic: true, ReturnType: ExpressionType(FieldTypeString),
		ToSQL: renameUnderSQLite("GREATEST", "MAX"), JSEval: jsPickString(func(a, b string) bool { return a > b })})
	add(&FunctionEntry{Name: "GREATEST_NUMBER", ArgTypes: num1, Variadic: true, ReturnType: ExpressionType(FieldTypeNumber),
		ToSQL: renameUnderSQLite("GREATEST", "MAX"), JSEval: jsPickNumber(func(a, b float64) bool { return a > b })})
	add(&FunctionEntry{Name: "LEAST_STRING", ArgTypes: str1, Variadic: true, ReturnType: ExpressionType(FieldTypeString),
		ToSQL: renameUnderSQLite("LEAST", "MIN"), JSEval: jsPickString(func(a, b string) bool { return a < b })})
	add(&FunctionEntry{Name: "LEAST_NUMBER", ArgTypes: num1, Variadic: true, ReturnType: ExpressionType(FieldTypeNumber),
		ToSQL: renameUnderSQLite("LEAST", "MIN"), JSEval: jsPickNumber(func(a, b float64) bool { return a < b })})
	add(&FunctionEntry{Name: "COALESCE_STRING", ArgTypes: str1, Variadic: true, ReturnType: ExpressionType(FieldTypeString),
		ToSQL: renameUnderSQLite("COALESCE", "COALESCE"), JSEval: jsCoalesce})
	add(&FunctionEntry{Name: "COALESCE_NUMBER", ArgTypes: num1, Variadic: true, ReturnType: ExpressionType(FieldTypeNumber),
		ToSQL: renameUnderSQLite("COALESCE", "COALESCE"), JSEval: jsCoalesce})
	add(&FunctionEntry{Name: "COALESCE_BOOLEAN", ArgTypes: bool1, Variadic: true, ReturnType: ExpressionType(FieldTypeBoolean),
		ToSQL: renameUnderSQLite("COALESCE", "COALESCE"), JSEval: jsCoalesce})

	_ = any1
	return reg
}

func renameUnderSQLite(pgName, sqliteName string) func(Dialect, []string) string {
	return func(dialect Dialect, args []string) string {
		name := pgName
		if dialect == DialectSQLiteMinimal {
			name = sqliteName
		}
		return name + "(" + joinArgs(args) + ")"
	}
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += stripRedundantParens(a)
	}
	return out
}

// stripRedundantParens removes one layer of fully-enclosing parentheses from
// an already-compiled arg fragment, so NAME((a + b)) renders as NAME(a + b)
// rather than doubling up on the CASE/logical emitter's own wrapping.
func stripRedundantParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return s[1 : len(s)-1]
}

func sqliteStrftimeFormat(part string) string {
	switch part {
	case "YEAR":
		return "'%Y'"
	case "MONTH":
		return "'%m'"
	case "DAY":
		return "'%d'"
	case "HOUR":
		return "'%H'"
	case "MINUTE":
		return "'%M'"
	case "EPOCH":
		return "'%s'"
	}
	return "'%Y'"
}

// AggregationEntry is one closed-registry aggregation operator (§4.10
// "Aggregation registry").
type AggregationEntry struct {
	Op           AggregationOp
	ArgType      ExpressionType
	AllowStar    bool
	UnsupportedIn map[Dialect]bool
	Emit         func(dialect Dialect, expr string, separator *string) string
}

var aggregationRegistry = buildAggregationRegistry()

func lookupAggregation(op AggregationOp) (*AggregationEntry, bool) {
	e, ok := aggregationRegistry[op]
	return e, ok
}

func buildAggregationRegistry() map[AggregationOp]*AggregationEntry {
	reg := make(map[AggregationOp]*AggregationEntry)
	numType := ExpressionType(FieldTypeNumber)
	textType := ExpressionType(FieldTypeString)

	reg[AggCount] = &AggregationEntry{Op: AggCount, ArgType: ExpressionTypeAny, AllowStar: true,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("COUNT(%s)", expr) }}
	reg[AggSum] = &AggregationEntry{Op: AggSum, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("SUM(%s)", expr) }}
	reg[AggAvg] = &AggregationEntry{Op: AggAvg, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("AVG(%s)", expr) }}
	reg[AggMin] = &AggregationEntry{Op: AggMin, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("MIN(%s)", expr) }}
	reg[AggMax] = &AggregationEntry{Op: AggMax, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("MAX(%s)", expr) }}
	reg[AggCountDistinct] = &AggregationEntry{Op: AggCountDistinct, ArgType: ExpressionTypeAny,
		Emit: func(d Dialect, expr string, sep *string) string { return fmt.Sprintf("COUNT(DISTINCT %s)", expr) }}
	reg[AggStringAgg] = &AggregationEntry{Op: AggStringAgg, ArgType: textType,
		Emit: func(d Dialect, expr string, sep *string) string {
			separator := "','"
			if sep != nil {
				separator = "'" + quoteEscape(*sep) + "'"
			}
			return fmt.Sprintf("STRING_AGG(%s, %s)", expr, separator)
		}}
	reg[AggStddev] = &AggregationEntry{Op: AggStddev, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string {
			if d == DialectSQLiteMinimal {
				return sqliteStddevExpr(expr)
			}
			return fmt.Sprintf("STDDEV(%s)", expr)
		}}
	reg[AggVariance] = &AggregationEntry{Op: AggVariance, ArgType: numType,
		Emit: func(d Dialect, expr string, sep *string) string {
			if d == DialectSQLiteMinimal {
				return sqliteVarianceExpr(expr)
			}
			return fmt.Sprintf("VARIANCE(%s)", expr)
		}}
	return reg
}

// sqliteVarianceExpr expands VARIANCE as a closed-form population variance
// since SQLite-minimal has no native aggregate for it.
func sqliteVarianceExpr(expr string) string {
	return fmt.Sprintf(
		"(AVG(%s * %s) - AVG(%s) * AVG(%s))",
		expr, expr, expr, expr,
	)
}

// sqliteStddevExpr expands STDDEV in terms of the same closed-form variance.
func sqliteStddevExpr(expr string) string {
	return fmt.Sprintf("SQRT(%s)", sqliteVarianceExpr(expr))
}

func jsArith(f func(a, b float64) float64) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		if args[0].IsNull() || args[1].IsNull() {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		return AnyScalar{Kind: ScalarNumber, Num: f(args[0].Num, args[1].Num)}, nil
	}
}

func jsStringUnary(f func(string) string) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		if args[0].IsNull() {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		return AnyScalar{Kind: ScalarString, Str: f(args[0].Str)}, nil
	}
}

// jsExtractPart mirrors the SQL EXTRACT_* family: parse the timestamp/date
// scalar and pull out the named component.
func jsExtractPart(part string) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		if args[0].IsNull() {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		t, err := parseDatetimeScalar(args[0])
		if err != nil {
			return AnyScalar{}, err
		}
		var n float64
		switch part {
		case "YEAR":
			n = float64(t.Year())
		case "MONTH":
			n = float64(t.Month())
		case "DAY":
			n = float64(t.Day())
		case "HOUR":
			n = float64(t.Hour())
		case "MINUTE":
			n = float64(t.Minute())
		case "EPOCH":
			n = float64(t.Unix())
		}
		return AnyScalar{Kind: ScalarNumber, Num: n}, nil
	}
}

func parseDatetimeScalar(s AnyScalar) (time.Time, error) {
	if s.Kind == ScalarDate {
		return time.Parse("2006-01-02", s.Str)
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, s.Str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, newErr(ErrInvalidScalarTimestamp, "cannot parse %q as a timestamp", s.Str)
}

// jsPickString folds GREATEST_STRING/LEAST_STRING: betterThan reports whether
// candidate a should replace the current best b. Nulls are ignored unless
// every argument is null.
func jsPickString(betterThan func(a, b string) bool) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		var best AnyScalar
		found := false
		for _, a := range args {
			if a.IsNull() {
				continue
			}
			if !found || betterThan(a.Str, best.Str) {
				best = a
				found = true
			}
		}
		if !found {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		return best, nil
	}
}

func jsPickNumber(betterThan func(a, b float64) bool) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		var best AnyScalar
		found := false
		for _, a := range args {
			if a.IsNull() {
				continue
			}
			if !found || betterThan(a.Num, best.Num) {
				best = a
				found = true
			}
		}
		if !found {
			return AnyScalar{Kind: ScalarNull}, nil
		}
		return best, nil
	}
}

// jsCoalesce returns the first non-null argument, or null if all are null;
// shared by COALESCE_STRING/_NUMBER/_BOOLEAN since the logic is type-agnostic.
func jsCoalesce(args []AnyScalar) (AnyScalar, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return AnyScalar{Kind: ScalarNull}, nil
}

func jsLogical(f func(a, b bool) bool, shortCircuitOn bool) func([]AnyScalar) (AnyScalar, error) {
	return func(args []AnyScalar) (AnyScalar, error) {
		for _, a := range args {
			if !a.IsNull() && a.Bool == shortCircuitOn {
				return AnyScalar{Kind: ScalarBoolean, Bool: shortCircuitOn}, nil
			}
		}
		for _, a := range args {
			if a.IsNull() {
				return AnyScalar{Kind: ScalarNull}, nil
			}
		}
		result := !shortCircuitOn
		for _, a := range args {
			result = f(result, a.Bool)
		}
		return AnyScalar{Kind: ScalarBoolean, Bool: result}, nil
	}
}
