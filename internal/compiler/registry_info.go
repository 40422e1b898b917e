package compiler

import "sort"

// FunctionInfo is a read-only projection of one FunctionEntry, for callers
// (e.g. a CLI introspection command) that want to list the registry without
// reaching into package-private state.
type FunctionInfo struct {
	Name          string
	ArgTypes      []ExpressionType
	Variadic      bool
	ReturnType    ExpressionType
	UnsupportedIn []Dialect
}

// AggregationInfo is the AggregationEntry analogue of FunctionInfo.
type AggregationInfo struct {
	Operator      AggregationOp
	ArgType       ExpressionType
	AllowStar     bool
	UnsupportedIn []Dialect
}

// ListFunctions returns every registered function, sorted by name.
func ListFunctions() []FunctionInfo {
	out := make([]FunctionInfo, 0, len(functionRegistry))
	for _, e := range functionRegistry {
		out = append(out, FunctionInfo{
			Name:          e.Name,
			ArgTypes:      e.ArgTypes,
			Variadic:      e.Variadic,
			ReturnType:    e.ReturnType,
			UnsupportedIn: dialectKeys(e.UnsupportedIn),
		})
	}
	sortFunctionInfo(out)
	return out
}

// ListAggregations returns every registered aggregation operator, sorted by
// name.
func ListAggregations() []AggregationInfo {
	out := make([]AggregationInfo, 0, len(aggregationRegistry))
	for _, e := range aggregationRegistry {
		out = append(out, AggregationInfo{
			Operator:      e.Op,
			ArgType:       e.ArgType,
			AllowStar:     e.AllowStar,
			UnsupportedIn: dialectKeys(e.UnsupportedIn),
		})
	}
	sortAggregationInfo(out)
	return out
}

func dialectKeys(m map[Dialect]bool) []Dialect {
	out := make([]Dialect, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	return out
}

func sortFunctionInfo(infos []FunctionInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}

func sortAggregationInfo(infos []AggregationInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Operator < infos[j].Operator })
}
