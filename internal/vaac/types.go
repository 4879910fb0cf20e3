package vaac

// Filter operands understood by the analytics query endpoint. Only equality
// and the range operands used for incremental windows are needed here.
const (
	OperandEqual          = 0
	OperandGreaterOrEqual = 5
	OperandLessOrEqual    = 6
)

// FieldRef names one dimension or measurement in a query.
type FieldRef struct {
	DataModelName string `json:"DataModelName"`
}

// Filter is one server-side predicate over a data model field.
type Filter struct {
	DataModelName string `json:"DataModelName"`
	Value         string `json:"Value"`
	Operand       int    `json:"Operand"`
}

// QueryRequest is the payload compressed and encoded into the query string.
// Field names and casing follow the wire format exactly.
type QueryRequest struct {
	Filters              []Filter          `json:"Filters"`
	Dimensions           []FieldRef        `json:"Dimensions"`
	Measurements         []FieldRef        `json:"Measurements"`
	Parameters           map[string]string `json:"Parameters"`
	LimitResultRowsCount int               `json:"LimitResultRowsCount"`
}

// QueryResponse is the analytics endpoint's reply: one ordered value array
// per call event, positionally aligned to the requested dimensions and
// measurements.
type QueryResponse struct {
	DataResult [][]any `json:"dataResult"`
}
