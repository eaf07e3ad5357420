package models

// Status is the singleton snapshot of the last completion call.
type Status struct {
	ActiveModel    *string `json:"activeModel"`
	ActiveAgent    string  `json:"activeAgent"`
	LastResponseMs *int64  `json:"lastResponseMs"`
	LastError      *string `json:"lastError"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 { return &i }
