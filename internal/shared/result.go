package shared

// Result is the uniform answer of every mutating operation.
type Result[T any] struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *T     `json:"data,omitempty"`
}

// ResultOf folds a (value, error) pair into a Result.
func ResultOf[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{Success: false, Error: UserSafeMessage(err)}
	}
	return Result[T]{Success: true, Data: &data}
}
