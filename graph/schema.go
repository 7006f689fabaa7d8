package graph

// StateSchema defines how node results are merged into the state.
type StateSchema[S any] interface {
	// Init returns the initial state the input is merged into.
	Init() S

	// Update merges update into current.
	Update(current, update S) (S, error)
}

// StructSchema is a StateSchema backed by plain functions.
type StructSchema[S any] struct {
	InitialValue S
	MergeFunc    func(current, update S) (S, error)
}

// NewStructSchema creates a schema. A nil merge replaces the state.
func NewStructSchema[S any](initial S, merge func(current, update S) (S, error)) *StructSchema[S] {
	return &StructSchema[S]{InitialValue: initial, MergeFunc: merge}
}

// Init returns the initial value.
func (s *StructSchema[S]) Init() S {
	return s.InitialValue
}

// Update merges update into current.
func (s *StructSchema[S]) Update(current, update S) (S, error) {
	if s.MergeFunc == nil {
		return update, nil
	}
	return s.MergeFunc(current, update)
}

// AppendReducer concatenates slices without aliasing the current one.
func AppendReducer[T any](current, update []T) []T {
	if len(update) == 0 {
		return current
	}
	out := make([]T, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}
