package linalg

import (
	"errors"
	"fmt"
)

// Ошибки линейной алгебры и геометрии.
var (
	ErrSingular          = errors.New("singular matrix")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrDegenerate        = errors.New("degenerate geometry")
)

// LinearAlgebraError ошибка матричной операции.
type LinearAlgebraError struct {
	Op   string // Операция: "Mul", "Inverse", "LU", ...
	Rows int    // Размер левого операнда.
	Cols int
	Err  error // ErrSingular или ErrDimensionMismatch.
}

func (e *LinearAlgebraError) Error() string {
	return fmt.Sprintf("linalg: %s on %dx%d: %v", e.Op, e.Rows, e.Cols, e.Err)
}

func (e *LinearAlgebraError) Unwrap() error {
	return e.Err
}

func dimError(op string, m *Matrix, format string, args ...any) error {
	return &LinearAlgebraError{
		Op:   op,
		Rows: m.rows,
		Cols: m.cols,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrDimensionMismatch}, args...)...),
	}
}

func singularError(op string, m *Matrix) error {
	return &LinearAlgebraError{Op: op, Rows: m.rows, Cols: m.cols, Err: ErrSingular}
}

// DomainError вырожденные геометрические входные данные:
// нулевой вектор, совпадающие точки, центр Земли.
type DomainError struct {
	Op     string
	Detail string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrDegenerate, e.Detail)
}

func (e *DomainError) Unwrap() error {
	return ErrDegenerate
}
