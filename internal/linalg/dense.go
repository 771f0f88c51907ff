package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// ToDense копирует матрицу в *mat.Dense.
// Пустая матрица даёт нулевое значение mat.Dense.
func (m *Matrix) ToDense() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(m.rows, m.cols, m.RawData())
}

// FromDense копирует любую mat.Matrix.
func FromDense(a mat.Matrix) *Matrix {
	r, c := a.Dims()
	m := Zeros(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.data[i*c+j] = a.At(i, j)
		}
	}
	return m
}

// Cond число обусловленности в 1-норме.
// Для вырожденной матрицы возвращает +Inf.
func (m *Matrix) Cond() (float64, error) {
	if !m.IsSquare() {
		return 0, dimError("Cond", m, "matrix is not square")
	}
	if m.rows == 0 {
		return 1, nil
	}
	return mat.Cond(m.ToDense(), 1), nil
}
