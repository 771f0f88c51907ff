package linalg

import (
	"fmt"
	"math"
	"strings"
)

// Epsilon допуск сравнения элементов и порог почти вырожденного определителя.
const Epsilon = 1e-11

// Matrix плотная матрица rows×cols, хранение по строкам.
// Операции не изменяют операнды и возвращают новую матрицу.
type Matrix struct {
	rows, cols int
	data       []float64
}

// NewMatrix создаёт матрицу rows×cols. Без data матрица нулевая,
// иначе len(data) должно быть rows*cols. data копируется.
func NewMatrix(rows, cols int, data ...float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, &LinearAlgebraError{
			Op: "NewMatrix", Rows: rows, Cols: cols,
			Err: fmt.Errorf("%w: negative size", ErrDimensionMismatch),
		}
	}

	m := &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
	if len(data) == 0 {
		return m, nil
	}
	if len(data) != rows*cols {
		return nil, dimError("NewMatrix", m, "got %d elements, want %d", len(data), rows*cols)
	}
	copy(m.data, data)

	return m, nil
}

// Zeros нулевая матрица. Отрицательные размеры считаются нулевыми.
func Zeros(rows, cols int) *Matrix {
	rows, cols = max(rows, 0), max(cols, 0)
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Identity единичная матрица n×n.
func Identity(n int) *Matrix {
	m := Zeros(n, n)
	for i := 0; i < m.rows; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// FromRows создаёт матрицу из строк одинаковой длины.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return Zeros(0, 0), nil
	}

	cols := len(rows[0])
	m := Zeros(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, dimError("FromRows", m, "row %d has %d columns, want %d", i, len(r), cols)
		}
		copy(m.data[i*cols:], r)
	}

	return m, nil
}

// Dims возвращает число строк и столбцов.
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// Rows число строк.
func (m *Matrix) Rows() int { return m.rows }

// Cols число столбцов.
func (m *Matrix) Cols() int { return m.cols }

// IsSquare сообщает, квадратная ли матрица.
func (m *Matrix) IsSquare() bool { return m.rows == m.cols }

// At элемент (i, j). Выход за границы — паника, как у срезов.
func (m *Matrix) At(i, j int) float64 {
	m.checkIndex(i, j)
	return m.data[i*m.cols+j]
}

// Set записывает элемент (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.checkIndex(i, j)
	m.data[i*m.cols+j] = v
}

func (m *Matrix) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("linalg: index (%d, %d) out of range %dx%d", i, j, m.rows, m.cols))
	}
}

// Row копия i-й строки.
func (m *Matrix) Row(i int) []float64 {
	m.checkIndex(i, 0)
	out := make([]float64, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// Col копия j-го столбца.
func (m *Matrix) Col(j int) []float64 {
	m.checkIndex(0, j)
	out := make([]float64, m.rows)
	for i := range out {
		out[i] = m.data[i*m.cols+j]
	}
	return out
}

// RawData копия хранилища по строкам.
func (m *Matrix) RawData() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Clone глубокая копия.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{rows: m.rows, cols: m.cols, data: m.RawData()}
}

// T транспонированная матрица.
func (m *Matrix) T() *Matrix {
	t := Zeros(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			t.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return t
}

// Trace след квадратной матрицы.
func (m *Matrix) Trace() (float64, error) {
	if !m.IsSquare() {
		return 0, dimError("Trace", m, "matrix is not square")
	}

	var tr float64
	for i := 0; i < m.rows; i++ {
		tr += m.data[i*m.cols+i]
	}
	return tr, nil
}

// Add поэлементная сумма.
func (m *Matrix) Add(b *Matrix) (*Matrix, error) {
	return m.elementwise("Add", b, func(x, y float64) float64 { return x + y })
}

// Sub поэлементная разность.
func (m *Matrix) Sub(b *Matrix) (*Matrix, error) {
	return m.elementwise("Sub", b, func(x, y float64) float64 { return x - y })
}

func (m *Matrix) elementwise(op string, b *Matrix, f func(x, y float64) float64) (*Matrix, error) {
	if m.rows != b.rows || m.cols != b.cols {
		return nil, dimError(op, m, "operand is %dx%d", b.rows, b.cols)
	}

	out := Zeros(m.rows, m.cols)
	for i := range m.data {
		out.data[i] = f(m.data[i], b.data[i])
	}
	return out, nil
}

// Scale умножение на скаляр.
func (m *Matrix) Scale(s float64) *Matrix {
	out := m.Clone()
	for i := range out.data {
		out.data[i] *= s
	}
	return out
}

// Mul матричное произведение m·b.
func (m *Matrix) Mul(b *Matrix) (*Matrix, error) {
	if m.cols != b.rows {
		return nil, dimError("Mul", m, "operand is %dx%d", b.rows, b.cols)
	}

	out := Zeros(m.rows, b.cols)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < b.cols; j++ {
			var sum float64
			for k := 0; k < m.cols; k++ {
				sum += m.data[i*m.cols+k] * b.data[k*b.cols+j]
			}
			out.data[i*b.cols+j] = sum
		}
	}
	return out, nil
}

// MulVec3 произведение матрицы 3×3 на вектор.
func (m *Matrix) MulVec3(v Vec3) (Vec3, error) {
	if m.rows != 3 || m.cols != 3 {
		return Vec3{}, dimError("MulVec3", m, "want 3x3")
	}

	var out Vec3
	for i := range 3 {
		out[i] = m.data[i*3]*v[0] + m.data[i*3+1]*v[1] + m.data[i*3+2]*v[2]
	}
	return out, nil
}

// IsZero все элементы по модулю меньше Epsilon.
func (m *Matrix) IsZero() bool {
	for _, v := range m.data {
		if math.Abs(v) >= Epsilon {
			return false
		}
	}
	return true
}

// IsSymmetric квадратная и a(i,j) ≈ a(j,i).
func (m *Matrix) IsSymmetric() bool {
	if !m.IsSquare() {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			if math.Abs(m.data[i*m.cols+j]-m.data[j*m.cols+i]) >= Epsilon {
				return false
			}
		}
	}
	return true
}

// IsIdentity квадратная и совпадает с единичной с допуском Epsilon.
func (m *Matrix) IsIdentity() bool {
	if !m.IsSquare() {
		return false
	}
	return m.Equal(Identity(m.rows))
}

// Equal совпадение размеров и элементов с допуском Epsilon.
func (m *Matrix) Equal(b *Matrix) bool {
	return m.EqualApprox(b, Epsilon)
}

// EqualApprox совпадение размеров и элементов с допуском tol.
func (m *Matrix) EqualApprox(b *Matrix, tol float64) bool {
	if b == nil || m.rows != b.rows || m.cols != b.cols {
		return false
	}
	for i := range m.data {
		if math.Abs(m.data[i]-b.data[i]) >= tol {
			return false
		}
	}
	return true
}

// String построчное представление.
func (m *Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		sb.WriteByte('[')
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "% .12e", m.data[i*m.cols+j])
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
