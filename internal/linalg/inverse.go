package linalg

import (
	"fmt"
	"math"

	"github.com/carrilhoac/kepler/internal/diag"
)

// Inverse обратная матрица. Почти вырожденный случай сообщается
// в diag.Default() и не считается ошибкой.
func (m *Matrix) Inverse() (*Matrix, error) {
	return m.InverseWith(nil)
}

// InverseWith обращает матрицу, сообщая о почти вырожденном определителе в r.
// Для размеров 1..4 используются явные формулы через алгебраические дополнения,
// для больших — LU-разложение с выбором ведущего элемента.
func (m *Matrix) InverseWith(r diag.Reporter) (*Matrix, error) {
	if !m.IsSquare() {
		return nil, dimError("Inverse", m, "matrix is not square")
	}
	if m.rows == 0 {
		return Zeros(0, 0), nil
	}

	var (
		inv *Matrix
		det float64
	)

	switch m.rows {
	case 1:
		det = m.data[0]
		if det != 0 {
			inv = &Matrix{rows: 1, cols: 1, data: []float64{1 / det}}
		}
	case 2:
		inv, det = inverse2(m.data)
	case 3:
		inv, det = inverse3(m.data)
	case 4:
		inv, det = inverse4(m.data)
	default:
		lu, err := m.LU()
		if err != nil {
			return nil, err
		}
		det = lu.Det()
		inv = lu.Inverse()
	}

	if det == 0 || inv == nil || math.IsNaN(det) {
		return nil, singularError("Inverse", m)
	}

	if math.Abs(det) < Epsilon {
		cond, _ := m.Cond()
		diag.Or(r).Report(diag.Event{
			Kind:     diag.KindNearSingular,
			Op:       "linalg.Inverse",
			Residual: det,
			Message:  fmt.Sprintf("%dx%d determinant below %.0e, cond %.3e", m.rows, m.cols, Epsilon, cond),
		})
	}

	return inv, nil
}

func inverse2(a []float64) (*Matrix, float64) {
	det := a[0]*a[3] - a[1]*a[2]
	if det == 0 {
		return nil, 0
	}

	d := 1 / det
	return &Matrix{rows: 2, cols: 2, data: []float64{
		a[3] * d, -a[1] * d,
		-a[2] * d, a[0] * d,
	}}, det
}

func inverse3(a []float64) (*Matrix, float64) {
	c00 := a[4]*a[8] - a[5]*a[7]
	c01 := a[5]*a[6] - a[3]*a[8]
	c02 := a[3]*a[7] - a[4]*a[6]

	det := a[0]*c00 + a[1]*c01 + a[2]*c02
	if det == 0 {
		return nil, 0
	}

	d := 1 / det
	return &Matrix{rows: 3, cols: 3, data: []float64{
		c00 * d, (a[2]*a[7] - a[1]*a[8]) * d, (a[1]*a[5] - a[2]*a[4]) * d,
		c01 * d, (a[0]*a[8] - a[2]*a[6]) * d, (a[2]*a[3] - a[0]*a[5]) * d,
		c02 * d, (a[1]*a[6] - a[0]*a[7]) * d, (a[0]*a[4] - a[1]*a[3]) * d,
	}}, det
}

// inverse4 разложение Лапласа по парам строк (0,1) и (2,3).
func inverse4(a []float64) (*Matrix, float64) {
	a00, a01, a02, a03 := a[0], a[1], a[2], a[3]
	a10, a11, a12, a13 := a[4], a[5], a[6], a[7]
	a20, a21, a22, a23 := a[8], a[9], a[10], a[11]
	a30, a31, a32, a33 := a[12], a[13], a[14], a[15]

	s0 := a00*a11 - a10*a01
	s1 := a00*a12 - a10*a02
	s2 := a00*a13 - a10*a03
	s3 := a01*a12 - a11*a02
	s4 := a01*a13 - a11*a03
	s5 := a02*a13 - a12*a03

	c5 := a22*a33 - a32*a23
	c4 := a21*a33 - a31*a23
	c3 := a21*a32 - a31*a22
	c2 := a20*a33 - a30*a23
	c1 := a20*a32 - a30*a22
	c0 := a20*a31 - a30*a21

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return nil, 0
	}

	d := 1 / det
	return &Matrix{rows: 4, cols: 4, data: []float64{
		(a11*c5 - a12*c4 + a13*c3) * d,
		(-a01*c5 + a02*c4 - a03*c3) * d,
		(a31*s5 - a32*s4 + a33*s3) * d,
		(-a21*s5 + a22*s4 - a23*s3) * d,

		(-a10*c5 + a12*c2 - a13*c1) * d,
		(a00*c5 - a02*c2 + a03*c1) * d,
		(-a30*s5 + a32*s2 - a33*s1) * d,
		(a20*s5 - a22*s2 + a23*s1) * d,

		(a10*c4 - a11*c2 + a13*c0) * d,
		(-a00*c4 + a01*c2 - a03*c0) * d,
		(a30*s4 - a31*s2 + a33*s0) * d,
		(-a20*s4 + a21*s2 - a23*s0) * d,

		(-a10*c3 + a11*c1 - a12*c0) * d,
		(a00*c3 - a01*c1 + a02*c0) * d,
		(-a30*s3 + a31*s1 - a32*s0) * d,
		(a20*s3 - a21*s1 + a22*s0) * d,
	}}, det
}

// Det определитель квадратной матрицы через LU-разложение.
func (m *Matrix) Det() (float64, error) {
	if !m.IsSquare() {
		return 0, dimError("Det", m, "matrix is not square")
	}
	if m.rows == 0 {
		return 1, nil
	}

	lu, err := m.LU()
	if err != nil {
		if lu != nil {
			return 0, nil
		}
		return 0, err
	}
	return lu.Det(), nil
}

// Solve решает систему m·x = b.
func (m *Matrix) Solve(b []float64) ([]float64, error) {
	if len(b) != m.rows {
		return nil, dimError("Solve", m, "right-hand side has %d elements", len(b))
	}

	lu, err := m.LU()
	if err != nil {
		return nil, err
	}
	return lu.Solve(b)
}

// LUDecomposition результат LU-разложения P·A = L·U с частичным выбором ведущего элемента.
// L нижняя унитреугольная, U верхняя; обе хранятся в одном массиве.
type LUDecomposition struct {
	n    int
	lu   []float64
	piv  []int
	sign float64
}

// LU раскладывает квадратную матрицу. Для вырожденной матрицы возвращает
// частичное разложение и ошибку ErrSingular.
func (m *Matrix) LU() (*LUDecomposition, error) {
	if !m.IsSquare() {
		return nil, dimError("LU", m, "matrix is not square")
	}

	n := m.rows
	d := &LUDecomposition{
		n:    n,
		lu:   m.RawData(),
		piv:  make([]int, n),
		sign: 1,
	}
	for i := range d.piv {
		d.piv[i] = i
	}

	a := d.lu
	for k := 0; k < n; k++ {
		p := k
		big := math.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(a[i*n+k]); v > big {
				big, p = v, i
			}
		}
		if big == 0 {
			return d, singularError("LU", m)
		}

		if p != k {
			for j := 0; j < n; j++ {
				a[p*n+j], a[k*n+j] = a[k*n+j], a[p*n+j]
			}
			d.piv[p], d.piv[k] = d.piv[k], d.piv[p]
			d.sign = -d.sign
		}

		pivot := a[k*n+k]
		for i := k + 1; i < n; i++ {
			f := a[i*n+k] / pivot
			a[i*n+k] = f
			if f == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				a[i*n+j] -= f * a[k*n+j]
			}
		}
	}

	return d, nil
}

// Det знаковое произведение ведущих элементов.
func (d *LUDecomposition) Det() float64 {
	det := d.sign
	for i := 0; i < d.n; i++ {
		det *= d.lu[i*d.n+i]
	}
	return det
}

// Solve решает A·x = b прямой и обратной подстановкой.
func (d *LUDecomposition) Solve(b []float64) ([]float64, error) {
	if len(b) != d.n {
		return nil, &LinearAlgebraError{
			Op: "LUSolve", Rows: d.n, Cols: d.n,
			Err: fmt.Errorf("%w: right-hand side has %d elements", ErrDimensionMismatch, len(b)),
		}
	}

	x := make([]float64, d.n)
	d.solveInto(x, func(i int) float64 { return b[i] })
	return x, nil
}

// Inverse обратная матрица по столбцам единичной.
func (d *LUDecomposition) Inverse() *Matrix {
	n := d.n
	inv := Zeros(n, n)
	col := make([]float64, n)

	for j := 0; j < n; j++ {
		d.solveInto(col, func(i int) float64 {
			if i == j {
				return 1
			}
			return 0
		})
		for i := 0; i < n; i++ {
			inv.data[i*n+j] = col[i]
		}
	}
	return inv
}

func (d *LUDecomposition) solveInto(x []float64, rhs func(i int) float64) {
	n, a := d.n, d.lu

	for i := 0; i < n; i++ {
		sum := rhs(d.piv[i])
		for j := 0; j < i; j++ {
			sum -= a[i*n+j] * x[j]
		}
		x[i] = sum
	}

	for i := n - 1; i >= 0; i-- {
		sum := x[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i*n+j] * x[j]
		}
		x[i] = sum / a[i*n+i]
	}
}
