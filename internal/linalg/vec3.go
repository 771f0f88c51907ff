// Package linalg содержит небольшие плотные векторы и матрицы:
// арифметику, транспонирование, след, обращение и LU-разложение.
package linalg

import (
	"fmt"
	"math"
)

// Vec3 трёхмерный вектор.
type Vec3 [3]float64

// X первая компонента.
func (v Vec3) X() float64 { return v[0] }

// Y вторая компонента.
func (v Vec3) Y() float64 { return v[1] }

// Z третья компонента.
func (v Vec3) Z() float64 { return v[2] }

// Add возвращает v+u.
func (v Vec3) Add(u Vec3) Vec3 {
	return Vec3{v[0] + u[0], v[1] + u[1], v[2] + u[2]}
}

// Sub возвращает v-u.
func (v Vec3) Sub(u Vec3) Vec3 {
	return Vec3{v[0] - u[0], v[1] - u[1], v[2] - u[2]}
}

// Scale возвращает s·v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Neg возвращает -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// Dot скалярное произведение.
func (v Vec3) Dot(u Vec3) float64 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Cross векторное произведение v×u.
func (v Vec3) Cross(u Vec3) Vec3 {
	return Vec3{
		v[1]*u[2] - v[2]*u[1],
		v[2]*u[0] - v[0]*u[2],
		v[0]*u[1] - v[1]*u[0],
	}
}

// Norm евклидова длина.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Distance расстояние между точками v и u.
func (v Vec3) Distance(u Vec3) float64 {
	return v.Sub(u).Norm()
}

// Unit возвращает единичный вектор того же направления.
// Для вектора нулевой длины возвращает *DomainError.
func (v Vec3) Unit() (Vec3, error) {
	n := v.Norm()
	if n <= 0 || math.IsNaN(n) {
		return Vec3{}, &DomainError{Op: "linalg.Unit", Detail: "zero-length vector"}
	}
	return v.Scale(1 / n), nil
}

// String возвращает компоненты с точностью до миллиметра.
func (v Vec3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2])
}
