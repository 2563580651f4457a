/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package OgrMapper

import (
	"fmt"

	"github.com/paulmach/orb"
)

// GeomType 几何类型（与OGR wkb类型编码一致）
type GeomType int

const (
	GeomUnknown           GeomType = 0
	GeomPoint             GeomType = 1
	GeomLineString        GeomType = 2
	GeomPolygon           GeomType = 3
	GeomMultiPoint        GeomType = 4
	GeomMultiLineString   GeomType = 5
	GeomMultiPolygon      GeomType = 6
	GeomCollection        GeomType = 7
	GeomCircularString    GeomType = 8
	GeomCompoundCurve     GeomType = 9
	GeomCurvePolygon      GeomType = 10
	GeomMultiCurve        GeomType = 11
	GeomMultiSurface      GeomType = 12
	GeomPolyhedralSurface GeomType = 15
	GeomTIN               GeomType = 16
	GeomTriangle          GeomType = 17
	GeomNone              GeomType = 100
	GeomLinearRing        GeomType = 101
)

// String 几何类型名称
func (t GeomType) String() string {
	switch t {
	case GeomUnknown:
		return "Unknown (any)"
	case GeomPoint:
		return "Point"
	case GeomLineString:
		return "Line String"
	case GeomPolygon:
		return "Polygon"
	case GeomMultiPoint:
		return "Multi Point"
	case GeomMultiLineString:
		return "Multi Line String"
	case GeomMultiPolygon:
		return "Multi Polygon"
	case GeomCollection:
		return "Geometry Collection"
	case GeomCircularString:
		return "Circular String"
	case GeomCompoundCurve:
		return "Compound Curve"
	case GeomCurvePolygon:
		return "Curve Polygon"
	case GeomMultiCurve:
		return "Multi Curve"
	case GeomMultiSurface:
		return "Multi Surface"
	case GeomPolyhedralSurface:
		return "Polyhedral Surface"
	case GeomTIN:
		return "TIN"
	case GeomTriangle:
		return "Triangle"
	case GeomNone:
		return "None"
	case GeomLinearRing:
		return "Linear Ring"
	}
	return fmt.Sprintf("Unrecognized: %d", int(t))
}

// hasPoints 是否为直接保存坐标点的类型
func (t GeomType) hasPoints() bool {
	switch t {
	case GeomPoint, GeomLineString, GeomLinearRing, GeomCircularString:
		return true
	}
	return false
}

// OGRGeometry 几何对象
type OGRGeometry struct {
	gtype    GeomType
	points   []orb.Point
	children []*OGRGeometry
	srs      *SpatialReference
}

// NewGeometry 创建空几何
func NewGeometry(t GeomType) *OGRGeometry {
	return &OGRGeometry{gtype: t}
}

// Destroy 释放几何
func (g *OGRGeometry) Destroy() {
	if g == nil {
		return
	}
	g.points, g.children, g.srs = nil, nil, nil
}

// GetGeometryType 几何类型
func (g *OGRGeometry) GetGeometryType() GeomType {
	return g.gtype
}

// GetGeometryName 几何类型名称
func (g *OGRGeometry) GetGeometryName() string {
	return g.gtype.String()
}

// IsEmpty 是否为空
func (g *OGRGeometry) IsEmpty() bool {
	if g == nil {
		return true
	}
	if g.gtype.hasPoints() {
		return len(g.points) == 0
	}
	for _, child := range g.children {
		if !child.IsEmpty() {
			return false
		}
	}
	return true
}

// AddPoint2D 追加坐标点
func (g *OGRGeometry) AddPoint2D(x, y float64) {
	if g.gtype == GeomPoint {
		g.points = []orb.Point{{x, y}}
		return
	}
	g.points = append(g.points, orb.Point{x, y})
}

// SetPoint2D 设置第i个坐标点
func (g *OGRGeometry) SetPoint2D(i int, x, y float64) {
	for len(g.points) <= i {
		g.points = append(g.points, orb.Point{})
	}
	g.points[i] = orb.Point{x, y}
}

// GetPointCount 坐标点数量
func (g *OGRGeometry) GetPointCount() int {
	return len(g.points)
}

// GetX 第i个点的X
func (g *OGRGeometry) GetX(i int) float64 {
	if i < 0 || i >= len(g.points) {
		return 0
	}
	return g.points[i][0]
}

// GetY 第i个点的Y
func (g *OGRGeometry) GetY(i int) float64 {
	if i < 0 || i >= len(g.points) {
		return 0
	}
	return g.points[i][1]
}

// Points 返回坐标点（只读）
func (g *OGRGeometry) Points() []orb.Point {
	return g.points
}

// AddGeometry 追加子几何的副本
func (g *OGRGeometry) AddGeometry(child *OGRGeometry) error {
	return g.AddGeometryDirectly(child.Clone())
}

// AddGeometryDirectly 追加子几何（获得所有权）
func (g *OGRGeometry) AddGeometryDirectly(child *OGRGeometry) error {
	if g.gtype.hasPoints() {
		return fmt.Errorf("几何类型 %s 不能包含子几何", g.gtype)
	}
	if child == nil {
		return fmt.Errorf("子几何为空")
	}
	child.srs = g.srs
	g.children = append(g.children, child)
	return nil
}

// GetGeometryCount 子几何数量
func (g *OGRGeometry) GetGeometryCount() int {
	return len(g.children)
}

// GetGeometryRef 第i个子几何（不转移所有权）
func (g *OGRGeometry) GetGeometryRef(i int) *OGRGeometry {
	if i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i]
}

// Clone 深拷贝，空间参考句柄共享
func (g *OGRGeometry) Clone() *OGRGeometry {
	if g == nil {
		return nil
	}
	c := &OGRGeometry{gtype: g.gtype, srs: g.srs}
	c.points = append([]orb.Point(nil), g.points...)
	for _, child := range g.children {
		c.children = append(c.children, child.Clone())
	}
	return c
}

// ForceToLineString 转换为线（线环、圆弧串、复合曲线、可首尾相接的多线）
func (g *OGRGeometry) ForceToLineString() *OGRGeometry {
	result := &OGRGeometry{gtype: GeomLineString, srs: g.srs}
	switch g.gtype {
	case GeomLineString, GeomLinearRing, GeomCircularString:
		result.points = append([]orb.Point(nil), g.points...)
	case GeomCompoundCurve, GeomMultiLineString, GeomMultiCurve:
		for _, child := range g.children {
			pts := child.ForceToLineString().points
			if n := len(result.points); n > 0 && len(pts) > 0 && result.points[n-1] == pts[0] {
				pts = pts[1:]
			}
			result.points = append(result.points, pts...)
		}
	default:
		return g.Clone()
	}
	return result
}

// CloseRings 闭合全部线环
func (g *OGRGeometry) CloseRings() {
	switch g.gtype {
	case GeomLinearRing:
		if n := len(g.points); n > 0 && g.points[0] != g.points[n-1] {
			g.points = append(g.points, g.points[0])
		}
	default:
		for _, child := range g.children {
			child.CloseRings()
		}
	}
}

// GetSpatialReference 空间参考句柄
func (g *OGRGeometry) GetSpatialReference() *SpatialReference {
	return g.srs
}

// AssignSpatialReference 设置空间参考句柄（递归）
func (g *OGRGeometry) AssignSpatialReference(srs *SpatialReference) {
	g.srs = srs
	for _, child := range g.children {
		child.AssignSpatialReference(srs)
	}
}

func (g *OGRGeometry) collectPoints(dst *[]*orb.Point) {
	for i := range g.points {
		*dst = append(*dst, &g.points[i])
	}
	for _, child := range g.children {
		child.collectPoints(dst)
	}
}

// Transform 坐标转换；任一点失败时几何保持不变
func (g *OGRGeometry) Transform(ct *CoordinateTransformation) error {
	if ct == nil {
		return fmt.Errorf("%w: 坐标转换为空", ErrTransformFailed)
	}
	var refs []*orb.Point
	g.collectPoints(&refs)
	values := make([]orb.Point, len(refs))
	for i, p := range refs {
		values[i] = *p
	}
	if err := ct.TransformPoints(values); err != nil {
		return err
	}
	for i, p := range refs {
		*p = values[i]
	}
	g.AssignSpatialReference(ct.Target())
	return nil
}

// Envelope 外包矩形
func (g *OGRGeometry) Envelope() (orb.Bound, bool) {
	var refs []*orb.Point
	g.collectPoints(&refs)
	if len(refs) == 0 {
		return orb.Bound{}, false
	}
	b := orb.Bound{Min: *refs[0], Max: *refs[0]}
	for _, p := range refs[1:] {
		b = b.Extend(*p)
	}
	return b, true
}
