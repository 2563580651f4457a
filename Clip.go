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
	"math"
	"sort"

	"github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeometryClippingAdapter 用图层范围裁剪地图对象
//
// 范围多边形是图层外包矩形换算到地图坐标后的四边形，坐标系旋转或
// 投影后一般不再与坐标轴对齐。面对象用 polyclip 与范围多边形求交，
// 线对象在与范围边界的交点处断开，只保留位于范围内的部分。
type GeometryClippingAdapter struct {
	ring   orb.Ring
	bound  orb.Bound
	region polyclip.Polygon
}

// NewGeometryClippingAdapter 由闭合的范围路径创建裁剪器，坐标不足或面积为零时返回nil
func NewGeometryClippingAdapter(boundary *PathObject) *GeometryClippingAdapter {
	if boundary == nil || len(boundary.Parts) == 0 {
		return nil
	}
	var ring orb.Ring
	for _, c := range boundary.Parts[0].Coords {
		f := c.F()
		ring = append(ring, orb.Point{f.X, f.Y})
	}
	if len(ring) < 3 {
		return nil
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	// 退化的范围（单点或共线）不做裁剪
	if planar.Area(ring) == 0 {
		return nil
	}

	contour := make(polyclip.Contour, 0, len(ring)-1)
	for _, p := range ring[:len(ring)-1] {
		contour = append(contour, polyclip.Point{X: p[0], Y: p[1]})
	}
	return &GeometryClippingAdapter{
		ring:   ring,
		bound:  ring.Bound(),
		region: polyclip.Polygon{contour},
	}
}

// Contains 点是否在范围内，边界上的点视为在内
func (a *GeometryClippingAdapter) Contains(p MapCoordF) bool {
	return planar.RingContains(a.ring, orb.Point{p.X, p.Y})
}

// Clip 裁剪一组对象，返回新的对象集合；完全位于范围外的对象被丢弃
func (a *GeometryClippingAdapter) Clip(objects []Object) []Object {
	var result []Object
	for _, object := range objects {
		result = append(result, a.clipObject(object)...)
	}
	return result
}

func (a *GeometryClippingAdapter) clipObject(object Object) []Object {
	switch o := object.(type) {
	case *PointObject:
		if a.Contains(o.Coord.F()) {
			return []Object{o}
		}
		return nil
	case *TextObject:
		if a.Contains(o.Anchor.F()) {
			return []Object{o}
		}
		return nil
	case *PathObject:
		min, max, ok := o.Bound()
		if !ok || !a.bound.Intersects(orb.Bound{Min: orb.Point{min.X, min.Y}, Max: orb.Point{max.X, max.Y}}) {
			return nil
		}
		if o.Symbol() != nil && o.Symbol().ContainedTypes()&SymbolArea != 0 {
			return a.clipArea(o)
		}
		return a.clipLine(o)
	}
	return []Object{object}
}

// clipArea 面对象与范围求交
//
// 交集可能由多个互不相连的外环组成，每个外环连同其内部的洞成为
// 一个独立对象；交集为空时丢弃。
func (a *GeometryClippingAdapter) clipArea(o *PathObject) []Object {
	o.CloseAllParts()
	var subject polyclip.Polygon
	for _, part := range o.Parts {
		var contour polyclip.Contour
		for _, c := range part.Coords {
			f := c.F()
			contour = append(contour, polyclip.Point{X: f.X, Y: f.Y})
		}
		if len(contour) > 1 && contour[0] == contour[len(contour)-1] {
			contour = contour[:len(contour)-1]
		}
		if len(contour) >= 3 {
			subject = append(subject, contour)
		}
	}
	if len(subject) == 0 {
		return []Object{o}
	}

	var rings []orb.Ring
	for _, contour := range subject.Construct(polyclip.INTERSECTION, a.region) {
		if len(contour) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(contour)+1)
		for _, p := range contour {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		ring = append(ring, ring[0])
		if planar.Area(ring) != 0 {
			rings = append(rings, ring)
		}
	}

	var result []Object
	for _, group := range groupRings(rings) {
		area := NewPathObject(o.Symbol())
		area.Tags().Merge(o.Tags())
		for i, ring := range group {
			for j, p := range ring[:len(ring)-1] {
				area.AddCoordinate(NewMapCoord(MapCoordF{X: p[0], Y: p[1]}), i > 0 && j == 0)
			}
		}
		area.CloseAllParts()
		result = append(result, area)
	}
	return result
}

// groupRings 按嵌套深度区分外环和洞，偶数深度为外环，洞归入直接包含它的外环
func groupRings(rings []orb.Ring) [][]orb.Ring {
	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i := range rings {
		parent[i] = -1
		for j := range rings {
			if i == j || !planar.RingContains(rings[j], rings[i][0]) {
				continue
			}
			depth[i]++
			// 包含它的环中面积最小的是直接父环
			if parent[i] < 0 || math.Abs(planar.Area(rings[j])) < math.Abs(planar.Area(rings[parent[i]])) {
				parent[i] = j
			}
		}
	}

	index := make(map[int]int)
	var groups [][]orb.Ring
	for i, ring := range rings {
		if depth[i]%2 == 0 {
			index[i] = len(groups)
			groups = append(groups, []orb.Ring{ring})
		}
	}
	for i, ring := range rings {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if g, ok := index[parent[i]]; ok {
				groups[g] = append(groups[g], ring)
			}
		}
	}
	return groups
}

// clipLine 线对象逐部分裁剪，每段结果成为独立对象
func (a *GeometryClippingAdapter) clipLine(o *PathObject) []Object {
	var result []Object
	for _, part := range o.Parts {
		line := make(orb.LineString, 0, len(part.Coords))
		for _, c := range part.Coords {
			f := c.F()
			line = append(line, orb.Point{f.X, f.Y})
		}
		for _, piece := range a.clipLineString(line) {
			if len(piece) < 2 {
				continue
			}
			path := NewPathObject(o.Symbol())
			path.Tags().Merge(o.Tags())
			for _, p := range piece {
				path.AddCoordinate(NewMapCoord(MapCoordF{X: p[0], Y: p[1]}), false)
			}
			result = append(result, path)
		}
	}
	return result
}

// clipLineString 每条线段在与范围边界的交点处断开，中点落在范围内的子段保留，
// 相邻的保留子段连成一段
func (a *GeometryClippingAdapter) clipLineString(line orb.LineString) []orb.LineString {
	var pieces []orb.LineString
	var current orb.LineString
	flush := func() {
		if len(current) >= 2 {
			pieces = append(pieces, current)
		}
		current = nil
	}
	for i := 0; i+1 < len(line); i++ {
		p, q := line[i], line[i+1]
		params := a.crossings(p, q)
		for k := 0; k+1 < len(params); k++ {
			t0, t1 := params[k], params[k+1]
			start, end := lerp(p, q, t0), lerp(p, q, t1)
			if !planar.RingContains(a.ring, lerp(p, q, (t0+t1)/2)) {
				flush()
				continue
			}
			if len(current) == 0 {
				current = append(current, start)
			}
			current = append(current, end)
		}
	}
	flush()
	return pieces
}

// crossingEpsilon 交点参数的容差
const crossingEpsilon = 1e-12

// crossings 线段 p-q 与范围各边交点的参数，含两端点的0和1，已排序去重
func (a *GeometryClippingAdapter) crossings(p, q orb.Point) []float64 {
	params := []float64{0, 1}
	r := orb.Point{q[0] - p[0], q[1] - p[1]}
	for i := 0; i+1 < len(a.ring); i++ {
		e0, e1 := a.ring[i], a.ring[i+1]
		s := orb.Point{e1[0] - e0[0], e1[1] - e0[1]}
		denom := cross(r, s)
		// 平行或共线的边不产生断点
		if math.Abs(denom) < crossingEpsilon {
			continue
		}
		d := orb.Point{e0[0] - p[0], e0[1] - p[1]}
		t := cross(d, s) / denom
		u := cross(d, r) / denom
		if t > crossingEpsilon && t < 1-crossingEpsilon && u >= -crossingEpsilon && u <= 1+crossingEpsilon {
			params = append(params, t)
		}
	}
	sort.Float64s(params)
	unique := params[:1]
	for _, t := range params[1:] {
		if t-unique[len(unique)-1] > crossingEpsilon {
			unique = append(unique, t)
		}
	}
	return unique
}

func cross(a, b orb.Point) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

func lerp(p, q orb.Point, t float64) orb.Point {
	switch t {
	case 0:
		return p
	case 1:
		return q
	}
	return orb.Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}
}
