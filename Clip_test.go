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
	"testing"
)

// pathOf 由毫米坐标创建单部分路径
func pathOf(symbol Symbol, closed bool, points ...[2]float64) *PathObject {
	path := NewPathObject(symbol)
	for _, p := range points {
		path.AddCoordinate(NewMapCoord(MapCoordF{X: p[0], Y: p[1]}), false)
	}
	if closed {
		path.CloseAllParts()
	}
	return path
}

func squareClipper(t *testing.T) *GeometryClippingAdapter {
	t.Helper()
	a := NewGeometryClippingAdapter(pathOf(nil, true, [2]float64{0, 0}, [2]float64{10, 0}, [2]float64{10, 10}, [2]float64{0, 10}))
	if a == nil {
		t.Fatal("正方形范围应创建裁剪器")
	}
	return a
}

func near(a, b int64) bool {
	d := a - b
	return d >= -1 && d <= 1
}

func TestClippingAdapterDegenerate(t *testing.T) {
	tests := []struct {
		name     string
		boundary *PathObject
	}{
		{"空路径", nil},
		{"两点", pathOf(nil, false, [2]float64{0, 0}, [2]float64{1, 1})},
		{"共线", pathOf(nil, true, [2]float64{0, 0}, [2]float64{5, 5}, [2]float64{10, 10})},
		{"重合点", pathOf(nil, true, [2]float64{3, 3}, [2]float64{3, 3}, [2]float64{3, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewGeometryClippingAdapter(tt.boundary) != nil {
				t.Error("退化范围应返回nil")
			}
		})
	}
}

func TestClipPointsAndText(t *testing.T) {
	a := squareClipper(t)
	inside := NewPointObject(nil)
	inside.SetPosition(MapCoordF{X: 5, Y: 5})
	outside := NewPointObject(nil)
	outside.SetPosition(MapCoordF{X: 15, Y: 5})
	label := NewTextObject(nil)
	label.SetAnchorPosition(MapCoordF{X: 1, Y: 9})

	got := a.Clip([]Object{inside, outside, label})
	if len(got) != 2 || got[0] != Object(inside) || got[1] != Object(label) {
		t.Errorf("Clip() = %v", got)
	}
}

func TestClipLine(t *testing.T) {
	a := squareClipper(t)
	line := &LineSymbol{}

	crossing := pathOf(line, false, [2]float64{-5, 5}, [2]float64{15, 5})
	crossing.Tags().InsertOrAssign("id", "7")
	got := a.Clip([]Object{crossing})
	if len(got) != 1 {
		t.Fatalf("crossing: %d pieces", len(got))
	}
	piece := got[0].(*PathObject)
	coords := piece.Parts[0].Coords
	if len(coords) != 2 || coords[0].X != 0 || coords[1].X != 10000 || coords[0].Y != 5000 {
		t.Errorf("crossing coords = %+v", coords)
	}
	if piece.Tags().Value("id") != "7" || piece.Symbol() != Symbol(line) {
		t.Error("裁剪结果应保留符号和标签")
	}

	// 出界后再进入的线分为两段
	u := pathOf(line, false, [2]float64{2, 2}, [2]float64{2, 15}, [2]float64{8, 15}, [2]float64{8, 2})
	if got := a.Clip([]Object{u}); len(got) != 2 {
		t.Errorf("U形线: %d pieces, want 2", len(got))
	}

	far := pathOf(line, false, [2]float64{20, 20}, [2]float64{30, 30})
	if got := a.Clip([]Object{far}); len(got) != 0 {
		t.Errorf("范围外的线应丢弃, got %d", len(got))
	}
}

func TestClipArea(t *testing.T) {
	a := squareClipper(t)
	area := &AreaSymbol{}

	big := pathOf(area, true, [2]float64{-5, -5}, [2]float64{5, -5}, [2]float64{5, 5}, [2]float64{-5, 5})
	got := a.Clip([]Object{big})
	if len(got) != 1 {
		t.Fatalf("area: %d objects", len(got))
	}
	min, max, _ := got[0].(*PathObject).Bound()
	if min.X != 0 || min.Y != 0 || max.X != 5 || max.Y != 5 {
		t.Errorf("clipped bound = %+v %+v", min, max)
	}
	if !got[0].(*PathObject).Parts[0].Closed {
		t.Error("裁剪后的面应闭合")
	}

	outside := pathOf(area, true, [2]float64{20, 20}, [2]float64{30, 20}, [2]float64{30, 30})
	if got := a.Clip([]Object{outside}); len(got) != 0 {
		t.Errorf("范围外的面应丢弃, got %d", len(got))
	}
}

func TestClipRotatedFrame(t *testing.T) {
	// 旋转45度的菱形范围
	a := NewGeometryClippingAdapter(pathOf(nil, true, [2]float64{0, 0}, [2]float64{10, 10}, [2]float64{0, 20}, [2]float64{-10, 10}))
	if a == nil {
		t.Fatal("菱形范围应创建裁剪器")
	}
	if !a.Contains(MapCoordF{X: 0, Y: 10}) || a.Contains(MapCoordF{X: 8, Y: 2}) {
		t.Error("包含判断应使用原始范围")
	}

	got := a.Clip([]Object{pathOf(&LineSymbol{}, false, [2]float64{0, -5}, [2]float64{0, 25})})
	if len(got) != 1 {
		t.Fatalf("%d pieces", len(got))
	}
	coords := got[0].(*PathObject).Parts[0].Coords
	if len(coords) != 2 || !near(coords[0].X, 0) || !near(coords[0].Y, 0) || !near(coords[1].X, 0) || !near(coords[1].Y, 20000) {
		t.Errorf("coords = %+v", coords)
	}
}

// partBound 返回单个部分的毫米坐标范围
func partBound(part *PathPart) (min, max MapCoordF) {
	for i, c := range part.Coords {
		f := c.F()
		if i == 0 {
			min, max = f, f
			continue
		}
		min.X, min.Y = math.Min(min.X, f.X), math.Min(min.Y, f.Y)
		max.X, max.Y = math.Max(max.X, f.X), math.Max(max.Y, f.Y)
	}
	return min, max
}

func TestClipShearedBoundary(t *testing.T) {
	// 平行四边形范围，左边为 x = y/2，右边为 x = 10 + y/2
	a := NewGeometryClippingAdapter(pathOf(nil, true, [2]float64{0, 0}, [2]float64{10, 0}, [2]float64{15, 10}, [2]float64{5, 10}))
	if a == nil {
		t.Fatal("平行四边形范围应创建裁剪器")
	}
	area := &AreaSymbol{}

	// 位于外包矩形内但在平行四边形之外
	corner := pathOf(area, true, [2]float64{1, 8}, [2]float64{3, 8}, [2]float64{1, 9.5})
	if got := a.Clip([]Object{corner}); len(got) != 0 {
		t.Errorf("范围外的面应丢弃, got %d", len(got))
	}

	straddle := pathOf(area, true, [2]float64{0, 2}, [2]float64{4, 2}, [2]float64{4, 6}, [2]float64{0, 6})
	got := a.Clip([]Object{straddle})
	if len(got) != 1 {
		t.Fatalf("straddle: %d objects", len(got))
	}
	min, max, _ := got[0].(*PathObject).Bound()
	if min.X != 1 || min.Y != 2 || max.X != 4 || max.Y != 6 {
		t.Errorf("clipped bound = %+v %+v", min, max)
	}
	for _, c := range got[0].(*PathObject).Parts[0].Coords {
		if f := c.F(); !a.Contains(f) {
			t.Errorf("裁剪结果的顶点 %+v 不在范围内", f)
		}
	}

	lines := a.Clip([]Object{pathOf(&LineSymbol{}, false, [2]float64{0, 4}, [2]float64{14, 4})})
	if len(lines) != 1 {
		t.Fatalf("line: %d pieces", len(lines))
	}
	coords := lines[0].(*PathObject).Parts[0].Coords
	if len(coords) != 2 || !near(coords[0].X, 2000) || !near(coords[1].X, 12000) || !near(coords[0].Y, 4000) {
		t.Errorf("line coords = %+v", coords)
	}
}

func TestClipAreaWithHole(t *testing.T) {
	a := squareClipper(t)
	path := pathOf(&AreaSymbol{}, false, [2]float64{-5, 1}, [2]float64{9, 1}, [2]float64{9, 9}, [2]float64{-5, 9})
	for i, p := range [][2]float64{{2, 3}, {4, 3}, {4, 5}, {2, 5}} {
		path.AddCoordinate(NewMapCoord(MapCoordF{X: p[0], Y: p[1]}), i == 0)
	}
	path.CloseAllParts()

	got := a.Clip([]Object{path})
	if len(got) != 1 {
		t.Fatalf("%d objects", len(got))
	}
	parts := got[0].(*PathObject).Parts
	if len(parts) != 2 {
		t.Fatalf("%d parts, want outer and hole", len(parts))
	}
	if min, max := partBound(parts[0]); min.X != 0 || max.X != 9 || min.Y != 1 || max.Y != 9 {
		t.Errorf("outer bound = %+v %+v", min, max)
	}
	if min, max := partBound(parts[1]); min.X != 2 || max.X != 4 || min.Y != 3 || max.Y != 5 {
		t.Errorf("hole bound = %+v %+v", min, max)
	}
}

func TestClipAreaSplitByBoundary(t *testing.T) {
	// 凹形范围把一个矩形面分成两块
	a := NewGeometryClippingAdapter(pathOf(nil, true,
		[2]float64{0, 0}, [2]float64{10, 0}, [2]float64{10, 10}, [2]float64{7, 10},
		[2]float64{7, 3}, [2]float64{3, 3}, [2]float64{3, 10}, [2]float64{0, 10}))
	if a == nil {
		t.Fatal("凹形范围应创建裁剪器")
	}
	bar := pathOf(&AreaSymbol{}, true, [2]float64{-1, 5}, [2]float64{11, 5}, [2]float64{11, 8}, [2]float64{-1, 8})
	got := a.Clip([]Object{bar})
	if len(got) != 2 {
		t.Fatalf("%d objects, want 2", len(got))
	}
	for _, o := range got {
		if parts := o.(*PathObject).Parts; len(parts) != 1 || !parts[0].Closed {
			t.Errorf("每块应为单个闭合外环: %+v", parts)
		}
	}
}
