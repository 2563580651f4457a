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
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

// exportSymbols 测试地图中的符号
type exportSymbols struct {
	point *PointSymbol
	line  *LineSymbol
	area  *AreaSymbol
	text  *TextSymbol
}

// exportTestMap 本地地图：一个点、一个文字、两段的线和一个面
func exportTestMap(text string) (*Map, exportSymbols) {
	m := NewMap()
	red := NewMapColor("red", 0)
	red.SetRgb(255, 0, 0)
	blue := NewMapColor("blue", 0)
	blue.SetRgb(0, 0, 255)
	m.AddColor(red, -1)
	m.AddColor(blue, -1)

	s := exportSymbols{
		point: &PointSymbol{InnerColor: red, InnerRadius: 200},
		line:  &LineSymbol{Color: red},
		area:  &AreaSymbol{Color: blue},
		text:  &TextSymbol{Color: blue, FontFamily: "Arial", FontSize: 4000},
	}
	s.point.Name = "Tree"
	s.line.Name = "Road"
	s.line.SetLineWidth(0.3)
	s.area.Name = "Lake"
	s.text.Name = "Label"
	for _, symbol := range []Symbol{s.point, s.line, s.area, s.text} {
		m.AddSymbol(symbol, -1)
	}

	part := m.CurrentPart()
	point := NewPointObject(s.point)
	point.SetPosition(MapCoordF{X: 10, Y: 20})
	part.AddObject(point)

	label := NewTextObject(s.text)
	label.SetAnchorPosition(MapCoordF{X: 30, Y: 40})
	label.Text = text
	part.AddObject(label)

	road := NewPathObject(s.line)
	road.AddCoordinate(MapCoord{X: 0, Y: 0}, false)
	road.AddCoordinate(MapCoord{X: 10000, Y: 0}, false)
	road.AddCoordinate(MapCoord{X: 0, Y: 5000}, true)
	road.AddCoordinate(MapCoord{X: 10000, Y: 5000}, false)
	part.AddObject(road)

	lake := NewPathObject(s.area)
	lake.AddCoordinate(MapCoord{X: 0, Y: 0}, false)
	lake.AddCoordinate(MapCoord{X: 20000, Y: 0}, false)
	lake.AddCoordinate(MapCoord{X: 20000, Y: 20000}, false)
	lake.AddCoordinate(MapCoord{X: 0, Y: 20000}, false)
	lake.CloseAllParts()
	part.AddObject(lake)
	return m, s
}

// layerFeatures 读取图层全部要素
func layerFeatures(layer *GDALLayer) []*GDALFeature {
	var features []*GDALFeature
	layer.IterateFeatures(func(f *GDALFeature) {
		features = append(features, f)
	})
	return features
}

func TestQuirksForDriver(t *testing.T) {
	tests := []struct {
		driver string
		has    OgrQuirk
		not    OgrQuirk
	}{
		{"DXF", GeorefOptional | SingleLayer | UseLayerField, NeedsWgs84},
		{"GeoJSON", NeedsWgs84 | SingleLayer, GeorefOptional},
		{"LIBKML", NeedsWgs84, SingleLayer},
		{"GPX", NeedsWgs84, UseLayerField},
		{"SQLite", GeorefOptional, SingleLayer},
		{"Unknown", 0, GeorefOptional | NeedsWgs84 | SingleLayer | UseLayerField},
	}
	for _, tt := range tests {
		q := QuirksForDriver(tt.driver)
		if q&tt.has != tt.has {
			t.Errorf("%s: quirks %b missing %b", tt.driver, q, tt.has)
		}
		if q.Has(tt.not) {
			t.Errorf("%s: quirks %b should not contain %b", tt.driver, q, tt.not)
		}
	}
}

func TestExportErrors(t *testing.T) {
	dir := t.TempDir()
	m, _ := exportTestMap("Hello")

	err := NewOgrFileExport(filepath.Join(dir, "out.xyz"), m, "OGR-export-NoSuchDriver", ExportOptions{}).Export()
	if !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("未知驱动: err = %v", err)
	}

	exp := NewOgrFileExport(filepath.Join(dir, "out.geojson"), m, "GeoJSON", ExportOptions{})
	err = exp.Export()
	if !errors.Is(err, ErrNoSuitableSRS) {
		t.Errorf("本地地图导出GeoJSON: err = %v", err)
	}
	if len(exp.Warnings()) == 0 {
		t.Error("本地地图应给出警告")
	}
}

func TestExportPerTypeLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sqlite")
	m, s := exportTestMap("Hello")

	exp := NewOgrFileExport(path, m, "OGR-export-SQLite", ExportOptions{})
	if err := exp.Export(); err != nil {
		t.Fatal(err)
	}
	if exp.StyleTable().Count() != 4 {
		t.Errorf("StyleTable().Count() = %d, want 4", exp.StyleTable().Count())
	}
	if exp.SymbolID(s.line) == exp.SymbolID(s.area) || exp.SymbolID(s.line) == "" {
		t.Error("每个符号应有不同的样式键")
	}

	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	wantLayers := []string{"out_points", "out_lines", "out_areas"}
	if ds.GetLayerCount() != len(wantLayers) {
		t.Fatalf("GetLayerCount() = %d", ds.GetLayerCount())
	}
	for i, name := range wantLayers {
		if got := ds.GetLayer(i).GetName(); got != name {
			t.Errorf("layer %d = %q, want %q", i, got, name)
		}
	}
	if srs := ds.GetLayer(0).GetSpatialRef(); srs == nil || !srs.IsLocal() {
		t.Error("本地地图应导出本地坐标系")
	}

	table := ds.GetStyleTable()
	if table == nil || table.Count() != 4 {
		t.Fatal("样式表应写入数据源")
	}

	points := layerFeatures(ds.GetLayerByName("out_points"))
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if got := points[0].GetFieldAsString("Name"); got != "Tree" {
		t.Errorf("点要素名称 = %q", got)
	}
	if got := points[1].GetFieldAsString("Name"); got != "Hello" {
		t.Errorf("文字要素名称 = %q", got)
	}
	if !strings.Contains(points[1].GetStyleString(), `t:"{Name}"`) {
		t.Errorf("短文字应引用名称字段: %q", points[1].GetStyleString())
	}
	if geom := points[0].GetGeometryRef(); geom.GetX(0) != 10 || geom.GetY(0) != -20 {
		t.Errorf("point = %v, %v", geom.GetX(0), geom.GetY(0))
	}

	// 每个线部分一个要素
	lines := layerFeatures(ds.GetLayerByName("out_lines"))
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	for _, f := range lines {
		if f.GetStyleString() != table.Find(exp.SymbolID(s.line)) {
			t.Errorf("线要素样式 = %q", f.GetStyleString())
		}
		if f.GetFieldAsString("Name") != "Road" {
			t.Errorf("线要素名称 = %q", f.GetFieldAsString("Name"))
		}
		if n := f.GetGeometryRef().GetPointCount(); n != 2 {
			t.Errorf("线要素点数 = %d, want 2", n)
		}
	}
	if y := lines[1].GetGeometryRef().GetY(0); y != -5 {
		t.Errorf("第二部分 y = %v, want -5", y)
	}

	areas := layerFeatures(ds.GetLayerByName("out_areas"))
	if len(areas) != 1 || areas[0].GetGeometryRef().GetGeometryType() != GeomPolygon {
		t.Fatalf("areas = %d", len(areas))
	}
}

func TestExportLongText(t *testing.T) {
	long := strings.Repeat("长文字", 12)
	path := filepath.Join(t.TempDir(), "long.sqlite")
	m, _ := exportTestMap(long)
	if err := NewOgrFileExport(path, m, "SQLite", ExportOptions{}).Export(); err != nil {
		t.Fatal(err)
	}
	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	points := layerFeatures(ds.GetLayerByName("long_points"))
	if len(points) != 2 {
		t.Fatalf("points = %d", len(points))
	}
	text := points[1]
	if got := text.GetFieldAsString("Name"); got != truncateRunes(long, 32) {
		t.Errorf("名称字段应截断为32个字符, got %q", got)
	}
	if !strings.Contains(text.GetStyleString(), `t:"`+long+`"`) {
		t.Errorf("长文字应直接写入样式: %q", text.GetStyleString())
	}
}

func TestExportPerSymbolLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	m, _ := exportTestMap("Hello")
	if err := NewOgrFileExport(path, m, "SQLite", ExportOptions{PerSymbolLayers: true}).Export(); err != nil {
		t.Fatal(err)
	}
	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"out_Tree", "out_Label", "out_Road", "out_Lake"}
	if ds.GetLayerCount() != len(want) {
		t.Fatalf("GetLayerCount() = %d, want %d", ds.GetLayerCount(), len(want))
	}
	for i, name := range want {
		if got := ds.GetLayer(i).GetName(); got != name {
			t.Errorf("layer %d = %q, want %q", i, got, name)
		}
	}
	if n := ds.GetLayerByName("out_Road").GetFeatureCount(); n != 2 {
		t.Errorf("out_Road features = %d, want 2", n)
	}
}

func TestExportGeoJSONWgs84(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utm.geojson")
	m, _ := exportTestMap("Hello")
	georef := m.Georeferencing()
	if err := georef.SetProjectedCRS("EPSG", "+proj=utm +zone=50 +datum=WGS84 +units=m +no_defs"); err != nil {
		t.Fatal(err)
	}
	georef.SetMapRefPoint(MapCoordF{X: 10, Y: 20})
	georef.SetProjectedRefPoint(orb.Point{500000, 4000000}, false)

	if err := NewOgrFileExport(path, m, "GeoJSON", ExportOptions{}).Export(); err != nil {
		t.Fatal(err)
	}
	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	layer := ds.GetLayer(0)
	if !layer.GetSpatialRef().IsGeographic() {
		t.Error("GeoJSON应使用WGS84")
	}
	features := layerFeatures(layer)
	if len(features) != 5 {
		t.Fatalf("features = %d, want 5", len(features))
	}
	// 第一个符号为点，位于地图参考点，即中央经线上
	geom := features[0].GetGeometryRef()
	if math.Abs(geom.GetX(0)-117) > 1e-5 || geom.GetY(0) < 36 || geom.GetY(0) > 36.3 {
		t.Errorf("point = %v, %v", geom.GetX(0), geom.GetY(0))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.sqlite")
	src, _ := exportTestMap("Hello")
	if err := NewOgrFileExport(path, src, "SQLite", ExportOptions{}).Export(); err != nil {
		t.Fatal(err)
	}

	m := NewMap()
	imp := NewOgrFileImport(path, m, ImportOptions{GeoreferencingImport: true, UnitType: UnitOnGround})
	if err := imp.Import(); err != nil {
		t.Fatal(err)
	}
	if m.ObjectCount() != 5 {
		t.Fatalf("ObjectCount() = %d, want 5", m.ObjectCount())
	}
	if m.SymbolSetID != "SQLite" {
		t.Errorf("SymbolSetID = %q", m.SymbolSetID)
	}

	var lines, areas int
	for _, object := range m.CurrentPart().Objects {
		switch o := object.(type) {
		case *PointObject:
			if o.Coord.X != 10000 || o.Coord.Y != 20000 {
				t.Errorf("point = %+v", o.Coord)
			}
		case *TextObject:
			if o.Text != "Hello" || o.Anchor.X != 30000 || o.Anchor.Y != 40000 {
				t.Errorf("text = %q at %+v", o.Text, o.Anchor)
			}
		case *PathObject:
			switch symbol := o.Symbol().(type) {
			case *LineSymbol:
				lines++
				if symbol.LineWidth != 300 || symbol.Color.RgbString() != "#ff0000ff" {
					t.Errorf("line width=%d color=%s", symbol.LineWidth, symbol.Color.RgbString())
				}
			case *AreaSymbol:
				areas++
				if symbol.Color.RgbString() != "#0000ffff" {
					t.Errorf("area color = %s", symbol.Color.RgbString())
				}
			}
		}
	}
	if lines != 2 || areas != 1 {
		t.Errorf("lines=%d areas=%d", lines, areas)
	}
}
