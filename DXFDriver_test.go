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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestDXFPolylineGeometry(t *testing.T) {
	square := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	tests := []struct {
		name   string
		points []orb.Point
		closed bool
		want   GeomType
		count  int
	}{
		{"单点", []orb.Point{{0, 0}}, false, GeomNone, 0},
		{"开放线", square, false, GeomLineString, 4},
		{"闭合标记", square, true, GeomPolygon, 5},
		{"首尾相同", append(append([]orb.Point(nil), square...), orb.Point{0, 0}), false, GeomPolygon, 5},
		{"两点闭合", []orb.Point{{0, 0}, {1, 1}}, true, GeomLineString, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := dxfPolylineGeometry(tt.points, tt.closed)
			if tt.want == GeomNone {
				if g != nil {
					t.Fatal("点数不足应返回nil")
				}
				return
			}
			if g.GetGeometryType() != tt.want {
				t.Fatalf("type = %s", g.GetGeometryName())
			}
			n := g.GetPointCount()
			if tt.want == GeomPolygon {
				n = g.GetGeometryRef(0).GetPointCount()
			}
			if n != tt.count {
				t.Errorf("points = %d, want %d", n, tt.count)
			}
		})
	}
}

// dxfHeader 只含文件头段的DXF文本
func dxfHeader(version, codePage string) []byte {
	var b strings.Builder
	b.WriteString("  0\nSECTION\n  2\nHEADER\n  9\n$ACADVER\n  1\n" + version + "\n")
	if codePage != "" {
		b.WriteString("  9\n$DWGCODEPAGE\n  3\n" + codePage + "\n")
	}
	b.WriteString("  0\nENDSEC\n  0\nEOF\n")
	return []byte(b.String())
}

func TestDXFTextEncoding(t *testing.T) {
	// "水系"的GBK字节恰好也是合法的UTF-8
	gbkWater := "\xcb\xae\xcf\xb5"
	tests := []struct {
		name     string
		header   []byte
		raw      string
		want     string
		codePage string
	}{
		{"声明GBK", dxfHeader("AC1015", "ANSI_936"), gbkWater, "水系", "ANSI_936"},
		{"声明小写", dxfHeader("AC1015", "ansi_936"), gbkWater, "水系", "ANSI_936"},
		{"未声明使用默认代码页", dxfHeader("AC1015", ""), gbkWater, "水系", "ANSI_936"},
		{"西欧代码页", dxfHeader("AC1015", "ANSI_1252"), "Caf\xe9", "Café", "ANSI_1252"},
		{"2007版起为UTF-8", dxfHeader("AC1021", "ANSI_936"), "水系", "水系", "UTF-8"},
		{"ASCII", dxfHeader("AC1015", "ANSI_936"), "roads", "roads", "ANSI_936"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, codePage := dxfTextEncoding(tt.header)
			if codePage != tt.codePage {
				t.Errorf("codePage = %q, want %q", codePage, tt.codePage)
			}
			if got := decodeDXFText(enc, tt.raw); got != tt.want {
				t.Errorf("decodeDXFText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDXFCodePageOption(t *testing.T) {
	defer SetDXFCodePage(DXFCodePage())
	if err := SetDXFCodePage("ANSI_950"); err != nil {
		t.Fatal(err)
	}
	if _, codePage := dxfTextEncoding(dxfHeader("AC1015", "")); codePage != "ANSI_950" {
		t.Errorf("codePage = %q", codePage)
	}
	if err := SetDXFCodePage("EBCDIC"); err == nil {
		t.Error("未知代码页应返回错误")
	}
}

func TestSetDXFCodePage(t *testing.T) {
	added := setDXFCodePage(dxfHeader("AC1015", ""), "ANSI_936")
	if version, codePage := dxfHeaderVars(added); version != "AC1015" || codePage != "ANSI_936" {
		t.Errorf("插入后 = %q %q", version, codePage)
	}
	replaced := setDXFCodePage(dxfHeader("AC1015", "ANSI_1252"), "ANSI_936")
	if _, codePage := dxfHeaderVars(replaced); codePage != "ANSI_936" {
		t.Errorf("替换后 = %q", codePage)
	}
	if bytes.Count(replaced, []byte("$DWGCODEPAGE")) != 1 {
		t.Error("不应重复写入代码页")
	}
}

func TestDXFLabel(t *testing.T) {
	ds := CreateMemoryDataSource()
	layer := addStyledLayer(t, ds, "labels", nil, []string{"Name"},
		testFeature{geom: pointGeom(0, 0), style: `LABEL(t:"Peak {Name} {Missing}",s:3mm)`, fields: map[string]string{"Name": "A"}},
		testFeature{geom: pointGeom(0, 0), style: `LABEL(t:"x")`},
		testFeature{geom: pointGeom(0, 0), style: `PEN(c:#000000)`},
	)
	features := layerFeatures(layer)

	text, height, ok := dxfLabel(nil, features[0])
	if !ok || text != "Peak A {Missing}" || height != 3 {
		t.Errorf("label = %q %v %v", text, height, ok)
	}
	if _, height, _ := dxfLabel(nil, features[1]); height != dxfDefaultTextMM {
		t.Errorf("默认字高 = %v", height)
	}
	if _, _, ok := dxfLabel(nil, features[2]); ok {
		t.Error("没有LABEL时应返回false")
	}
}

func TestDXFWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dxf")
	ds := createDataSource(t, "DXF", path)
	layer, err := ds.CreateLayer("Layer", nil, GeomUnknown)
	if err != nil {
		t.Fatal(err)
	}
	if layer.GetFieldCount() != 1 || layer.GetFieldName(0) != dxfLayerField {
		t.Fatal("DXF图层应自带Layer字段")
	}
	for _, tf := range []testFeature{
		{geom: lineGeom([2]float64{0, 0}, [2]float64{10, 0}), fields: map[string]string{dxfLayerField: "roads"}},
		{geom: polygonGeom(ringGeom([2]float64{0, 0}, [2]float64{5, 0}, [2]float64{5, 5}, [2]float64{0, 0})), fields: map[string]string{dxfLayerField: "水系"}},
		{geom: pointGeom(1, 1), style: `LABEL(t:"Peak {Layer}")`, fields: map[string]string{dxfLayerField: "labels"}},
	} {
		f := layer.CreateEmptyFeature()
		_ = f.SetGeometryDirectly(tf.geom)
		f.SetStyleString(tf.style)
		for k, v := range tf.fields {
			_ = f.SetFieldString(k, v)
		}
		if err := layer.CreateFeature(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"LWPOLYLINE", "roads", "Peak labels", "\xcb\xae\xcf\xb5"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("DXF输出缺少 %q", want)
		}
	}
	if _, codePage := dxfHeaderVars(data); codePage != DXFCodePage() {
		t.Errorf("文件头代码页 = %q", codePage)
	}
}
