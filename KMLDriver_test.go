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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKMLColorToStyle(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ff0000ff", "#ff0000ff", true},
		{"7f00ff00", "#00ff007f", true},
		{"#ffff0000", "#0000ffff", true},
		{"fff", "", false},
		{"zz0000ff", "", false},
	}
	for _, tt := range tests {
		got, ok := kmlColorToStyle(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("kmlColorToStyle(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestKMLRoundTrip(t *testing.T) {
	ds := createDataSource(t, "LIBKML", filepath.Join(t.TempDir(), "sites.kml"))
	addStyledLayer(t, ds, "sites", mustEPSG(t, 4326), []string{"Name"},
		testFeature{geom: pointGeom(116.39, 39.9), style: "SYMBOL(c:#ff0000)", fields: map[string]string{"Name": "Beijing"}},
		testFeature{geom: lineGeom([2]float64{116, 39}, [2]float64{117, 40}), style: "PEN(c:#00ff00,w:2px)"},
	)
	addMemoryLayer(t, ds, "merc", mustEPSG(t, 3857), GeomPoint, pointGeom(0, 0))

	opened := reopen(t, ds)
	if opened.GetLayerCount() != 2 {
		t.Fatalf("GetLayerCount() = %d, want 2", opened.GetLayerCount())
	}
	layer := opened.GetLayer(0)
	if layer.GetName() != "sites" || !layer.GetSpatialRef().IsGeographic() {
		t.Errorf("layer = %q", layer.GetName())
	}
	features := layerFeatures(layer)
	if len(features) != 2 {
		t.Fatalf("features = %d", len(features))
	}
	point := features[0]
	if point.GetFieldAsString("Name") != "Beijing" {
		t.Errorf("Name = %q", point.GetFieldAsString("Name"))
	}
	if g := point.GetGeometryRef(); math.Abs(g.GetX(0)-116.39) > 1e-9 || math.Abs(g.GetY(0)-39.9) > 1e-9 {
		t.Errorf("point = %v, %v", g.GetX(0), g.GetY(0))
	}
	if style := point.GetStyleString(); !strings.HasPrefix(style, "SYMBOL(") || !strings.Contains(style, "c:#ff0000ff") {
		t.Errorf("point style = %q", style)
	}
	if style := features[1].GetStyleString(); !strings.Contains(style, "PEN(c:#00ff00ff") {
		t.Errorf("line style = %q", style)
	}

	// 投影坐标写出时转为经纬度
	merc := layerFeatures(opened.GetLayer(1))[0].GetGeometryRef()
	if math.Abs(merc.GetX(0)) > 1e-9 || math.Abs(merc.GetY(0)) > 1e-9 {
		t.Errorf("merc point = %v, %v", merc.GetX(0), merc.GetY(0))
	}
}

const groundOverlayKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>survey</name>
    <Style id="red"><LineStyle><color>ff0000ff</color><width>3</width></LineStyle></Style>
    <Placemark>
      <name>Trail</name>
      <styleUrl>#red</styleUrl>
      <ExtendedData><Data name="surface"><value>gravel</value></Data></ExtendedData>
      <LineString><coordinates>116.0,39.0,0 116.1,39.1,0</coordinates></LineString>
    </Placemark>
    <GroundOverlay>
      <name>Scan</name>
      <Icon><href>scan.png</href></Icon>
      <LatLonBox><north>39.2</north><south>39.0</south><east>116.2</east><west>116.0</west></LatLonBox>
    </GroundOverlay>
  </Document>
</kml>`

func TestKMLGroundOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.kml")
	if err := os.WriteFile(path, []byte(groundOverlayKML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scan.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.GetStyleTable().Find("red"); got != "PEN(c:#ff0000ff,w:3px)" {
		t.Errorf("style red = %q", got)
	}
	layer := ds.GetLayer(0)
	if layer.GetName() != "survey" {
		t.Errorf("layer = %q", layer.GetName())
	}
	features := layerFeatures(layer)
	if len(features) != 2 {
		t.Fatalf("features = %d", len(features))
	}
	trail := features[0]
	if trail.GetStyleString() != "@red" || trail.GetFieldAsString("surface") != "gravel" {
		t.Errorf("trail: %q %q", trail.GetStyleString(), trail.GetFieldAsString("surface"))
	}
	overlay := features[1]
	if overlay.GetFieldAsString(kmlOverlayField) != "scan.png" {
		t.Errorf("icon = %q", overlay.GetFieldAsString(kmlOverlayField))
	}
	ring := overlay.GetGeometryRef().GetGeometryRef(0)
	if ring.GetPointCount() != 5 || ring.GetX(0) != 116.0 || ring.GetY(0) != 39.0 {
		t.Errorf("overlay ring = %v", ring.Points())
	}

	m := NewMap()
	imp := NewOgrFileImport(path, m, ImportOptions{GeoreferencingImport: true, UnitType: UnitOnGround})
	if err := imp.Import(); err != nil {
		t.Fatal(err)
	}
	if len(m.Templates()) != 1 || m.ObjectCount() != 1 {
		t.Errorf("templates=%d objects=%d", len(m.Templates()), m.ObjectCount())
	}
	if tpl := m.Templates()[0]; tpl.Path != filepath.Join(dir, "scan.png") || len(tpl.PassPoints) != 5 {
		t.Errorf("template = %+v", tpl)
	}
}

const multiGeometryKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>mixed</name>
    <Placemark>
      <name>Station</name>
      <MultiGeometry>
        <Point><coordinates>116.0,39.0</coordinates></Point>
        <LineString><coordinates>116.0,39.0 116.1,39.0</coordinates></LineString>
        <MultiGeometry>
          <Polygon><outerBoundaryIs><LinearRing>
            <coordinates>116.0,39.0 116.1,39.0 116.1,39.1 116.0,39.0</coordinates>
          </LinearRing></outerBoundaryIs></Polygon>
        </MultiGeometry>
      </MultiGeometry>
    </Placemark>
  </Document>
</kml>`

func TestKMLMultiGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.kml")
	if err := os.WriteFile(path, []byte(multiGeometryKML), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := OpenDataSource(path)
	if err != nil {
		t.Fatal(err)
	}
	features := layerFeatures(ds.GetLayer(0))
	if len(features) != 1 {
		t.Fatalf("features = %d", len(features))
	}
	geom := features[0].GetGeometryRef()
	if geom.GetGeometryType() != GeomCollection || geom.GetGeometryCount() != 3 {
		t.Fatalf("geometry = %s with %d parts", geom.GetGeometryName(), geom.GetGeometryCount())
	}
	wantTypes := []GeomType{GeomPoint, GeomLineString, GeomCollection}
	for i, want := range wantTypes {
		if got := geom.GetGeometryRef(i).GetGeometryType(); got != want {
			t.Errorf("part %d = %v, want %v", i, got, want)
		}
	}
	nested := geom.GetGeometryRef(2)
	if nested.GetGeometryCount() != 1 || nested.GetGeometryRef(0).GetGeometryType() != GeomPolygon {
		t.Errorf("nested = %d parts", nested.GetGeometryCount())
	}
}
