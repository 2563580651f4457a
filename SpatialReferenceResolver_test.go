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
	"strings"
	"testing"
)

func pointGeom(x, y float64) *OGRGeometry {
	g := NewGeometry(GeomPoint)
	g.AddPoint2D(x, y)
	return g
}

func lineGeom(points ...[2]float64) *OGRGeometry {
	g := NewGeometry(GeomLineString)
	for _, p := range points {
		g.AddPoint2D(p[0], p[1])
	}
	return g
}

// addMemoryLayer 向内存数据源添加图层，每个几何一个要素
func addMemoryLayer(t *testing.T, ds *GDALDataSource, name string, srs *SpatialReference, geomType GeomType, geoms ...*OGRGeometry) *GDALLayer {
	t.Helper()
	layer, err := ds.CreateLayer(name, srs, geomType)
	if err != nil {
		t.Fatalf("CreateLayer(%s): %v", name, err)
	}
	for _, g := range geoms {
		f := layer.CreateEmptyFeature()
		if err := f.SetGeometryDirectly(g); err != nil {
			t.Fatal(err)
		}
		if err := layer.CreateFeature(f); err != nil {
			t.Fatal(err)
		}
	}
	return layer
}

func mustEPSG(t *testing.T, code int) *SpatialReference {
	t.Helper()
	srs, err := NewSpatialReferenceFromEPSG(code)
	if err != nil {
		t.Fatalf("EPSG:%d: %v", code, err)
	}
	return srs
}

func TestResolveWithoutSRS(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ds *GDALDataSource)
	}{
		{"没有图层", func(ds *GDALDataSource) {}},
		{"图层没有空间参考", func(ds *GDALDataSource) {
			addMemoryLayer(t, ds, "plain", nil, GeomPoint, pointGeom(1, 2))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := CreateMemoryDataSource()
			tt.setup(ds)
			_, err := NewSpatialReferenceResolver(NewMap(), nil).Resolve(ds)
			if !errors.Is(err, ErrNoSuitableSRS) {
				t.Fatalf("err = %v, want ErrNoSuitableSRS", err)
			}
			var ffe *FileFormatError
			if !errors.As(err, &ffe) {
				t.Error("错误应为 FileFormatError")
			}
		})
	}
}

func TestResolveProjected(t *testing.T) {
	ds := CreateMemoryDataSource()
	addMemoryLayer(t, ds, "plain", nil, GeomPoint, pointGeom(0, 0))
	addMemoryLayer(t, ds, "merc", mustEPSG(t, 3857), GeomPoint,
		pointGeom(1000.4, 2000.6), pointGeom(3000.4, 4000.6))

	m := NewMap()
	srs, err := NewSpatialReferenceResolver(m, nil).Resolve(ds)
	if err != nil {
		t.Fatal(err)
	}
	if !srs.IsProjected() {
		t.Fatal("应选用投影坐标系")
	}
	georef := m.Georeferencing()
	if georef.State != GeorefGeospatial {
		t.Fatal("地图应带有地理参考")
	}
	if georef.ProjectedRefPoint[0] != 2000 || georef.ProjectedRefPoint[1] != 3001 {
		t.Errorf("ProjectedRefPoint = %v, want [2000 3001]", georef.ProjectedRefPoint)
	}
	if !strings.Contains(georef.ProjectedCRSSpec, "+proj=merc") {
		t.Errorf("ProjectedCRSSpec = %q", georef.ProjectedCRSSpec)
	}
}

func TestResolveGeographic(t *testing.T) {
	ds := CreateMemoryDataSource()
	addMemoryLayer(t, ds, "wgs84", mustEPSG(t, 4326), GeomPoint,
		pointGeom(116.3912, 39.9072), pointGeom(116.3914, 39.9074))

	m := NewMap()
	m.Georeferencing().SetDeclination(2)
	srs, err := NewSpatialReferenceResolver(m, nil).Resolve(ds)
	if err != nil {
		t.Fatal(err)
	}
	if !srs.IsProjected() {
		t.Fatal("地理坐标数据应得到局部正射投影")
	}
	georef := m.Georeferencing()
	if !strings.Contains(georef.ProjectedCRSSpec, "+proj=ortho") ||
		!strings.Contains(georef.ProjectedCRSSpec, "+lat_0=39.907") ||
		!strings.Contains(georef.ProjectedCRSSpec, "+lon_0=116.391") {
		t.Errorf("ProjectedCRSSpec = %q", georef.ProjectedCRSSpec)
	}
	if georef.ProjectedRefPoint[0] != 0 || georef.ProjectedRefPoint[1] != 0 {
		t.Errorf("ProjectedRefPoint = %v", georef.ProjectedRefPoint)
	}
	if math.Abs(georef.Declination-2) > 1e-9 {
		t.Errorf("磁偏角应保留, got %v", georef.Declination)
	}
}

func TestResolveLocal(t *testing.T) {
	local := NewSpatialReference()
	local.SetLocalCS("Site grid")
	ds := CreateMemoryDataSource()
	addMemoryLayer(t, ds, "local", local, GeomPoint, pointGeom(5, 5))

	m := NewMap()
	srs, err := NewSpatialReferenceResolver(m, nil).Resolve(ds)
	if err != nil {
		t.Fatal(err)
	}
	if !srs.IsLocal() || srs.Name() != "Site grid" {
		t.Errorf("srs = %v", srs.Name())
	}
	if m.Georeferencing().State != GeorefLocal {
		t.Error("本地坐标数据不应设置地理参考")
	}
}

func TestSRSFromMap(t *testing.T) {
	m := NewMap()
	r := NewSpatialReferenceResolver(m, nil)
	if srs := r.SRSFromMap(); !srs.IsLocal() {
		t.Error("没有地理参考时应返回本地坐标系")
	}
	if err := m.Georeferencing().SetProjectedCRS("EPSG", "+proj=utm +zone=50 +datum=WGS84 +units=m +no_defs"); err != nil {
		t.Fatal(err)
	}
	if srs := r.SRSFromMap(); !srs.IsProjected() {
		t.Error("应返回地图的投影坐标系")
	}
}

func TestCheckGeoreferencing(t *testing.T) {
	georef := NewGeoreferencing()
	if err := georef.SetProjectedCRS("EPSG", "+proj=utm +zone=50 +datum=WGS84 +units=m +no_defs"); err != nil {
		t.Fatal(err)
	}

	empty := CreateMemoryDataSource()
	addMemoryLayer(t, empty, "plain", nil, GeomPoint, pointGeom(1, 1))
	if CheckGeoreferencing(empty, georef) {
		t.Error("没有空间参考的数据源应返回false")
	}

	ds := CreateMemoryDataSource()
	addMemoryLayer(t, ds, "wgs84", mustEPSG(t, 4326), GeomPoint, pointGeom(117, 30))
	if !CheckGeoreferencing(ds, georef) {
		t.Error("WGS84数据应能转换到UTM")
	}
	if CheckGeoreferencing(ds, NewGeoreferencing()) {
		t.Error("本地地理参考应返回false")
	}
}
