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
	"os"
	"path/filepath"
	"testing"
)

// createDataSource 用指定驱动新建数据源
func createDataSource(t *testing.T, driverName, path string) *GDALDataSource {
	t.Helper()
	driver, err := GetDriverByName(driverName)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := driver.CreateDataSource(path)
	if err != nil {
		t.Fatalf("CreateDataSource(%s): %v", path, err)
	}
	return ds
}

// reopen 关闭后按扩展名重新打开
func reopen(t *testing.T, ds *GDALDataSource) *GDALDataSource {
	t.Helper()
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	opened, err := OpenDataSource(ds.GetPath())
	if err != nil {
		t.Fatalf("OpenDataSource(%s): %v", ds.GetPath(), err)
	}
	return opened
}

func TestDriverRegistry(t *testing.T) {
	names := []string{"Memory", "GeoJSON", "SQLite", "CSV", "LIBKML", "GPX", "DXF"}
	if GetDriverCount() != len(names) {
		t.Fatalf("GetDriverCount() = %d", GetDriverCount())
	}
	for i, name := range names {
		if got := GetDriver(i).GetName(); got != name {
			t.Errorf("driver %d = %q, want %q", i, got, name)
		}
	}
	if GetDriver(len(names)) != nil {
		t.Error("越界应返回nil")
	}
	if _, err := GetDriverByName("Shapefile"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestOpenDataSourceErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenDataSource(filepath.Join(dir, "missing.geojson")); err == nil {
		t.Error("不存在的文件应返回错误")
	}

	unknown := filepath.Join(dir, "data.xyz")
	if err := os.WriteFile(unknown, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDataSource(unknown); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("未知扩展名: err = %v", err)
	}

	broken := filepath.Join(dir, "broken.geojson")
	if err := os.WriteFile(broken, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenDataSource(broken); err == nil {
		t.Error("格式错误的文件应返回错误")
	}
}

func TestCreateDataSourceMissingDir(t *testing.T) {
	driver, _ := GetDriverByName("GeoJSON")
	if _, err := driver.CreateDataSource(filepath.Join(t.TempDir(), "no", "such", "out.geojson")); err == nil {
		t.Error("目录不存在时应返回错误")
	}
}

func TestDataSourceLayers(t *testing.T) {
	ds := CreateMemoryDataSource()
	srs := mustEPSG(t, 4326)
	layer, err := ds.CreateLayer("a", srs, GeomPoint)
	if err != nil {
		t.Fatal(err)
	}
	if layer.GetSpatialRef() == srs || !layer.GetSpatialRef().IsSame(srs) {
		t.Error("图层应持有空间参考的副本")
	}
	if _, err := ds.CreateLayer("a", nil, GeomPoint); err == nil {
		t.Error("重复的图层名应返回错误")
	}

	if err := layer.CreateField(NewFieldDefn("Name", FieldTypeString)); err != nil {
		t.Fatal(err)
	}
	if err := layer.CreateField(NewFieldDefn("Name", FieldTypeString)); err == nil {
		t.Error("重复字段应返回错误")
	}
	f := layer.CreateEmptyFeature()
	_ = f.SetGeometryDirectly(pointGeom(1, 2))
	if err := layer.CreateFeature(f); err != nil {
		t.Fatal(err)
	}
	if err := layer.CreateField(NewFieldDefn("Late", FieldTypeString)); err == nil {
		t.Error("已有要素时不能追加字段")
	}

	got := layer.GetNextFeature()
	if got.GetGeometryRef().GetSpatialReference() != layer.GetSpatialRef() {
		t.Error("读取的几何应携带图层空间参考")
	}

	if err := ds.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ds.Close(); err != nil {
		t.Error("重复关闭不应出错")
	}
	if _, err := ds.CreateLayer("b", nil, GeomPoint); err == nil {
		t.Error("关闭后不能创建图层")
	}
}
