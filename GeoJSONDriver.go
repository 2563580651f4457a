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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// styleProperty 要素样式字符串所在的属性名
const styleProperty = "OGR_STYLE"

// newGeoJSONDriver GeoJSON驱动，每个文件一个图层
func newGeoJSONDriver() *Driver {
	return &Driver{
		Name:       "GeoJSON",
		LongName:   "GeoJSON",
		Extensions: []string{"geojson", "json"},
		CanOpen:    true,
		CanCreate:  true,
		MaxLayers:  1,
		open:       openGeoJSON,
		write:      writeGeoJSON,
	}
}

func openGeoJSON(path string) (*GDALDataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取GeoJSON文件失败: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("解析GeoJSON失败: %w", err)
	}

	srs, err := geoJSONSpatialReference(fc.ExtraMembers["crs"])
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if n, ok := fc.ExtraMembers["name"].(string); ok && n != "" {
		name = n
	}

	ds := &GDALDataSource{}
	layer, err := ConvertGeoJSONToGDALLayer(fc, name, srs)
	if err != nil {
		return nil, err
	}
	ds.addLoadedLayer(layer)

	if styles, ok := fc.ExtraMembers["styles"].(map[string]interface{}); ok {
		table := NewStyleTable()
		for key, value := range styles {
			if s, ok := value.(string); ok {
				table.AddStyle(key, s)
			}
		}
		ds.SetStyleTable(table)
	}
	return ds, nil
}

// geoJSONSpatialReference 解析crs成员，缺省为WGS84
func geoJSONSpatialReference(member interface{}) (*SpatialReference, error) {
	crs, ok := member.(map[string]interface{})
	if !ok {
		return NewWGS84(), nil
	}
	props, _ := crs["properties"].(map[string]interface{})
	srs := NewSpatialReference()
	switch crs["type"] {
	case "name":
		name, _ := props["name"].(string)
		if err := srs.SetFromUserInput(name); err != nil {
			return nil, fmt.Errorf("GeoJSON坐标系无效: %w", err)
		}
	case "proj4":
		spec, _ := props["proj4"].(string)
		if err := srs.ImportFromProj4(spec); err != nil {
			return nil, fmt.Errorf("GeoJSON坐标系无效: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的GeoJSON坐标系类型: %v", crs["type"])
	}
	return srs, nil
}

// geoJSONCRSMember 生成crs成员，WGS84时省略
func geoJSONCRSMember(srs *SpatialReference) (map[string]interface{}, error) {
	if srs == nil || srs.IsSame(NewWGS84()) {
		return nil, nil
	}
	if srs.IsLocal() {
		return nil, fmt.Errorf("GeoJSON不支持本地坐标系")
	}
	if code := srs.EPSG(); code != 0 {
		return map[string]interface{}{
			"type":       "name",
			"properties": map[string]interface{}{"name": fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", code)},
		}, nil
	}
	spec, err := srs.ExportToProj4()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"type":       "proj4",
		"properties": map[string]interface{}{"proj4": spec},
	}, nil
}

func writeGeoJSON(ds *GDALDataSource) error {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{}
	if layer := ds.GetLayer(0); layer != nil {
		converted, err := LayerToGeoJSON(layer)
		if err != nil {
			return err
		}
		fc.Features = converted.Features
		fc.ExtraMembers["name"] = layer.GetName()
		crs, err := geoJSONCRSMember(layer.GetSpatialRef())
		if err != nil {
			return err
		}
		if crs != nil {
			fc.ExtraMembers["crs"] = crs
		}
	}
	if table := ds.GetStyleTable(); table != nil && table.Count() > 0 {
		styles := map[string]interface{}{}
		for _, name := range table.Names() {
			styles[name] = table.Find(name)
		}
		fc.ExtraMembers["styles"] = styles
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("编码GeoJSON失败: %w", err)
	}
	return os.WriteFile(ds.GetPath(), data, 0644)
}
