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
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

// GeometryToOrb 将OGR几何转换为orb几何
func GeometryToOrb(g *OGRGeometry) (orb.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("几何为空")
	}
	switch g.GetGeometryType() {
	case GeomPoint:
		return convertPoint(g), nil
	case GeomLineString, GeomLinearRing:
		return convertLineString(g), nil
	case GeomPolygon:
		return convertPolygon(g), nil
	case GeomMultiPoint:
		return convertMultiPoint(g), nil
	case GeomMultiLineString:
		return convertMultiLineString(g), nil
	case GeomMultiPolygon:
		return convertMultiPolygon(g), nil
	case GeomCollection:
		collection := make(orb.Collection, 0, g.GetGeometryCount())
		for i := 0; i < g.GetGeometryCount(); i++ {
			child, err := GeometryToOrb(g.GetGeometryRef(i))
			if err != nil {
				return nil, err
			}
			collection = append(collection, child)
		}
		return collection, nil
	default:
		return nil, fmt.Errorf("不支持的几何类型: %s", g.GetGeometryName())
	}
}

// convertPoint 转换点几何
func convertPoint(g *OGRGeometry) orb.Point {
	return orb.Point{g.GetX(0), g.GetY(0)}
}

// convertLineString 转换线几何
func convertLineString(g *OGRGeometry) orb.LineString {
	return append(orb.LineString(nil), g.Points()...)
}

// convertPolygon 转换面几何
func convertPolygon(g *OGRGeometry) orb.Polygon {
	polygon := make(orb.Polygon, g.GetGeometryCount())
	for i := range polygon {
		polygon[i] = append(orb.Ring(nil), g.GetGeometryRef(i).Points()...)
	}
	return polygon
}

// convertMultiPoint 转换多点几何
func convertMultiPoint(g *OGRGeometry) orb.MultiPoint {
	multiPoint := make(orb.MultiPoint, g.GetGeometryCount())
	for i := range multiPoint {
		multiPoint[i] = convertPoint(g.GetGeometryRef(i))
	}
	return multiPoint
}

// convertMultiLineString 转换多线几何
func convertMultiLineString(g *OGRGeometry) orb.MultiLineString {
	multiLineString := make(orb.MultiLineString, g.GetGeometryCount())
	for i := range multiLineString {
		multiLineString[i] = convertLineString(g.GetGeometryRef(i))
	}
	return multiLineString
}

// convertMultiPolygon 转换多面几何
func convertMultiPolygon(g *OGRGeometry) orb.MultiPolygon {
	multiPolygon := make(orb.MultiPolygon, g.GetGeometryCount())
	for i := range multiPolygon {
		multiPolygon[i] = convertPolygon(g.GetGeometryRef(i))
	}
	return multiPolygon
}

// GeometryFromOrb 将orb几何转换为OGR几何
func GeometryFromOrb(geom orb.Geometry) (*OGRGeometry, error) {
	if geom == nil {
		return nil, nil // 允许空几何
	}

	switch g := geom.(type) {
	case orb.Point:
		result := NewGeometry(GeomPoint)
		result.AddPoint2D(g[0], g[1])
		return result, nil
	case orb.LineString:
		return lineFromPoints(GeomLineString, g), nil
	case orb.Ring:
		return polygonFromOrb(orb.Polygon{g}), nil
	case orb.Polygon:
		return polygonFromOrb(g), nil
	case orb.Bound:
		return polygonFromOrb(g.ToPolygon()), nil
	case orb.MultiPoint:
		result := NewGeometry(GeomMultiPoint)
		for _, p := range g {
			point := NewGeometry(GeomPoint)
			point.AddPoint2D(p[0], p[1])
			_ = result.AddGeometryDirectly(point)
		}
		return result, nil
	case orb.MultiLineString:
		result := NewGeometry(GeomMultiLineString)
		for _, ls := range g {
			_ = result.AddGeometryDirectly(lineFromPoints(GeomLineString, ls))
		}
		return result, nil
	case orb.MultiPolygon:
		result := NewGeometry(GeomMultiPolygon)
		for _, p := range g {
			_ = result.AddGeometryDirectly(polygonFromOrb(p))
		}
		return result, nil
	case orb.Collection:
		result := NewGeometry(GeomCollection)
		for _, child := range g {
			converted, err := GeometryFromOrb(child)
			if err != nil {
				return nil, err
			}
			if converted != nil {
				_ = result.AddGeometryDirectly(converted)
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("不支持的orb几何类型: %T", geom)
	}
}

func lineFromPoints(t GeomType, points []orb.Point) *OGRGeometry {
	result := NewGeometry(t)
	for _, p := range points {
		result.AddPoint2D(p[0], p[1])
	}
	return result
}

func polygonFromOrb(polygon orb.Polygon) *OGRGeometry {
	result := NewGeometry(GeomPolygon)
	for _, ring := range polygon {
		r := lineFromPoints(GeomLinearRing, ring)
		// 确保环闭合
		r.CloseRings()
		_ = result.AddGeometryDirectly(r)
	}
	return result
}

// GeometryToWKB 将几何编码为WKB
func GeometryToWKB(g *OGRGeometry) ([]byte, error) {
	geom, err := GeometryToOrb(g)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(geom)
}

// GeometryFromWKB 解码WKB几何
func GeometryFromWKB(data []byte) (*OGRGeometry, error) {
	geom, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("解析WKB失败: %w", err)
	}
	return GeometryFromOrb(geom)
}

// GeometryToWKT 将几何编码为WKT
func GeometryToWKT(g *OGRGeometry) (string, error) {
	geom, err := GeometryToOrb(g)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(geom), nil
}

// GeometryFromWKT 解码WKT几何
func GeometryFromWKT(s string) (*OGRGeometry, error) {
	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("解析WKT失败: %w", err)
	}
	return GeometryFromOrb(geom)
}

// getOGRGeometryTypeFromOrb 根据 orb.Geometry GeoJSONType 获取对应的几何类型
func getOGRGeometryTypeFromOrb(orbType string) GeomType {
	switch orbType {
	case "Point":
		return GeomPoint
	case "LineString":
		return GeomLineString
	case "Polygon":
		return GeomPolygon
	case "MultiPoint":
		return GeomMultiPoint
	case "MultiLineString":
		return GeomMultiLineString
	case "MultiPolygon":
		return GeomMultiPolygon
	case "GeometryCollection":
		return GeomCollection
	default:
		return GeomUnknown
	}
}

// ConvertGeoJSONToGDALLayer 将GeoJSON要素集合转换为内存图层
func ConvertGeoJSONToGDALLayer(fc *geojson.FeatureCollection, layerName string, srs *SpatialReference) (*GDALLayer, error) {
	if fc == nil {
		return nil, fmt.Errorf("输入的 FeatureCollection 不能为空")
	}

	// 确定图层几何类型，各要素类型不一致时为 Unknown
	geomType := GeomUnknown
	for i, feature := range fc.Features {
		if feature.Geometry == nil {
			continue
		}
		t := getOGRGeometryTypeFromOrb(feature.Geometry.GeoJSONType())
		if i == 0 {
			geomType = t
		} else if t != geomType {
			geomType = GeomUnknown
			break
		}
	}

	layer, err := CreateMemoryLayer(layerName, srs, geomType)
	if err != nil {
		return nil, err
	}
	if err := fillLayerFromGeoJSON(layer, fc); err != nil {
		return nil, err
	}
	return layer, nil
}

// fillLayerFromGeoJSON 按属性推断字段，再逐个添加要素
func fillLayerFromGeoJSON(layer *GDALLayer, fc *geojson.FeatureCollection) error {
	records := make([]map[string]interface{}, 0, len(fc.Features))
	for _, feature := range fc.Features {
		props := map[string]interface{}{}
		for k, v := range feature.Properties {
			if k == styleProperty {
				continue
			}
			props[k] = v
		}
		records = append(records, props)
	}
	for _, fd := range inferFieldDefns(records) {
		if err := layer.CreateField(fd); err != nil {
			return fmt.Errorf("创建字段失败: %v", err)
		}
	}

	for i, feature := range fc.Features {
		if err := addGeoJSONFeatureToGDALLayer(layer, feature, records[i]); err != nil {
			log.Warnf("添加要素失败: %v", err)
		}
	}
	return nil
}

// addGeoJSONFeatureToGDALLayer 将单个 geojson.Feature 添加到图层
func addGeoJSONFeatureToGDALLayer(layer *GDALLayer, feature *geojson.Feature, props map[string]interface{}) error {
	f := layer.CreateEmptyFeature()
	if feature.Geometry != nil {
		geom, err := GeometryFromOrb(feature.Geometry)
		if err != nil {
			return fmt.Errorf("转换几何失败: %v", err)
		}
		_ = f.SetGeometryDirectly(geom)
	}
	for key, value := range props {
		if value == nil {
			continue
		}
		f.SetFieldStringByIndex(f.GetFieldIndex(key), formatFieldValue(value))
	}
	if style, ok := feature.Properties[styleProperty].(string); ok {
		f.SetStyleString(style)
	}
	return layer.CreateFeature(f)
}

// LayerToGeoJSON 将图层转换为GeoJSON要素集合
func LayerToGeoJSON(layer *GDALLayer) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	var firstErr error
	layer.IterateFeatures(func(feature *GDALFeature) {
		gf, err := featureToGeoJSON(feature)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		fc.Append(gf)
	})
	return fc, firstErr
}

// featureToGeoJSON 转换单个要素
func featureToGeoJSON(feature *GDALFeature) (*geojson.Feature, error) {
	var geom orb.Geometry
	if g := feature.GetGeometryRef(); g != nil && !g.IsEmpty() {
		var err error
		geom, err = GeometryToOrb(g)
		if err != nil {
			return nil, err
		}
	}
	gf := geojson.NewFeature(geom)
	defn := feature.GetDefnRef()
	for i := 0; i < defn.GetFieldCount(); i++ {
		if !feature.IsFieldSet(i) {
			continue
		}
		fd := defn.GetFieldDefn(i)
		gf.Properties[fd.Name] = typedFieldValue(fd.Type, feature.GetFieldAsStringByIndex(i))
	}
	if style := feature.GetStyleString(); style != "" {
		gf.Properties[styleProperty] = style
	}
	return gf, nil
}
