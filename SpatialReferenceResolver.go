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
	"math"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// orthoProbeSpec 以局部正射投影为模板，按数据中心生成
const orthoProbeSpec = "+proj=ortho +datum=WGS84 +ellps=WGS84 +units=m +lat_0=%f +lon_0=%f +no_defs"

// SpatialReferenceResolver 为一次导入确定唯一的目标空间参考
type SpatialReferenceResolver struct {
	m        *Map
	warnings *WarningSink
}

// NewSpatialReferenceResolver 创建解析器，警告写入warnings
func NewSpatialReferenceResolver(m *Map, warnings *WarningSink) *SpatialReferenceResolver {
	if warnings == nil {
		warnings = &WarningSink{}
	}
	return &SpatialReferenceResolver{m: m, warnings: warnings}
}

// orthographicProbe 以(0,0)为中心的正射投影，用于检验空间参考是否可用
func orthographicProbe() *SpatialReference {
	srs := NewSpatialReference()
	srs.SetProjCS("Orthographic SRS")
	_ = srs.SetWellKnownGeogCS("WGS84")
	srs.SetOrthographic(0, 0, 0, 0)
	return srs
}

// Resolve 扫描全部图层的空间参考并更新地图地理参考
//
// 优先级：可用的投影坐标系 > 可用的地理坐标系（生成局部正射投影）> 本地坐标系。
// 所有图层都没有空间参考时返回 ErrNoSuitableSRS。
func (r *SpatialReferenceResolver) Resolve(ds *GDALDataSource) (*SpatialReference, error) {
	var (
		noSRS         = true
		local         *SpatialReference
		suitable      *SpatialReference
		projectedSpec string
	)

	probe := orthographicProbe()
	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		if layer == nil {
			continue
		}
		srs := layer.GetSpatialRef()
		if srs == nil {
			continue
		}
		noSRS = false

		if srs.IsLocal() {
			if local == nil {
				local = srs.Clone()
			}
			continue
		}

		if _, err := NewCoordinateTransformation(srs, probe); err != nil {
			r.warnings.AddWarning(fmt.Sprintf("无法使用该空间参考:\n%s", srs.ExportToPrettyWkt()))
			continue
		}

		if srs.IsProjected() {
			if spec, err := srs.ExportToProj4(); err == nil {
				projectedSpec = spec
				suitable = srs.Clone()
				break
			}
		}
		if suitable == nil {
			suitable = srs.Clone()
		}
	}

	switch {
	case projectedSpec != "":
		center := AverageCoords(ds, suitable)
		georef := r.m.Georeferencing().Clone()
		if err := georef.SetProjectedCRS("PROJ.4", projectedSpec); err != nil {
			return nil, newFileFormatError(err, "无法设置投影坐标系")
		}
		georef.SetProjectedRefPoint(orb.Point{math.Round(center[0]), math.Round(center[1])}, true)
		r.m.SetGeoreferencing(georef)
		log.Debugf("采用投影坐标系 %s，参考点 %.0f, %.0f", projectedSpec, center[0], center[1])
		return suitable, nil

	case suitable != nil:
		lat, lon := CalcAverageLatLon(ds)
		lat = 0.001 * math.Round(1000*lat)
		lon = 0.001 * math.Round(1000*lon)
		georef := NewGeoreferencing()
		georef.SetScaleDenominator(r.m.ScaleDenominator())
		if err := georef.SetProjectedCRS("", fmt.Sprintf(orthoProbeSpec, lat, lon)); err != nil {
			return nil, newFileFormatError(err, "无法设置局部正射投影")
		}
		georef.SetProjectedRefPoint(orb.Point{}, false)
		georef.SetCombinedScaleFactor(1)
		georef.SetDeclination(r.m.Georeferencing().Declination)
		r.m.SetGeoreferencing(georef)
		log.Debugf("采用以 %.3f, %.3f 为中心的局部正射投影", lat, lon)
		return r.SRSFromMap(), nil

	case local != nil:
		georef := NewGeoreferencing()
		georef.SetScaleDenominator(r.m.ScaleDenominator())
		georef.SetDeclination(r.m.Georeferencing().Declination)
		r.m.SetGeoreferencing(georef)
		return local, nil
	}

	if noSRS {
		return nil, newFileFormatError(ErrNoSuitableSRS, "数据源中没有任何图层带有空间参考")
	}
	return nil, newFileFormatError(ErrNoSuitableSRS, "数据源中的空间参考均无法使用")
}

// SRSFromMap 由地图地理参考生成空间参考，无法使用时退回本地坐标系
func (r *SpatialReferenceResolver) SRSFromMap() *SpatialReference {
	georef := r.m.Georeferencing()
	if georef.State == GeorefGeospatial {
		srs := NewSpatialReference()
		srs.SetProjCS("Projected map SRS")
		_ = srs.SetWellKnownGeogCS("WGS84")
		err := srs.ImportFromProj4(georef.ProjectedCRSSpec)
		if err == nil {
			return srs
		}
		r.warnings.AddWarning(fmt.Sprintf("无法为 \"%s\" 建立空间参考: %v", georef.ProjectedCRSSpec, err))
	}
	srs := NewSpatialReference()
	srs.SetLocalCS("Local SRS")
	return srs
}

// averageCoords 顶点坐标累加器
type averageCoords struct {
	x, y float64
	n    int
}

func (a *averageCoords) add(g *OGRGeometry) {
	switch g.GetGeometryType() {
	case GeomPoint, GeomLineString, GeomLinearRing:
		for i := 0; i < g.GetPointCount(); i++ {
			a.x += g.GetX(i)
			a.y += g.GetY(i)
			a.n++
		}
	case GeomPolygon, GeomMultiPoint, GeomMultiLineString, GeomMultiPolygon, GeomCollection:
		for i := 0; i < g.GetGeometryCount(); i++ {
			if child := g.GetGeometryRef(i); child != nil {
				a.add(child)
			}
		}
	}
}

// AverageCoords 将全部要素转换到target后求顶点平均值，没有顶点时返回原点
// 无法建立转换的图层和转换失败的要素被跳过
func AverageCoords(ds *GDALDataSource, target *SpatialReference) orb.Point {
	var acc averageCoords
	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		if layer == nil || layer.GetSpatialRef() == nil {
			continue
		}
		ct, err := NewCoordinateTransformation(layer.GetSpatialRef(), target)
		if err != nil {
			continue
		}
		layer.IterateFeatures(func(feature *GDALFeature) {
			geom := feature.GetGeometryRef()
			if geom == nil || geom.IsEmpty() {
				return
			}
			if err := geom.Transform(ct); err != nil {
				return
			}
			acc.add(geom)
		})
		ct.Destroy()
	}
	if acc.n == 0 {
		return orb.Point{}
	}
	return orb.Point{acc.x / float64(acc.n), acc.y / float64(acc.n)}
}

// CalcAverageLatLon 数据源的平均纬度和经度（WGS84）
func CalcAverageLatLon(ds *GDALDataSource) (lat, lon float64) {
	avg := AverageCoords(ds, NewWGS84())
	return avg[1], avg[0]
}

// CheckGeoreferencing 数据源中所有带空间参考的图层都能转换到georef时返回true
// 没有任何带空间参考的图层时返回false
func CheckGeoreferencing(ds *GDALDataSource, georef *Georeferencing) bool {
	if georef == nil || georef.State != GeorefGeospatial {
		return false
	}
	mapSRS := NewSpatialReference()
	mapSRS.SetProjCS("Projected map SRS")
	_ = mapSRS.SetWellKnownGeogCS("WGS84")
	_ = mapSRS.ImportFromProj4(georef.ProjectedCRSSpec)

	found := false
	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		if layer == nil || layer.GetSpatialRef() == nil {
			continue
		}
		ct, err := NewCoordinateTransformation(layer.GetSpatialRef(), mapSRS)
		if err != nil {
			log.Debugf("无法转换该空间参考:\n%s", layer.GetSpatialRef().ExportToPrettyWkt())
			return false
		}
		ct.Destroy()
		found = true
	}
	return found
}

// CheckGeoreferencingFile 打开文件并检查其地理参考
func CheckGeoreferencingFile(path string, georef *Georeferencing) (bool, error) {
	if georef == nil || georef.State != GeorefGeospatial {
		return false, nil
	}
	ds, err := OpenDataSource(path)
	if err != nil {
		return false, newFileFormatError(err, "无法打开数据源 %s", path)
	}
	defer ds.Close()
	return CheckGeoreferencing(ds, georef), nil
}
