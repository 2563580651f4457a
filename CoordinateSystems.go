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
	"sort"
)

// CoordinateSystem 坐标系目录条目
type CoordinateSystem struct {
	EPSG        int     // EPSG代码
	Name        string  // 坐标系名称
	Type        SRSKind // 坐标系类型
	Description string  // 描述信息
	Proj4       string  // Proj4定义
}

// String 返回坐标系的字符串表示
func (cs *CoordinateSystem) String() string {
	typeStr := "地理坐标系"
	if cs.Type == SRSProjected {
		typeStr = "投影坐标系"
	}
	return fmt.Sprintf("%s (EPSG:%d) - %s", cs.Name, cs.EPSG, typeStr)
}

var coordinateSystems = buildCoordinateSystems()

func buildCoordinateSystems() map[int]*CoordinateSystem {
	catalog := map[int]*CoordinateSystem{}
	add := func(cs *CoordinateSystem) { catalog[cs.EPSG] = cs }

	// 地理坐标系
	add(&CoordinateSystem{4326, "WGS 84", SRSGeographic, "WGS 84 地理坐标系",
		"+proj=longlat +datum=WGS84 +no_defs"})
	add(&CoordinateSystem{4490, "China Geodetic Coordinate System 2000", SRSGeographic, "中国2000国家大地坐标系（地理坐标系）",
		"+proj=longlat +ellps=GRS80 +no_defs"})
	add(&CoordinateSystem{4269, "NAD83", SRSGeographic, "北美1983基准",
		"+proj=longlat +datum=NAD83 +no_defs"})
	add(&CoordinateSystem{4258, "ETRS89", SRSGeographic, "欧洲1989地面参考系",
		"+proj=longlat +ellps=GRS80 +no_defs"})
	add(&CoordinateSystem{4214, "Beijing 1954", SRSGeographic, "北京54坐标系（需要七参数转换）",
		"+proj=longlat +ellps=krass +towgs84=15.8,-154.4,-82.3,0,0,0,0 +no_defs"})

	// 球体墨卡托
	add(&CoordinateSystem{3857, "WGS 84 / Pseudo-Mercator", SRSProjected, "Web墨卡托",
		"+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +wktext +no_defs"})

	// CGCS2000 3度带 (EPSG: 4513-4533 带带号前缀，4534-4554 不带)
	for zone := 25; zone <= 45; zone++ {
		cm := zone * 3
		add(&CoordinateSystem{
			EPSG:        4513 + zone - 25,
			Name:        fmt.Sprintf("CGCS2000 / 3-degree Gauss-Kruger zone %d", zone),
			Type:        SRSProjected,
			Description: fmt.Sprintf("CGCS2000 3度带 %d带 (中央经线%d°)", zone, cm),
			Proj4: fmt.Sprintf("+proj=tmerc +lat_0=0 +lon_0=%d +k=1 +x_0=%d +y_0=0 +ellps=GRS80 +units=m +no_defs",
				cm, zone*1000000+500000),
		})
		add(&CoordinateSystem{
			EPSG:        4534 + zone - 25,
			Name:        fmt.Sprintf("CGCS2000 / 3-degree Gauss-Kruger CM %dE", cm),
			Type:        SRSProjected,
			Description: fmt.Sprintf("CGCS2000 3度带 中央经线%d°（无带号）", cm),
			Proj4:       fmt.Sprintf("+proj=tmerc +lat_0=0 +lon_0=%d +k=1 +x_0=500000 +y_0=0 +ellps=GRS80 +units=m +no_defs", cm),
		})
	}

	// WGS84 UTM
	for zone := 1; zone <= 60; zone++ {
		add(&CoordinateSystem{
			EPSG:        32600 + zone,
			Name:        fmt.Sprintf("WGS 84 / UTM zone %dN", zone),
			Type:        SRSProjected,
			Description: fmt.Sprintf("WGS84 UTM 北半球 %d带", zone),
			Proj4:       fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone),
		})
		add(&CoordinateSystem{
			EPSG:        32700 + zone,
			Name:        fmt.Sprintf("WGS 84 / UTM zone %dS", zone),
			Type:        SRSProjected,
			Description: fmt.Sprintf("WGS84 UTM 南半球 %d带", zone),
			Proj4:       fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", zone),
		})
	}

	// ETRS89 UTM
	for zone := 28; zone <= 38; zone++ {
		add(&CoordinateSystem{
			EPSG:        25800 + zone,
			Name:        fmt.Sprintf("ETRS89 / UTM zone %dN", zone),
			Type:        SRSProjected,
			Description: fmt.Sprintf("ETRS89 UTM %d带", zone),
			Proj4:       fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80 +units=m +no_defs", zone),
		})
	}
	return catalog
}

// LookupCoordinateSystem 按EPSG代码查找坐标系
func LookupCoordinateSystem(epsg int) (*CoordinateSystem, bool) {
	cs, ok := coordinateSystems[epsg]
	return cs, ok
}

// AllCoordinateSystems 按EPSG代码排序返回全部坐标系
func AllCoordinateSystems() []*CoordinateSystem {
	result := make([]*CoordinateSystem, 0, len(coordinateSystems))
	for _, cs := range coordinateSystems {
		result = append(result, cs)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EPSG < result[j].EPSG })
	return result
}

// GetCGCS2000_3DegreeZone 根据带号获取CGCS2000 3度带坐标系（带带号前缀）
// zone: 带号 (25-45)
func GetCGCS2000_3DegreeZone(zone int) (*CoordinateSystem, error) {
	if zone < 25 || zone > 45 {
		return nil, fmt.Errorf("无效的CGCS2000 3度带带号: %d (有效范围: 25-45)", zone)
	}
	cs, _ := LookupCoordinateSystem(4513 + zone - 25)
	return cs, nil
}

// GetCGCS2000_3DegreeByCentralMeridian 根据中央经线获取CGCS2000 3度带坐标系（无带号前缀）
// centralMeridian: 中央经线 (75, 78, 81, ..., 135)
func GetCGCS2000_3DegreeByCentralMeridian(centralMeridian int) (*CoordinateSystem, error) {
	if centralMeridian < 75 || centralMeridian > 135 || centralMeridian%3 != 0 {
		return nil, fmt.Errorf("无效的中央经线: %d (有效值: 75, 78, 81, ..., 135)", centralMeridian)
	}
	cs, _ := LookupCoordinateSystem(4534 + centralMeridian/3 - 25)
	return cs, nil
}

// GetCGCS2000_3DegreeByLongitude 根据经度自动计算并获取对应的CGCS2000 3度带坐标系
// withZonePrefix: 是否使用带带号前缀的坐标系
func GetCGCS2000_3DegreeByLongitude(longitude float64, withZonePrefix bool) (*CoordinateSystem, error) {
	zone := int(math.Floor((longitude + 1.5) / 3))
	centralMeridian := zone * 3
	if centralMeridian < 75 || centralMeridian > 135 {
		return nil, fmt.Errorf("经度 %.2f 超出CGCS2000 3度带覆盖范围", longitude)
	}
	if withZonePrefix {
		return GetCGCS2000_3DegreeZone(zone)
	}
	return GetCGCS2000_3DegreeByCentralMeridian(centralMeridian)
}

// GetUTMZoneByLongitude 根据经纬度获取WGS84 UTM坐标系
func GetUTMZoneByLongitude(longitude, latitude float64) (*CoordinateSystem, error) {
	if longitude < -180 || longitude > 180 || latitude < -80 || latitude > 84 {
		return nil, fmt.Errorf("经纬度 (%.4f, %.4f) 超出UTM覆盖范围", longitude, latitude)
	}
	zone := int(math.Floor((longitude+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	code := 32600 + zone
	if latitude < 0 {
		code = 32700 + zone
	}
	cs, _ := LookupCoordinateSystem(code)
	return cs, nil
}
