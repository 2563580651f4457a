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
	"strconv"
	"strings"
)

// SRSKind 空间参考类型
type SRSKind int

const (
	SRSUnknown SRSKind = iota
	SRSLocal
	SRSGeographic
	SRSProjected
)

// SpatialReference 空间参考系统
//
// 句柄语义：两个 *SpatialReference 是否"相同"按指针判断，
// 内容相同请使用 IsSame。
type SpatialReference struct {
	kind     SRSKind
	name     string
	geogName string
	epsg     int

	proj    string
	zone    int
	south   bool
	lat0    float64
	lon0    float64
	latTS   float64
	hasTS   bool
	k0      float64
	x0      float64
	y0      float64
	datum   string
	ellps   string
	a, rf   float64
	towgs84 []float64
	grids   string
	units   string
	toMeter float64
}

// NewSpatialReference 创建空的空间参考
func NewSpatialReference() *SpatialReference {
	return &SpatialReference{k0: 1, toMeter: 1}
}

// NewSpatialReferenceFromEPSG 根据EPSG代码创建空间参考
func NewSpatialReferenceFromEPSG(code int) (*SpatialReference, error) {
	srs := NewSpatialReference()
	if err := srs.ImportFromEPSG(code); err != nil {
		return nil, err
	}
	return srs, nil
}

// NewWGS84 创建WGS84地理坐标系
func NewWGS84() *SpatialReference {
	srs := NewSpatialReference()
	srs.SetWellKnownGeogCS("WGS84")
	return srs
}

// Clone 复制（产生新的句柄）
func (s *SpatialReference) Clone() *SpatialReference {
	if s == nil {
		return nil
	}
	c := *s
	c.towgs84 = append([]float64(nil), s.towgs84...)
	return &c
}

// Destroy 释放空间参考（保留与GDAL一致的调用方式）
func (s *SpatialReference) Destroy() {}

func (s *SpatialReference) IsLocal() bool      { return s != nil && s.kind == SRSLocal }
func (s *SpatialReference) IsGeographic() bool { return s != nil && s.kind == SRSGeographic }
func (s *SpatialReference) IsProjected() bool  { return s != nil && s.kind == SRSProjected }

// Name 坐标系名称
func (s *SpatialReference) Name() string {
	return s.name
}

// EPSG 返回EPSG代码，未知时为0
func (s *SpatialReference) EPSG() int {
	return s.epsg
}

// SetLocalCS 设为本地坐标系
func (s *SpatialReference) SetLocalCS(name string) {
	*s = SpatialReference{kind: SRSLocal, name: name, k0: 1, toMeter: 1}
}

// SetProjCS 设置投影坐标系名称
func (s *SpatialReference) SetProjCS(name string) {
	s.name = name
	s.kind = SRSProjected
}

// SetWellKnownGeogCS 设置常用地理坐标系（WGS84、NAD83、CGCS2000、ETRS89）
func (s *SpatialReference) SetWellKnownGeogCS(name string) error {
	var datum, ellps, geogName string
	switch strings.ToUpper(strings.ReplaceAll(name, " ", "")) {
	case "WGS84", "EPSG:4326":
		datum, ellps, geogName = "WGS84", "WGS84", "WGS 84"
	case "NAD83", "EPSG:4269":
		datum, ellps, geogName = "NAD83", "GRS80", "NAD83"
	case "CGCS2000", "EPSG:4490":
		datum, ellps, geogName = "CGCS2000", "GRS80", "China Geodetic Coordinate System 2000"
	case "ETRS89", "EPSG:4258":
		datum, ellps, geogName = "ETRS89", "GRS80", "ETRS89"
	default:
		return fmt.Errorf("未知的地理坐标系: %s", name)
	}
	s.datum, s.ellps, s.geogName = datum, ellps, geogName
	s.a, s.rf = 0, 0
	s.towgs84, s.grids = nil, ""
	if s.kind != SRSProjected {
		s.kind = SRSGeographic
		s.proj = "longlat"
		s.name = geogName
	}
	return nil
}

// SetOrthographic 设置正射投影
func (s *SpatialReference) SetOrthographic(lat0, lon0, falseEasting, falseNorthing float64) {
	s.kind = SRSProjected
	s.proj = "ortho"
	s.lat0, s.lon0 = lat0, lon0
	s.x0, s.y0 = falseEasting, falseNorthing
	s.k0 = 1
	if s.datum == "" && s.ellps == "" && s.a == 0 {
		s.datum, s.ellps = "WGS84", "WGS84"
	}
	if s.units == "" {
		s.units, s.toMeter = "m", 1
	}
}

// ImportFromEPSG 从EPSG代码导入
func (s *SpatialReference) ImportFromEPSG(code int) error {
	entry, ok := LookupCoordinateSystem(code)
	if !ok {
		return fmt.Errorf("不支持的EPSG代码: %d", code)
	}
	if err := s.ImportFromProj4(entry.Proj4); err != nil {
		return err
	}
	s.epsg = code
	s.name = entry.Name
	return nil
}

// SetFromUserInput 从用户输入导入：EPSG:n、URN、CRS84或proj4参数串
func (s *SpatialReference) SetFromUserInput(input string) error {
	text := strings.TrimSpace(input)
	upper := strings.ToUpper(text)
	switch {
	case strings.HasPrefix(text, "+"):
		return s.ImportFromProj4(text)
	case strings.HasSuffix(upper, "CRS84"):
		return s.ImportFromEPSG(4326)
	case strings.HasPrefix(upper, "EPSG:"), strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:"):
		idx := strings.LastIndex(text, ":")
		code, err := strconv.Atoi(text[idx+1:])
		if err != nil {
			return fmt.Errorf("无效的EPSG代码: %s", input)
		}
		return s.ImportFromEPSG(code)
	}
	return fmt.Errorf("无法识别的空间参考: %s", input)
}

// ImportFromProj4 从proj4参数串导入
func (s *SpatialReference) ImportFromProj4(spec string) error {
	tokens := strings.Fields(spec)
	if len(tokens) == 0 {
		return fmt.Errorf("proj4参数串为空")
	}
	r := SpatialReference{k0: 1, toMeter: 1}
	var b float64
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "+") {
			return fmt.Errorf("无效的proj4参数: %s", tok)
		}
		key, value, hasValue := strings.Cut(tok[1:], "=")
		num := func() (float64, error) {
			if !hasValue {
				return 0, fmt.Errorf("proj4参数 %s 缺少取值", key)
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return 0, fmt.Errorf("proj4参数 %s 取值无效: %s", key, value)
			}
			return v, nil
		}
		var err error
		switch key {
		case "proj":
			r.proj = value
		case "zone":
			var z float64
			z, err = num()
			r.zone = int(z)
		case "south":
			r.south = true
		case "lat_0":
			r.lat0, err = num()
		case "lon_0":
			r.lon0, err = num()
		case "lat_ts":
			r.latTS, err = num()
			r.hasTS = true
		case "k", "k_0":
			r.k0, err = num()
		case "x_0":
			r.x0, err = num()
		case "y_0":
			r.y0, err = num()
		case "datum":
			r.datum = value
		case "ellps":
			r.ellps = value
		case "a":
			r.a, err = num()
		case "b":
			b, err = num()
		case "rf":
			r.rf, err = num()
		case "towgs84":
			for _, part := range strings.Split(value, ",") {
				v, perr := strconv.ParseFloat(part, 64)
				if perr != nil {
					return fmt.Errorf("towgs84参数无效: %s", value)
				}
				r.towgs84 = append(r.towgs84, v)
			}
		case "nadgrids":
			r.grids = value
		case "units":
			factor, ok := unitToMeter[value]
			if !ok {
				return fmt.Errorf("不支持的单位: %s", value)
			}
			r.units, r.toMeter = value, factor
		case "to_meter":
			r.toMeter, err = num()
			r.units = ""
		case "no_defs", "wktext", "type", "axis", "over", "R_A":
		default:
			return fmt.Errorf("不支持的proj4参数: %s", key)
		}
		if err != nil {
			return err
		}
	}
	switch r.proj {
	case "":
		return fmt.Errorf("proj4参数串缺少+proj: %s", spec)
	case "longlat", "latlong", "lonlat", "latlon":
		r.proj = "longlat"
		r.kind = SRSGeographic
	default:
		r.kind = SRSProjected
	}
	if r.a > 0 && b > 0 && r.rf == 0 && b != r.a {
		r.rf = r.a / (r.a - b)
	}
	if r.datum != "" {
		if d, ok := datumEllipsoid[r.datum]; ok && r.ellps == "" {
			r.ellps = d
		}
	}
	if r.datum == "" && r.ellps == "" && r.a == 0 {
		r.ellps = "WGS84"
	}
	if r.kind == SRSProjected && r.units == "" && r.toMeter == 1 {
		r.units = "m"
	}
	r.geogName = r.datum
	r.name = "unnamed"
	if r.kind == SRSGeographic && r.datum != "" {
		r.name = r.datum
	}
	*s = r
	return nil
}

var unitToMeter = map[string]float64{
	"m":     1,
	"km":    1000,
	"ft":    0.3048,
	"us-ft": 1200.0 / 3937.0,
}

var datumEllipsoid = map[string]string{
	"WGS84":    "WGS84",
	"NAD83":    "GRS80",
	"ETRS89":   "GRS80",
	"CGCS2000": "GRS80",
	"NAD27":    "clrk66",
	"potsdam":  "bessel",
	"carthage": "clrk80ign",
}

// ExportToProj4 导出规范化的proj4参数串
func (s *SpatialReference) ExportToProj4() (string, error) {
	if s == nil || (s.kind != SRSGeographic && s.kind != SRSProjected) || s.proj == "" {
		return "", fmt.Errorf("空间参考无法导出为proj4")
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	var parts []string
	parts = append(parts, "+proj="+s.proj)
	switch s.proj {
	case "longlat":
	case "utm":
		parts = append(parts, fmt.Sprintf("+zone=%d", s.zone))
		if s.south {
			parts = append(parts, "+south")
		}
	case "merc":
		if s.hasTS {
			parts = append(parts, "+lat_ts="+num(s.latTS))
		}
		parts = append(parts, "+lon_0="+num(s.lon0))
		if !s.hasTS {
			parts = append(parts, "+k="+num(s.k0))
		}
		parts = append(parts, "+x_0="+num(s.x0), "+y_0="+num(s.y0))
	default:
		parts = append(parts, "+lat_0="+num(s.lat0), "+lon_0="+num(s.lon0))
		if s.proj != "ortho" {
			parts = append(parts, "+k="+num(s.k0))
		}
		parts = append(parts, "+x_0="+num(s.x0), "+y_0="+num(s.y0))
	}
	switch {
	case s.datum != "":
		parts = append(parts, "+datum="+s.datum)
	case s.a > 0 && s.rf == 0:
		parts = append(parts, "+a="+num(s.a), "+b="+num(s.a))
	case s.a > 0:
		parts = append(parts, "+a="+num(s.a), "+rf="+num(s.rf))
	case s.ellps != "":
		parts = append(parts, "+ellps="+s.ellps)
	}
	if len(s.towgs84) > 0 {
		vals := make([]string, len(s.towgs84))
		for i, v := range s.towgs84 {
			vals[i] = num(v)
		}
		parts = append(parts, "+towgs84="+strings.Join(vals, ","))
	}
	if s.grids != "" {
		parts = append(parts, "+nadgrids="+s.grids)
	}
	if s.kind == SRSProjected {
		if s.units != "" {
			parts = append(parts, "+units="+s.units)
		} else {
			parts = append(parts, "+to_meter="+num(s.toMeter))
		}
	}
	parts = append(parts, "+no_defs")
	return strings.Join(parts, " "), nil
}

// IsSame 比较两个空间参考的内容
func (s *SpatialReference) IsSame(o *SpatialReference) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.kind != o.kind {
		return false
	}
	if s.kind == SRSLocal {
		return s.name == o.name
	}
	p1, err1 := s.ExportToProj4()
	p2, err2 := o.ExportToProj4()
	return err1 == nil && err2 == nil && p1 == p2
}

// ExportToPrettyWkt 导出带缩进的WKT，用于诊断信息
func (s *SpatialReference) ExportToPrettyWkt() string {
	if s == nil {
		return ""
	}
	if s.kind == SRSLocal {
		return fmt.Sprintf("LOCAL_CS[\"%s\"]", s.name)
	}
	a, rf := s.ellipsoidParams()
	geog := fmt.Sprintf("GEOGCS[\"%s\",\n%sDATUM[\"%s\",\n%sSPHEROID[\"%s\",%s,%s]],\n%sPRIMEM[\"Greenwich\",0],\n%sUNIT[\"degree\",0.0174532925199433]]",
		orDefault(s.geogName, "unknown"),
		"    ", orDefault(s.datum, "unknown"),
		"        ", orDefault(s.ellps, "unnamed"),
		strconv.FormatFloat(a, 'g', -1, 64), strconv.FormatFloat(rf, 'g', -1, 64),
		"    ", "    ")
	if s.kind != SRSProjected {
		return geog
	}
	indented := strings.ReplaceAll(geog, "\n", "\n    ")
	var b strings.Builder
	fmt.Fprintf(&b, "PROJCS[\"%s\",\n    %s,\n", s.name, indented)
	fmt.Fprintf(&b, "    PROJECTION[\"%s\"],\n", wktProjectionName(s.proj))
	params := [][2]interface{}{
		{"latitude_of_origin", s.lat0},
		{"central_meridian", s.lon0},
		{"scale_factor", s.k0},
		{"false_easting", s.x0},
		{"false_northing", s.y0},
	}
	for _, p := range params {
		fmt.Fprintf(&b, "    PARAMETER[\"%s\",%s],\n", p[0], strconv.FormatFloat(p[1].(float64), 'g', -1, 64))
	}
	fmt.Fprintf(&b, "    UNIT[\"%s\",%s]]", orDefault(s.units, "unknown"), strconv.FormatFloat(s.toMeter, 'g', -1, 64))
	return b.String()
}

func wktProjectionName(proj string) string {
	switch proj {
	case "tmerc", "utm":
		return "Transverse_Mercator"
	case "merc":
		return "Mercator_1SP"
	case "ortho":
		return "Orthographic"
	}
	return proj
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
