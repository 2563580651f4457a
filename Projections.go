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
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// ellipsoids 椭球参数：长半轴, 扁率倒数（0表示球体）
var ellipsoids = map[string][2]float64{
	"WGS84":     {6378137, 298.257223563},
	"GRS80":     {6378137, 298.257222101},
	"krass":     {6378245, 298.3},
	"bessel":    {6377397.155, 299.1528128},
	"intl":      {6378388, 297},
	"clrk66":    {6378206.4, 294.978698213898},
	"clrk80ign": {6378249.2, 293.466021293627},
	"sphere":    {6370997, 0},
}

// geocentricDatums 与WGS84视为一致（不做基准转换）的基准面
var geocentricDatums = map[string]bool{
	"":         true,
	"WGS84":    true,
	"NAD83":    true,
	"ETRS89":   true,
	"CGCS2000": true,
}

// datumShifts 以七参数定义的基准面
var datumShifts = map[string][]float64{
	"potsdam":  {598.1, 73.7, 418.2, 0.202, 0.045, -2.455, 6.7},
	"carthage": {-263.0, 6.0, 431.0},
}

const wgs84Proj4 = "+proj=longlat +datum=WGS84 +no_defs"

func (s *SpatialReference) ellipsoidParams() (a, rf float64) {
	if s.a > 0 {
		return s.a, s.rf
	}
	if e, ok := ellipsoids[s.ellps]; ok {
		return e[0], e[1]
	}
	return ellipsoids["WGS84"][0], ellipsoids["WGS84"][1]
}

// shiftToWGS84 基准转换参数，nil表示不做基准转换
func (s *SpatialReference) shiftToWGS84() ([]float64, error) {
	for _, v := range s.towgs84 {
		if v != 0 {
			return s.towgs84, nil
		}
	}
	if s.grids != "" && s.grids != "@null" {
		return nil, fmt.Errorf("%w: 需要格网转换 %s", ErrUnsupportedProjection, s.grids)
	}
	if shift, ok := datumShifts[s.datum]; ok {
		return shift, nil
	}
	if !geocentricDatums[s.datum] {
		return nil, fmt.Errorf("%w: 基准面 %s", ErrUnsupportedProjection, s.datum)
	}
	return nil, nil
}

// engineProj4 交给投影库的参数串：椭球以a/rf给出，长度单位为米
func (s *SpatialReference) engineProj4(shift []float64) string {
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	parts := []string{"+proj=" + s.proj}
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
		} else {
			parts = append(parts, "+k_0="+num(s.k0))
		}
		parts = append(parts, "+lon_0="+num(s.lon0), "+x_0="+num(s.x0), "+y_0="+num(s.y0))
	default:
		parts = append(parts, "+lat_0="+num(s.lat0), "+lon_0="+num(s.lon0), "+k_0="+num(s.k0),
			"+x_0="+num(s.x0), "+y_0="+num(s.y0))
	}
	a, rf := s.ellipsoidParams()
	if rf == 0 {
		parts = append(parts, "+a="+num(a), "+b="+num(a))
	} else {
		parts = append(parts, "+a="+num(a), "+rf="+num(rf))
	}
	if len(shift) > 0 {
		vals := make([]string, len(shift))
		for i, v := range shift {
			vals[i] = num(v)
		}
		parts = append(parts, "+towgs84="+strings.Join(vals, ","))
	} else if s.datum == "WGS84" {
		parts = append(parts, "+datum=WGS84")
	}
	return strings.Join(append(parts, "+no_defs"), " ")
}

// projection WGS84经纬度（度）与坐标系平面坐标（米）之间的换算
type projection interface {
	forward(lon, lat float64) (x, y float64, err error)
	inverse(x, y float64) (lon, lat float64, err error)
}

// projection 根据空间参考构造投影
// 正射投影与球体墨卡托在本地计算，其余交给 ctessum/geom/proj
func (s *SpatialReference) projection() (projection, error) {
	if s == nil || (s.kind != SRSGeographic && s.kind != SRSProjected) {
		return nil, fmt.Errorf("%w: 非地理/投影坐标系", ErrUnsupportedProjection)
	}
	shift, err := s.shiftToWGS84()
	if err != nil {
		return nil, err
	}
	a, rf := s.ellipsoidParams()
	switch s.proj {
	case "longlat":
		if shift == nil {
			return lonLatProjection{}, nil
		}
	case "merc":
		if rf == 0 && a == 6378137 && s.latTS == 0 && s.k0 == 1 && s.lon0 == 0 && s.x0 == 0 && s.y0 == 0 && shift == nil {
			return webMercator{}, nil
		}
	case "ortho":
		if shift != nil {
			return nil, fmt.Errorf("%w: 正射投影不支持基准转换", ErrUnsupportedProjection)
		}
		return &orthographic{r: a, lat0: s.lat0 * deg2rad, lon0: s.lon0 * deg2rad, x0: s.x0, y0: s.y0}, nil
	case "utm":
		if s.zone < 1 || s.zone > 60 {
			return nil, fmt.Errorf("%w: UTM带号 %d", ErrUnsupportedProjection, s.zone)
		}
	}
	return newEngineProjection(s.engineProj4(shift))
}

// engineProjection 基于 ctessum/geom/proj 的投影
type engineProjection struct {
	fwd, inv proj.Transformer
}

func newEngineProjection(spec string) (*engineProjection, error) {
	wgs84, err := proj.Parse(wgs84Proj4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedProjection, err)
	}
	sr, err := proj.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedProjection, spec, err)
	}
	fwd, err := wgs84.NewTransform(sr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedProjection, spec, err)
	}
	inv, err := sr.NewTransform(wgs84)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedProjection, spec, err)
	}
	return &engineProjection{fwd: fwd, inv: inv}, nil
}

func (p *engineProjection) forward(lon, lat float64) (float64, float64, error) {
	if math.Abs(lat) > 90 {
		return 0, 0, fmt.Errorf("%w: 纬度 %v 无效", ErrTransformFailed, lat)
	}
	x, y, err := p.fwd(lon, lat)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}
	return x, y, nil
}

func (p *engineProjection) inverse(x, y float64) (float64, float64, error) {
	lon, lat, err := p.inv(x, y)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}
	return lon, lat, nil
}

type lonLatProjection struct{}

func (lonLatProjection) forward(lon, lat float64) (float64, float64, error) { return lon, lat, nil }
func (lonLatProjection) inverse(x, y float64) (float64, float64, error)     { return x, y, nil }

// webMercator EPSG:3857，使用orb/project
type webMercator struct{}

func (webMercator) forward(lon, lat float64) (float64, float64, error) {
	if math.Abs(lat) >= 90 {
		return 0, 0, fmt.Errorf("%w: 纬度 %v 超出墨卡托范围", ErrTransformFailed, lat)
	}
	p := project.WGS84.ToMercator(orb.Point{lon, lat})
	return p[0], p[1], nil
}

func (webMercator) inverse(x, y float64) (float64, float64, error) {
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	return p[0], p[1], nil
}

// orthographic 正射投影（球体，半径取长半轴）
// 投影库没有ortho，这里按Snyder公式计算
type orthographic struct {
	r, lat0, lon0, x0, y0 float64
}

func (o *orthographic) forward(lon, lat float64) (float64, float64, error) {
	phi, lambda := lat*deg2rad, lon*deg2rad
	sinPhi, cosPhi := math.Sincos(phi)
	sin0, cos0 := math.Sincos(o.lat0)
	dl := lambda - o.lon0
	cosc := sin0*sinPhi + cos0*cosPhi*math.Cos(dl)
	if cosc < -1e-10 {
		return 0, 0, fmt.Errorf("%w: 点 (%v, %v) 位于正射投影背面", ErrTransformFailed, lon, lat)
	}
	x := o.r * cosPhi * math.Sin(dl)
	y := o.r * (cos0*sinPhi - sin0*cosPhi*math.Cos(dl))
	return x + o.x0, y + o.y0, nil
}

func (o *orthographic) inverse(x, y float64) (float64, float64, error) {
	x -= o.x0
	y -= o.y0
	rho := math.Hypot(x, y)
	if rho > o.r*(1+1e-12) {
		return 0, 0, fmt.Errorf("%w: 点 (%v, %v) 超出正射投影范围", ErrTransformFailed, x, y)
	}
	if rho < 1e-10 {
		return o.lon0 * rad2deg, o.lat0 * rad2deg, nil
	}
	c := math.Asin(math.Min(1, rho/o.r))
	sinc, cosc := math.Sincos(c)
	sin0, cos0 := math.Sincos(o.lat0)
	phi := math.Asin(cosc*sin0 + y*sinc*cos0/rho)
	lambda := o.lon0 + math.Atan2(x*sinc, rho*cos0*cosc-y*sin0*sinc)
	return lambda * rad2deg, phi * rad2deg, nil
}
