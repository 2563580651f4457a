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
)

// GeorefState 地理参考状态
type GeorefState int

const (
	GeorefLocal GeorefState = iota
	GeorefGeospatial
)

// Georeferencing 地图坐标（毫米）与投影坐标（米）之间的关系
//
// 地图坐标X向右、Y向下；投影坐标X向东、Y向北。
// 地图北方向相对格网北顺时针偏转 Grivation 度。
type Georeferencing struct {
	State               GeorefState
	ScaleDenominator    int
	CombinedScaleFactor float64
	Declination         float64 // 磁偏角（度）
	Grivation           float64 // 磁北与格网北夹角（度）
	MapRefPoint         MapCoordF
	ProjectedRefPoint   orb.Point
	GeographicRefPoint  orb.Point // 经度, 纬度
	ProjectedCRSId      string
	ProjectedCRSSpec    string
}

// NewGeoreferencing 创建本地地理参考，比例尺 1:1000
func NewGeoreferencing() *Georeferencing {
	return &Georeferencing{
		State:               GeorefLocal,
		ScaleDenominator:    1000,
		CombinedScaleFactor: 1,
	}
}

// Clone 复制
func (g *Georeferencing) Clone() *Georeferencing {
	c := *g
	return &c
}

// IsLocal 仅本地参考
func (g *Georeferencing) IsLocal() bool {
	return g.State == GeorefLocal
}

// SetScaleDenominator 设置比例尺分母
func (g *Georeferencing) SetScaleDenominator(d int) {
	if d > 0 {
		g.ScaleDenominator = d
	}
}

// SetCombinedScaleFactor 设置综合比例因子
func (g *Georeferencing) SetCombinedScaleFactor(f float64) {
	if f > 0 {
		g.CombinedScaleFactor = f
	}
}

// SetProjectedCRS 设置投影坐标系，spec为proj4参数串
// spec为空时回到本地状态
func (g *Georeferencing) SetProjectedCRS(id, spec string) error {
	if spec == "" {
		g.State = GeorefLocal
		g.ProjectedCRSId, g.ProjectedCRSSpec = id, ""
		return nil
	}
	srs := NewSpatialReference()
	if err := srs.ImportFromProj4(spec); err != nil {
		return fmt.Errorf("无效的投影坐标系 %q: %w", spec, err)
	}
	if _, err := srs.projection(); err != nil {
		return fmt.Errorf("无效的投影坐标系 %q: %w", spec, err)
	}
	g.State = GeorefGeospatial
	g.ProjectedCRSId, g.ProjectedCRSSpec = id, spec
	g.updateGeographicRefPoint()
	return nil
}

// SpatialReference 返回投影坐标系对应的空间参考，本地状态返回nil
func (g *Georeferencing) SpatialReference() *SpatialReference {
	if g.State != GeorefGeospatial {
		return nil
	}
	srs := NewSpatialReference()
	srs.SetProjCS("Projected map SRS")
	srs.SetWellKnownGeogCS("WGS84")
	if err := srs.ImportFromProj4(g.ProjectedCRSSpec); err != nil {
		return nil
	}
	return srs
}

// SetMapRefPoint 设置地图参考点
func (g *Georeferencing) SetMapRefPoint(p MapCoordF) {
	g.MapRefPoint = p
}

// SetProjectedRefPoint 设置投影参考点，updateGrivation为true时保持磁偏角并重算格网偏角
func (g *Georeferencing) SetProjectedRefPoint(p orb.Point, updateGrivation bool) {
	g.ProjectedRefPoint = p
	g.updateGeographicRefPoint()
	if updateGrivation {
		g.Grivation = g.Declination - g.Convergence()
	}
}

// SetDeclination 设置磁偏角，格网偏角随之更新
func (g *Georeferencing) SetDeclination(d float64) {
	g.Declination = d
	g.Grivation = d - g.Convergence()
}

// SetGrivation 设置格网偏角，磁偏角随之更新
func (g *Georeferencing) SetGrivation(d float64) {
	g.Grivation = d
	g.Declination = d + g.Convergence()
}

// Convergence 参考点处的子午线收敛角（度）
func (g *Georeferencing) Convergence() float64 {
	if g.State != GeorefGeospatial {
		return 0
	}
	srs := g.SpatialReference()
	if srs == nil {
		return 0
	}
	proj, err := srs.projection()
	if err != nil {
		return 0
	}
	lon, lat := g.GeographicRefPoint[0], g.GeographicRefPoint[1]
	x0, y0, err0 := proj.forward(lon, lat)
	x1, y1, err1 := proj.forward(lon, lat+0.001)
	if err0 != nil || err1 != nil {
		return 0
	}
	return math.Atan2(x1-x0, y1-y0) * 180 / math.Pi
}

func (g *Georeferencing) updateGeographicRefPoint() {
	if g.State != GeorefGeospatial {
		return
	}
	srs := g.SpatialReference()
	if srs == nil {
		return
	}
	proj, err := srs.projection()
	if err != nil {
		return
	}
	lon, lat, err := proj.inverse(g.ProjectedRefPoint[0]*srs.toMeter, g.ProjectedRefPoint[1]*srs.toMeter)
	if err == nil {
		g.GeographicRefPoint = orb.Point{lon, lat}
	}
}

func (g *Georeferencing) factor() float64 {
	return float64(g.ScaleDenominator) * g.CombinedScaleFactor / 1000
}

// ToProjectedCoords 地图坐标转投影坐标
func (g *Georeferencing) ToProjectedCoords(p MapCoordF) orb.Point {
	f := g.factor()
	dx := (p.X - g.MapRefPoint.X) * f
	dy := -(p.Y - g.MapRefPoint.Y) * f
	s, c := math.Sincos(g.Grivation * math.Pi / 180)
	return orb.Point{
		g.ProjectedRefPoint[0] + dx*c + dy*s,
		g.ProjectedRefPoint[1] - dx*s + dy*c,
	}
}

// ToMapCoordF 投影坐标转地图坐标
func (g *Georeferencing) ToMapCoordF(p orb.Point) MapCoordF {
	f := g.factor()
	e := p[0] - g.ProjectedRefPoint[0]
	n := p[1] - g.ProjectedRefPoint[1]
	s, c := math.Sincos(g.Grivation * math.Pi / 180)
	dx := e*c - n*s
	dy := e*s + n*c
	return MapCoordF{
		X: g.MapRefPoint.X + dx/f,
		Y: g.MapRefPoint.Y - dy/f,
	}
}
