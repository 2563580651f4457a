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
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// UnitType 无空间参考数据的坐标单位
type UnitType int

const (
	// UnitOnGround 地面单位（米），经地图地理参考换算
	UnitOnGround UnitType = iota
	// UnitOnPaper 图纸单位（毫米），Y轴翻转
	UnitOnPaper
)

// CoordinateTransformPipeline 要素空间参考到地图坐标的转换管线
//
// 缓存的转换只在源空间参考句柄（按指针）变化时重建。
type CoordinateTransformPipeline struct {
	georef   *Georeferencing
	target   *SpatialReference
	unitType UnitType

	source *SpatialReference
	ct     *CoordinateTransformation
	toMap  func(x, y float64) MapCoord

	// Rebuilds 成功重建转换的次数
	Rebuilds int
	// NoTransformation 无法建立转换的次数
	NoTransformation int
}

// NewCoordinateTransformPipeline 创建转换管线，target为本次导入的目标空间参考
func NewCoordinateTransformPipeline(target *SpatialReference, georef *Georeferencing, unitType UnitType) *CoordinateTransformPipeline {
	p := &CoordinateTransformPipeline{georef: georef, target: target, unitType: unitType}
	p.toMap = p.fromProjected
	return p
}

// Target 目标空间参考
func (p *CoordinateTransformPipeline) Target() *SpatialReference {
	return p.target
}

// SetReference 切换当前要素的空间参考
// srs为nil时直接换算坐标（图纸单位翻转Y轴）；无法建立转换时返回false
func (p *CoordinateTransformPipeline) SetReference(srs *SpatialReference) bool {
	p.toMap = p.fromProjected
	switch {
	case srs != nil && srs != p.source:
		ct, err := NewCoordinateTransformation(srs, p.target)
		if err != nil {
			log.Debugf("无法建立坐标转换: %v", err)
			p.NoTransformation++
			return false
		}
		if p.ct != nil {
			p.ct.Destroy()
		}
		p.source, p.ct = srs, ct
		p.Rebuilds++
	case srs == nil && p.unitType == UnitOnPaper:
		p.toMap = p.fromDrawing
	}
	return true
}

// Transform 用缓存的转换原地转换几何，失败时几何保持不变
func (p *CoordinateTransformPipeline) Transform(geom *OGRGeometry) error {
	return geom.Transform(p.ct)
}

// ToMap 将(已转换的)坐标换算为地图坐标
func (p *CoordinateTransformPipeline) ToMap(x, y float64) MapCoord {
	return p.toMap(x, y)
}

// Close 释放缓存的转换
func (p *CoordinateTransformPipeline) Close() {
	if p.ct != nil {
		p.ct.Destroy()
		p.ct = nil
	}
	p.source = nil
}

func (p *CoordinateTransformPipeline) fromDrawing(x, y float64) MapCoord {
	return NewMapCoord(MapCoordF{X: x, Y: -y})
}

func (p *CoordinateTransformPipeline) fromProjected(x, y float64) MapCoord {
	return NewMapCoord(p.georef.ToMapCoordF(orb.Point{x, y}))
}
