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

// CoordinateTransformation 坐标转换
type CoordinateTransformation struct {
	src, dst  *SpatialReference
	inv, fwd  projection
	identity  bool
	srcFactor float64
	dstFactor float64
}

// NewCoordinateTransformation 创建从src到dst的坐标转换
// 本地坐标系只能与相同的本地坐标系互相转换
func NewCoordinateTransformation(src, dst *SpatialReference) (*CoordinateTransformation, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: 空间参考为空", ErrNoTransformation)
	}
	ct := &CoordinateTransformation{src: src, dst: dst, srcFactor: 1, dstFactor: 1}
	if src.IsLocal() || dst.IsLocal() {
		if src.IsLocal() && dst.IsLocal() && src.IsSame(dst) {
			ct.identity = true
			return ct, nil
		}
		return nil, fmt.Errorf("%w: 本地坐标系 %q 与 %q 之间无法转换", ErrNoTransformation, src.Name(), dst.Name())
	}
	inv, err := src.projection()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTransformation, err)
	}
	fwd, err := dst.projection()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTransformation, err)
	}
	ct.inv, ct.fwd = inv, fwd
	if src.IsProjected() {
		ct.srcFactor = src.toMeter
	}
	if dst.IsProjected() {
		ct.dstFactor = dst.toMeter
	}
	ct.identity = src.IsSame(dst)
	return ct, nil
}

// Source 源空间参考
func (ct *CoordinateTransformation) Source() *SpatialReference {
	return ct.src
}

// Target 目标空间参考
func (ct *CoordinateTransformation) Target() *SpatialReference {
	return ct.dst
}

// Destroy 释放转换
func (ct *CoordinateTransformation) Destroy() {
	ct.inv, ct.fwd = nil, nil
}

// Transform 转换单个点
func (ct *CoordinateTransformation) Transform(x, y float64) (float64, float64, error) {
	if ct.identity {
		return x, y, nil
	}
	if ct.inv == nil || ct.fwd == nil {
		return 0, 0, fmt.Errorf("%w: 转换已释放", ErrTransformFailed)
	}
	lon, lat, err := ct.inv.inverse(x*ct.srcFactor, y*ct.srcFactor)
	if err != nil {
		return 0, 0, err
	}
	px, py, err := ct.fwd.forward(lon, lat)
	if err != nil {
		return 0, 0, err
	}
	px, py = px/ct.dstFactor, py/ct.dstFactor
	if math.IsNaN(px) || math.IsNaN(py) || math.IsInf(px, 0) || math.IsInf(py, 0) {
		return 0, 0, fmt.Errorf("%w: 结果无效 (%v, %v)", ErrTransformFailed, x, y)
	}
	return px, py, nil
}

// TransformPoints 转换一组点，任一点失败时不修改输入
func (ct *CoordinateTransformation) TransformPoints(points []orb.Point) error {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		x, y, err := ct.Transform(p[0], p[1])
		if err != nil {
			return err
		}
		out[i] = orb.Point{x, y}
	}
	copy(points, out)
	return nil
}
