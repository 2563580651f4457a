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
)

// SpotComponent 专色组成
type SpotComponent struct {
	Color  *MapColor
	Factor float64
}

// MapColor 地图颜色
// Priority 即颜色在地图颜色表中的位置，数值越小越先绘制
type MapColor struct {
	Name            string
	Priority        int
	R, G, B         uint8
	Cmyk            [4]float64
	Opacity         float64
	SpotName        string
	SpotComposition []SpotComponent
}

// NewMapColor 创建不透明颜色
func NewMapColor(name string, priority int) *MapColor {
	return &MapColor{Name: name, Priority: priority, Opacity: 1}
}

// SetRgb 设置RGB
func (c *MapColor) SetRgb(r, g, b uint8) {
	c.R, c.G, c.B = r, g, b
}

// SetCmyk 设置CMYK
func (c *MapColor) SetCmyk(cyan, magenta, yellow, black float64) {
	c.Cmyk = [4]float64{cyan, magenta, yellow, black}
}

// SetRgbFromCmyk 由CMYK推算RGB
func (c *MapColor) SetRgbFromCmyk() {
	k := 1 - c.Cmyk[3]
	c.R = toByte((1 - c.Cmyk[0]) * k)
	c.G = toByte((1 - c.Cmyk[1]) * k)
	c.B = toByte((1 - c.Cmyk[2]) * k)
}

// SetCmykFromRgb 由RGB推算CMYK
func (c *MapColor) SetCmykFromRgb() {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	k := 1 - math.Max(r, math.Max(g, b))
	if k >= 1 {
		c.Cmyk = [4]float64{0, 0, 0, 1}
		return
	}
	c.Cmyk = [4]float64{(1 - r - k) / (1 - k), (1 - g - k) / (1 - k), (1 - b - k) / (1 - k), k}
}

// SetSpotColorComposition 设置专色组成
func (c *MapColor) SetSpotColorComposition(components []SpotComponent) {
	c.SpotComposition = components
}

// SetCmykFromSpotColors 由专色组成推算CMYK
func (c *MapColor) SetCmykFromSpotColors() {
	var cmyk [4]float64
	for _, part := range c.SpotComposition {
		for i := range cmyk {
			cmyk[i] = 1 - (1-cmyk[i])*(1-part.Factor*part.Color.Cmyk[i])
		}
	}
	c.Cmyk = cmyk
}

// SetRgbFromSpotColors 由专色组成推算RGB（白底叠印）
func (c *MapColor) SetRgbFromSpotColors() {
	r, g, b := 1.0, 1.0, 1.0
	for _, part := range c.SpotComposition {
		r *= 1 - part.Factor*(1-float64(part.Color.R)/255)
		g *= 1 - part.Factor*(1-float64(part.Color.G)/255)
		b *= 1 - part.Factor*(1-float64(part.Color.B)/255)
	}
	c.R, c.G, c.B = toByte(r), toByte(g), toByte(b)
}

// RgbString 返回 #RRGGBBAA 形式的颜色串（透明度通道固定为不透明）
func (c *MapColor) RgbString() string {
	return fmt.Sprintf("#%02x%02x%02xff", c.R, c.G, c.B)
}

func toByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
