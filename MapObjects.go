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
	"math"
)

// MapCoordF 地图坐标（毫米，Y轴向下）
type MapCoordF struct {
	X, Y float64
}

// CoordFlag 坐标点标记
type CoordFlag uint8

const (
	ClosePoint CoordFlag = 1 << iota
	HolePoint
)

// MapCoord 地图内部坐标，单位为微米
type MapCoord struct {
	X, Y  int64
	Flags CoordFlag
}

// NewMapCoord 由毫米坐标创建内部坐标
func NewMapCoord(p MapCoordF) MapCoord {
	return MapCoord{X: int64(math.Round(p.X * 1000)), Y: int64(math.Round(p.Y * 1000))}
}

// F 返回毫米坐标
func (c MapCoord) F() MapCoordF {
	return MapCoordF{X: float64(c.X) / 1000, Y: float64(c.Y) / 1000}
}

// SamePosition 位置相同（忽略标记）
func (c MapCoord) SamePosition(o MapCoord) bool {
	return c.X == o.X && c.Y == o.Y
}

// ObjectType 地图对象类型
type ObjectType int

const (
	PointObjectType ObjectType = iota
	PathObjectType
	TextObjectType
)

// Object 地图对象
type Object interface {
	Type() ObjectType
	Symbol() Symbol
	SetSymbol(s Symbol)
	Tags() *Tags
}

// Tags 有序的字符串标签
type Tags struct {
	keys   []string
	values map[string]string
}

// Get 读取标签
func (t *Tags) Get(key string) (string, bool) {
	if t.values == nil {
		return "", false
	}
	v, ok := t.values[key]
	return v, ok
}

// Value 读取标签，不存在时返回空串
func (t *Tags) Value(key string) string {
	v, _ := t.Get(key)
	return v
}

// InsertOrAssign 写入标签，已存在时覆盖
func (t *Tags) InsertOrAssign(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Has 标签是否存在
func (t *Tags) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Len 标签数量
func (t *Tags) Len() int {
	return len(t.keys)
}

// Keys 按插入顺序返回标签名
func (t *Tags) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Merge 将other中的标签覆盖写入t
func (t *Tags) Merge(other *Tags) {
	for _, k := range other.keys {
		t.InsertOrAssign(k, other.values[k])
	}
}

type objectBase struct {
	symbol Symbol
	tags   Tags
}

func (o *objectBase) Symbol() Symbol     { return o.symbol }
func (o *objectBase) SetSymbol(s Symbol) { o.symbol = s }
func (o *objectBase) Tags() *Tags        { return &o.tags }

// PointObject 点对象
type PointObject struct {
	objectBase
	Coord    MapCoord
	Rotation float64 // 弧度
}

// NewPointObject 创建点对象
func NewPointObject(symbol Symbol) *PointObject {
	return &PointObject{objectBase: objectBase{symbol: symbol}}
}

func (o *PointObject) Type() ObjectType { return PointObjectType }

// SetPosition 设置位置
func (o *PointObject) SetPosition(p MapCoordF) {
	o.Coord = NewMapCoord(p)
}

// HorizontalAlignment 文字水平对齐
type HorizontalAlignment int

const (
	AlignLeft HorizontalAlignment = iota
	AlignHCenter
	AlignRight
)

// VerticalAlignment 文字垂直对齐
type VerticalAlignment int

const (
	AlignBaseline VerticalAlignment = iota
	AlignVCenter
	AlignTop
	AlignBottom
)

// TextObject 文字对象
type TextObject struct {
	objectBase
	Anchor   MapCoord
	Text     string
	HAlign   HorizontalAlignment
	VAlign   VerticalAlignment
	Rotation float64 // 弧度
}

// NewTextObject 创建文字对象
func NewTextObject(symbol Symbol) *TextObject {
	return &TextObject{objectBase: objectBase{symbol: symbol}, HAlign: AlignHCenter, VAlign: AlignVCenter}
}

func (o *TextObject) Type() ObjectType { return TextObjectType }

// SetAnchorPosition 设置锚点
func (o *TextObject) SetAnchorPosition(p MapCoordF) {
	o.Anchor = NewMapCoord(p)
}

// PathPart 路径的一个部分
type PathPart struct {
	Coords []MapCoord
	Closed bool
}

// PathObject 线/面对象
type PathObject struct {
	objectBase
	Parts []*PathPart
}

// NewPathObject 创建路径对象
func NewPathObject(symbol Symbol) *PathObject {
	return &PathObject{objectBase: objectBase{symbol: symbol}}
}

func (o *PathObject) Type() ObjectType { return PathObjectType }

// AddCoordinate 追加坐标，newPart为true时开始新的部分
func (o *PathObject) AddCoordinate(c MapCoord, newPart bool) {
	if newPart || len(o.Parts) == 0 {
		if len(o.Parts) > 0 {
			c.Flags |= HolePoint
		}
		o.Parts = append(o.Parts, &PathPart{})
	}
	part := o.Parts[len(o.Parts)-1]
	part.Coords = append(part.Coords, c)
}

// CloseAllParts 闭合全部部分
func (o *PathObject) CloseAllParts() {
	for _, part := range o.Parts {
		n := len(part.Coords)
		if n < 2 || part.Closed {
			continue
		}
		if !part.Coords[0].SamePosition(part.Coords[n-1]) {
			part.Coords = append(part.Coords, MapCoord{X: part.Coords[0].X, Y: part.Coords[0].Y})
		}
		part.Coords[len(part.Coords)-1].Flags |= ClosePoint
		part.Closed = true
	}
}

// CoordinateCount 坐标总数
func (o *PathObject) CoordinateCount() int {
	n := 0
	for _, part := range o.Parts {
		n += len(part.Coords)
	}
	return n
}

// Bound 返回路径的外包矩形（毫米）
func (o *PathObject) Bound() (min, max MapCoordF, ok bool) {
	first := true
	for _, part := range o.Parts {
		for _, c := range part.Coords {
			p := c.F()
			if first {
				min, max, first = p, p, false
				continue
			}
			min.X, min.Y = math.Min(min.X, p.X), math.Min(min.Y, p.Y)
			max.X, max.Y = math.Max(max.X, p.X), math.Max(max.Y, p.Y)
		}
	}
	return min, max, !first
}
