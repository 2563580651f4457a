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
	"strconv"
)

// SessionDefaults 一次导入会话的默认颜色与符号，会话开始时创建，之后不再替换
type SessionDefaults struct {
	PenColor   *MapColor
	BrushColor *MapColor
	Point      *PointSymbol
	Line       *LineSymbol
	Area       *AreaSymbol
	Text       *TextSymbol
}

// newSessionDefaults 向地图添加默认调色板（紫色与40%紫色）和四个默认符号
func newSessionDefaults(m *Map) *SessionDefaults {
	d := &SessionDefaults{}

	d.PenColor = NewMapColor("Purple", 0)
	d.PenColor.SpotName = "PURPLE"
	d.PenColor.SetCmyk(0.35, 0.85, 0, 0)
	d.PenColor.SetRgbFromCmyk()
	m.AddColor(d.PenColor, 0)

	d.BrushColor = NewMapColor("Purple 40%", 0)
	d.BrushColor.SetSpotColorComposition([]SpotComponent{{Color: d.PenColor, Factor: 0.8}})
	d.BrushColor.SetCmykFromSpotColors()
	d.BrushColor.SetRgbFromSpotColors()
	d.BrushColor.Opacity = 0.5
	m.AddColor(d.BrushColor, 1)

	d.Point = &PointSymbol{InnerColor: d.PenColor, InnerRadius: 200}
	d.Point.Name = "Point"
	d.Point.SetNumberComponent(0, 0)
	d.Point.SetNumberComponent(1, 1)
	d.Point.SetNumberComponent(2, -1)
	m.AddSymbol(d.Point, 0)

	d.Line = &LineSymbol{Color: d.PenColor, Cap: FlatCap, Join: MiterJoin}
	d.Line.Name = "Line"
	d.Line.SetLineWidth(0.1)
	d.Line.SetNumberComponent(0, 0)
	d.Line.SetNumberComponent(1, 2)
	d.Line.SetNumberComponent(2, -1)
	m.AddSymbol(d.Line, 1)

	d.Area = &AreaSymbol{Color: d.BrushColor}
	d.Area.Name = "Area"
	d.Area.SetNumberComponent(0, 0)
	d.Area.SetNumberComponent(1, 3)
	d.Area.SetNumberComponent(2, -1)
	m.AddSymbol(d.Area, 2)

	d.Text = NewDefaultTextSymbol()
	d.Text.Color = d.PenColor
	d.Text.Name = "Text"
	d.Text.SetNumberComponent(0, 0)
	d.Text.SetNumberComponent(1, 4)
	d.Text.SetNumberComponent(2, -1)
	m.AddSymbol(d.Text, 3)

	return d
}

// StyleCache 样式字符串到符号的缓存（按点、线、面、文字分类）
//
// 同一会话内相同样式字符串只产生一个符号；新符号立即追加到地图符号表。
// 点与文字共用点缓存，文字符号另按"颜色+字号"缓存。
type StyleCache struct {
	m        *Map
	defaults *SessionDefaults
	manager  *StyleManager
	scale    float64

	point  map[string]Symbol
	line   map[string]Symbol
	area   map[string]Symbol
	text   map[string]Symbol
	colors map[string]*MapColor
}

// NewStyleCache 创建样式缓存，table用于解析 "@名称" 形式的样式引用
func NewStyleCache(m *Map, defaults *SessionDefaults, table *StyleTable) *StyleCache {
	return &StyleCache{
		m:        m,
		defaults: defaults,
		manager:  NewStyleManager(table),
		scale:    float64(m.ScaleDenominator()),
		point:    map[string]Symbol{},
		line:     map[string]Symbol{},
		area:     map[string]Symbol{},
		text:     map[string]Symbol{},
		colors:   map[string]*MapColor{},
	}
}

// Resolve 为指定类型和样式字符串返回符号，无法构造时返回会话默认符号
func (c *StyleCache) Resolve(kind SymbolType, style string) Symbol {
	switch kind {
	case SymbolPoint, SymbolText:
		if s, ok := c.point[style]; ok {
			return s
		}
		if s := c.symbolForPointGeometry(style); s != nil {
			return s
		}
		return c.defaults.Point
	case SymbolLine:
		if s, ok := c.line[style]; ok {
			return s
		}
		if s := c.lineSymbol(style); s != nil {
			return s
		}
		return c.defaults.Line
	case SymbolArea:
		if s, ok := c.area[style]; ok {
			return s
		}
		if s := c.areaSymbol(style); s != nil {
			return s
		}
		return c.defaults.Area
	}
	return nil
}

// Len 某类缓存的键数量
func (c *StyleCache) Len(kind SymbolType) int {
	switch kind {
	case SymbolPoint:
		return len(c.point)
	case SymbolLine:
		return len(c.line)
	case SymbolArea:
		return len(c.area)
	case SymbolText:
		return len(c.text)
	}
	return 0
}

// insert 以原始样式串登记符号，工具规范串不同时再登记一次
func (c *StyleCache) insert(cache map[string]Symbol, key, toolKey string, s Symbol) {
	cache[key] = s
	if toolKey != key {
		cache[toolKey] = s
	}
}

// addSymbol 追加到地图符号表末尾
func (c *StyleCache) addSymbol(s Symbol) {
	c.m.AddSymbol(s, c.m.SymbolCount())
}

// tools 解析样式字符串并依次回调各工具，回调返回非nil时停止
func (c *StyleCache) tools(style string, fn func(tool *StyleTool) Symbol) Symbol {
	if style == "" {
		return nil
	}
	if !c.manager.InitStyleString(style) {
		return nil
	}
	for i := 0; i < c.manager.GetPartCount(); i++ {
		tool := c.manager.GetPart(i)
		if tool == nil {
			continue
		}
		tool.SetUnit(OGRSTUMM, c.scale)
		if s := fn(tool); s != nil {
			return s
		}
	}
	return nil
}

func (c *StyleCache) symbolForPointGeometry(style string) Symbol {
	return c.tools(style, func(tool *StyleTool) Symbol {
		switch tool.GetType() {
		case OGRSTCBrush, OGRSTCPen, OGRSTCSymbol:
			if s := c.symbolForOgrSymbol(tool, style); s != nil {
				return s
			}
		case OGRSTCLabel:
			if s := c.symbolForLabel(tool); s != nil {
				return s
			}
		}
		return nil
	})
}

func (c *StyleCache) lineSymbol(style string) Symbol {
	return c.tools(style, func(tool *StyleTool) Symbol {
		if tool.GetType() == OGRSTCPen {
			return c.symbolForPen(tool, style)
		}
		return nil
	})
}

func (c *StyleCache) areaSymbol(style string) Symbol {
	return c.tools(style, func(tool *StyleTool) Symbol {
		if tool.GetType() == OGRSTCBrush {
			return c.symbolForBrush(tool, style)
		}
		return nil
	})
}

// symbolForOgrSymbol 由PEN、BRUSH或SYMBOL工具构造点符号
// SYMBOL的角度写入符号描述，供点对象读取旋转
func (c *StyleCache) symbolForOgrSymbol(tool *StyleTool, style string) *PointSymbol {
	toolKey := tool.GetStyleString()
	if s, ok := c.point[toolKey].(*PointSymbol); ok {
		c.point[style] = s
		return s
	}

	var colorKey string
	switch tool.GetType() {
	case OGRSTCBrush:
		colorKey = "fc"
	case OGRSTCPen, OGRSTCSymbol:
		colorKey = "c"
	default:
		return nil
	}
	colorString, ok := tool.GetParamStr(colorKey)
	if !ok {
		return nil
	}

	symbol := c.defaults.Point.Clone().(*PointSymbol)
	if color := c.makeColor(colorString); color != nil {
		symbol.InnerColor = color
	} else {
		symbol.Hidden = true
	}
	c.insert(c.point, style, toolKey, symbol)
	c.addSymbol(symbol)

	if tool.GetType() == OGRSTCSymbol {
		if angle, ok := tool.GetParamDbl("a"); ok {
			symbol.Description = strconv.FormatFloat(angle, 'f', 2, 64)
			symbol.Rotatable = true
		}
	}
	return symbol
}

// symbolForLabel 由LABEL工具构造文字符号
// 样式串中含有注记文字，因此按"颜色+字号"缓存；锚点、角度与文字写入符号描述
func (c *StyleCache) symbolForLabel(tool *StyleTool) *TextSymbol {
	label, ok := tool.GetParamStr("t")
	if !ok {
		return nil
	}
	colorString, _ := tool.GetParamStr("c")
	sizeString, _ := tool.GetParamStr("s")

	key := colorString + sizeString
	symbol, _ := c.text[key].(*TextSymbol)
	if symbol == nil {
		symbol = c.defaults.Text.Clone().(*TextSymbol)
		if color := c.makeColor(colorString); color != nil {
			symbol.Color = color
		} else {
			symbol.Hidden = true
		}
		if size, ok := tool.GetParamDbl("s"); ok && size > 0 && symbol.FontSize > 0 {
			symbol.Scale(size / symbol.FontSizeMM())
		}
		c.text[key] = symbol
		c.addSymbol(symbol)
	}

	anchor := minLabelAnchor
	if a, ok := tool.GetParamNum("p"); ok {
		anchor = clampLabelAnchor(a)
	}
	angle, ok := tool.GetParamDbl("a")
	if !ok {
		angle = 0
	}
	symbol.Description = labelDescription(anchor, angle, label)
	return symbol
}

// symbolForPen 由PEN工具构造线符号
func (c *StyleCache) symbolForPen(tool *StyleTool, style string) *LineSymbol {
	toolKey := tool.GetStyleString()
	if s, ok := c.line[toolKey].(*LineSymbol); ok {
		c.line[style] = s
		return s
	}

	symbol := c.defaults.Line.Clone().(*LineSymbol)
	if colorString, ok := tool.GetParamStr("c"); ok {
		if color := c.makeColor(colorString); color != nil {
			symbol.Color = color
		} else {
			symbol.Hidden = true
		}
	}
	applyPenWidth(tool, symbol)
	applyPenCap(tool, symbol)
	applyPenJoin(tool, symbol)
	applyPenPattern(tool, symbol)

	c.insert(c.line, style, toolKey, symbol)
	c.addSymbol(symbol)
	return symbol
}

// symbolForBrush 由BRUSH工具构造面符号
func (c *StyleCache) symbolForBrush(tool *StyleTool, style string) *AreaSymbol {
	toolKey := tool.GetStyleString()
	if s, ok := c.area[toolKey].(*AreaSymbol); ok {
		c.area[style] = s
		return s
	}

	symbol := c.defaults.Area.Clone().(*AreaSymbol)
	if colorString, ok := tool.GetParamStr("fc"); ok {
		if color := c.makeColor(colorString); color != nil {
			symbol.Color = color
		} else {
			symbol.Hidden = true
		}
	}

	c.insert(c.area, style, toolKey, symbol)
	c.addSymbol(symbol)
	return symbol
}

// makeColor 按颜色串缓存颜色：解析失败返回默认线色，完全透明返回nil
func (c *StyleCache) makeColor(colorString string) *MapColor {
	if color, ok := c.colors[colorString]; ok {
		return color
	}
	var color *MapColor
	r, g, b, a, ok := parseStyleColor(colorString)
	switch {
	case !ok:
		color = c.defaults.PenColor
	case a > 0:
		color = NewMapColor(colorString, c.m.ColorCount())
		color.SetRgb(uint8(r), uint8(g), uint8(b))
		color.SetCmykFromRgb()
		c.m.AddColor(color, c.m.ColorCount())
	}
	c.colors[colorString] = color
	return color
}
