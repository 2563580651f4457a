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
	"strings"
)

// SymbolType 符号类型（可按位组合）
type SymbolType int

const (
	NoSymbol       SymbolType = 0
	SymbolPoint    SymbolType = 1
	SymbolLine     SymbolType = 2
	SymbolArea     SymbolType = 4
	SymbolText     SymbolType = 8
	SymbolCombined SymbolType = 16
)

func (t SymbolType) String() string {
	switch t {
	case SymbolPoint:
		return "Point"
	case SymbolLine:
		return "Line"
	case SymbolArea:
		return "Area"
	case SymbolText:
		return "Text"
	case SymbolCombined:
		return "Combined"
	}
	return fmt.Sprintf("SymbolType(%d)", int(t))
}

// Symbol 地图符号
type Symbol interface {
	Type() SymbolType
	// ContainedTypes 返回符号包含的全部基本类型
	ContainedTypes() SymbolType
	Common() *SymbolCommon
	// DominantColor 返回主色，没有时返回nil
	DominantColor() *MapColor
	Clone() Symbol
}

// SymbolCommon 符号公共属性
type SymbolCommon struct {
	Name        string
	Description string
	Number      [3]int
	Hidden      bool
	Helper      bool
}

// Common 返回公共属性
func (c *SymbolCommon) Common() *SymbolCommon {
	return c
}

// SetNumberComponent 设置编号分量
func (c *SymbolCommon) SetNumberComponent(i, value int) {
	if i >= 0 && i < len(c.Number) {
		c.Number[i] = value
	}
}

// NumberString 返回形如 "0.1" 的编号
func (c *SymbolCommon) NumberString() string {
	parts := []string{fmt.Sprint(c.Number[0])}
	for _, n := range c.Number[1:] {
		if n < 0 {
			break
		}
		if n == 0 {
			continue
		}
		parts = append(parts, fmt.Sprint(n))
	}
	return strings.Join(parts, ".")
}

// PlainTextName 返回去除标记后的名称
func (c *SymbolCommon) PlainTextName() string {
	name := c.Name
	for {
		start := strings.IndexByte(name, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(name[start:], '>')
		if end < 0 {
			break
		}
		name = name[:start] + name[start+end+1:]
	}
	return strings.TrimSpace(name)
}

// PointSymbol 点符号，尺寸单位为微米
type PointSymbol struct {
	SymbolCommon
	InnerColor  *MapColor
	InnerRadius int
	OuterColor  *MapColor
	OuterWidth  int
	Rotatable   bool
}

func (s *PointSymbol) Type() SymbolType           { return SymbolPoint }
func (s *PointSymbol) ContainedTypes() SymbolType { return SymbolPoint }

func (s *PointSymbol) DominantColor() *MapColor {
	if s.InnerColor != nil && s.InnerRadius > 0 {
		return s.InnerColor
	}
	if s.OuterColor != nil && s.OuterWidth > 0 {
		return s.OuterColor
	}
	return s.InnerColor
}

func (s *PointSymbol) Clone() Symbol {
	c := *s
	return &c
}

// CapStyle 线端样式
type CapStyle int

const (
	FlatCap CapStyle = iota
	RoundCap
	SquareCap
	PointedCap
)

// JoinStyle 线连接样式
type JoinStyle int

const (
	BevelJoin JoinStyle = iota
	MiterJoin
	RoundJoin
)

// LineBorder 线符号边线
type LineBorder struct {
	Color  *MapColor
	Width  int
	Shift  int
	Dashed bool
}

// IsVisible 边线可见
func (b LineBorder) IsVisible() bool {
	return b.Color != nil && b.Width > 0
}

// LineSymbol 线符号，尺寸单位为微米
type LineSymbol struct {
	SymbolCommon
	Color       *MapColor
	LineWidth   int
	Cap         CapStyle
	Join        JoinStyle
	Dashed      bool
	DashLength  int
	BreakLength int
	HasBorder   bool
	LeftBorder  LineBorder
	RightBorder LineBorder
}

func (s *LineSymbol) Type() SymbolType           { return SymbolLine }
func (s *LineSymbol) ContainedTypes() SymbolType { return SymbolLine }

func (s *LineSymbol) DominantColor() *MapColor {
	if s.Color != nil && s.LineWidth > 0 {
		return s.Color
	}
	if s.HasBorder {
		if s.LeftBorder.IsVisible() {
			return s.LeftBorder.Color
		}
		if s.RightBorder.IsVisible() {
			return s.RightBorder.Color
		}
	}
	return s.Color
}

func (s *LineSymbol) Clone() Symbol {
	c := *s
	return &c
}

// SetLineWidth 以毫米设置线宽
func (s *LineSymbol) SetLineWidth(mm float64) {
	s.LineWidth = int(math.Round(mm * 1000))
}

// FillPatternType 填充图案类型
type FillPatternType int

const (
	LinePattern FillPatternType = iota
	PointPattern
)

// FillPattern 面符号填充图案
type FillPattern struct {
	Type        FillPatternType
	Angle       float64 // 弧度
	LineColor   *MapColor
	LineWidth   int
	LineSpacing int
	Point       *PointSymbol
}

// AreaSymbol 面符号
type AreaSymbol struct {
	SymbolCommon
	Color        *MapColor
	FillPatterns []FillPattern
}

func (s *AreaSymbol) Type() SymbolType           { return SymbolArea }
func (s *AreaSymbol) ContainedTypes() SymbolType { return SymbolArea }

func (s *AreaSymbol) DominantColor() *MapColor {
	if s.Color != nil {
		return s.Color
	}
	for _, p := range s.FillPatterns {
		if p.Type == LinePattern && p.LineColor != nil {
			return p.LineColor
		}
	}
	return nil
}

func (s *AreaSymbol) Clone() Symbol {
	c := *s
	c.FillPatterns = append([]FillPattern(nil), s.FillPatterns...)
	return &c
}

// TextSymbol 文字符号，字号单位为微米
type TextSymbol struct {
	SymbolCommon
	Color      *MapColor
	FontFamily string
	FontSize   int
}

func (s *TextSymbol) Type() SymbolType           { return SymbolText }
func (s *TextSymbol) ContainedTypes() SymbolType { return SymbolText }
func (s *TextSymbol) DominantColor() *MapColor   { return s.Color }

func (s *TextSymbol) Clone() Symbol {
	c := *s
	return &c
}

// FontSizeMM 返回毫米字号
func (s *TextSymbol) FontSizeMM() float64 {
	return float64(s.FontSize) / 1000
}

// Scale 按比例缩放
func (s *TextSymbol) Scale(factor float64) {
	s.FontSize = int(math.Round(float64(s.FontSize) * factor))
}

// CombinedSymbol 组合符号
type CombinedSymbol struct {
	SymbolCommon
	Parts []Symbol
}

func (s *CombinedSymbol) Type() SymbolType { return SymbolCombined }

func (s *CombinedSymbol) ContainedTypes() SymbolType {
	var t SymbolType
	for _, part := range s.Parts {
		if part != nil {
			t |= part.ContainedTypes()
		}
	}
	return t
}

func (s *CombinedSymbol) DominantColor() *MapColor {
	var best *MapColor
	for _, part := range s.Parts {
		if part == nil {
			continue
		}
		if c := part.DominantColor(); c != nil && (best == nil || c.Priority < best.Priority) {
			best = c
		}
	}
	return best
}

func (s *CombinedSymbol) Clone() Symbol {
	c := *s
	c.Parts = append([]Symbol(nil), s.Parts...)
	return &c
}

// NewDefaultTextSymbol 创建默认文字符号（Arial 4mm）
func NewDefaultTextSymbol() *TextSymbol {
	return &TextSymbol{FontFamily: "Arial", FontSize: 4000}
}

// LessByColorPriority 按主色优先级排序，无颜色的符号排在最后
func LessByColorPriority(a, b Symbol) bool {
	ca, cb := a.DominantColor(), b.DominantColor()
	switch {
	case ca == nil:
		return false
	case cb == nil:
		return true
	}
	return ca.Priority < cb.Priority
}
