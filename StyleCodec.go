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
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ==================== 解码：样式工具 -> 符号属性 ====================

var dashPatternRe = regexp.MustCompile(`([0-9.]+)([a-z]*) *([0-9.]+)([a-z]*)`)

// 线宽下限（毫米），不大于该值的线宽按 0.1mm 处理
const (
	minPenWidthMM     = 0.01
	defaultPenWidthMM = 0.1
	minDashLength     = 100
)

// applyPenWidth 应用线宽，工具单位须为毫米
func applyPenWidth(tool *StyleTool, line *LineSymbol) {
	width, ok := tool.GetParamDbl("w")
	if !ok {
		return
	}
	if width <= minPenWidthMM {
		width = defaultPenWidthMM
	}
	line.SetLineWidth(width)
}

// applyPenCap 'p' 方头，'r' 圆头，其余保持不变
func applyPenCap(tool *StyleTool, line *LineSymbol) {
	value, ok := tool.GetParamStr("cap")
	if !ok || value == "" {
		return
	}
	switch value[0] {
	case 'p':
		line.Cap = SquareCap
	case 'r':
		line.Cap = RoundCap
	}
}

// applyPenJoin 'b' 斜接，'r' 圆接，其余保持不变
func applyPenJoin(tool *StyleTool, line *LineSymbol) {
	value, ok := tool.GetParamStr("j")
	if !ok || value == "" {
		return
	}
	switch value[0] {
	case 'b':
		line.Join = BevelJoin
	case 'r':
		line.Join = RoundJoin
	}
}

// dashLength 将带单位的虚线长度换算为微米
func dashLength(tool *StyleTool, number, suffix string) (int, bool) {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	if suffix != "" {
		unit, known := ParseStyleUnit(suffix)
		if !known {
			log.Debugf("虚线长度单位未知: %q，按毫米处理", suffix)
		}
		v = tool.ComputeWithUnit(v, unit)
	}
	length := int(math.Round(v * 1000))
	if length < minDashLength {
		length = minDashLength
	}
	return length, true
}

// applyPenPattern 解析形如 "2mm 1mm" 的虚线样式，解析失败时保持实线
func applyPenPattern(tool *StyleTool, line *LineSymbol) {
	pattern, ok := tool.GetParamStr("p")
	if !ok {
		return
	}
	m := dashPatternRe.FindStringSubmatch(pattern)
	if m == nil {
		log.Debugf("无法解析虚线样式 %q", pattern)
		return
	}
	dash, ok0 := dashLength(tool, m[1], m[2])
	gap, ok1 := dashLength(tool, m[3], m[4])
	if !ok0 || !ok1 {
		log.Debugf("无法解析虚线样式 %q", pattern)
		return
	}
	line.Dashed = true
	line.DashLength = dash
	line.BreakLength = gap
}

// ==================== 文字注记描述 ====================
//
// 文字符号被多个要素共享，锚点、角度和文字随符号描述逐要素传递：
// "<100+锚点><角度> <文字>"，读取方须在下一次解析前取走。

// 标注锚点取值范围
const (
	minLabelAnchor = 1
	maxLabelAnchor = 12
)

// labelDescription 组装注记描述
func labelDescription(anchor int, angle float64, text string) string {
	return strconv.Itoa(100+anchor) + strconv.FormatFloat(angle, 'g', -1, 64) + " " + text
}

// clampLabelAnchor 超出 1..12 的锚点按 1 处理
func clampLabelAnchor(anchor int) int {
	if anchor < minLabelAnchor || anchor > maxLabelAnchor {
		return minLabelAnchor
	}
	return anchor
}

// parseLabelDescription 拆解注记描述
func parseLabelDescription(description string) (anchor int, angle float64, text string, ok bool) {
	split := strings.IndexByte(description, ' ')
	if split < 3 {
		return 0, 0, "", false
	}
	anchor, err := strconv.Atoi(description[1:3])
	if err != nil {
		return 0, 0, "", false
	}
	angle, err = strconv.ParseFloat(description[3:split], 64)
	if err != nil {
		angle = 0
	}
	return clampLabelAnchor(anchor), angle, description[split+1:], true
}

var labelControlRe = regexp.MustCompile(`(\\[^;]*;)*`)

// cleanLabelText 去除格式控制串，^I 转为制表符
func cleanLabelText(text string) string {
	text = labelControlRe.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, "^I", "\t")
}

// applyLabelAnchor 锚点 1..12 拆分为垂直 (a-1)/3 与水平 (a-1)%3 对齐
func applyLabelAnchor(anchor int, text *TextObject) {
	anchor = clampLabelAnchor(anchor)
	switch (anchor - 1) / 3 {
	case 0:
		text.VAlign = AlignBaseline
	case 1:
		text.VAlign = AlignVCenter
	case 2:
		text.VAlign = AlignTop
	case 3:
		text.VAlign = AlignBottom
	}
	switch (anchor - 1) % 3 {
	case 0:
		text.HAlign = AlignLeft
	case 1:
		text.HAlign = AlignHCenter
	case 2:
		text.HAlign = AlignRight
	}
}

// ==================== 编码：符号 -> 样式字符串 ====================

// exportDashPattern 导出虚线固定使用的样式
const exportDashPattern = `"2mm 1mm"`

func styleNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func styleLevel(c *MapColor) string {
	return strconv.Itoa(-c.Priority)
}

// MakeStyleString 按符号类型生成样式字符串，不支持的符号返回空串
func MakeStyleString(symbol Symbol) string {
	switch s := symbol.(type) {
	case *PointSymbol:
		return makePointStyleString(s)
	case *LineSymbol:
		return makeLineStyleString(s)
	case *AreaSymbol:
		return makeAreaStyleString(s)
	case *TextSymbol:
		return makeTextStyleString(s)
	case *CombinedSymbol:
		return makeCombinedStyleString(s)
	}
	return ""
}

func makePointStyleString(s *PointSymbol) string {
	c := s.DominantColor()
	if c == nil {
		return ""
	}
	return `SYMBOL(id:"ogr-sym-0",c:` + c.RgbString() + ",l:" + styleLevel(c) + ")"
}

func makeBorderPen(b LineBorder, shift float64) string {
	var sb strings.Builder
	sb.WriteString("PEN(c:" + b.Color.RgbString())
	sb.WriteString(",w:" + styleNumber(float64(b.Width)/1000) + "mm")
	sb.WriteString(",dp:" + styleNumber(shift/1000) + "mm")
	sb.WriteString(",l:" + styleLevel(b.Color))
	if b.Dashed {
		sb.WriteString(",p:" + exportDashPattern)
	}
	sb.WriteString(");")
	return sb.String()
}

func makeLineStyleString(s *LineSymbol) string {
	var sb strings.Builder
	if s.Color != nil && s.LineWidth != 0 {
		sb.WriteString("PEN(c:" + s.Color.RgbString())
		sb.WriteString(",w:" + styleNumber(float64(s.LineWidth)/1000) + "mm")
		if s.Dashed {
			sb.WriteString(",p:" + exportDashPattern)
		}
		sb.WriteString(",l:" + styleLevel(s.Color) + ");")
	}
	if s.HasBorder {
		if s.LeftBorder.IsVisible() {
			sb.WriteString(makeBorderPen(s.LeftBorder, -float64(s.LeftBorder.Shift)))
		}
		if s.RightBorder.IsVisible() {
			sb.WriteString(makeBorderPen(s.RightBorder, float64(s.RightBorder.Shift)))
		}
	}
	if sb.Len() == 0 {
		if c := s.DominantColor(); c != nil {
			sb.WriteString("PEN(c:" + c.RgbString() + ",w:1pt,l:" + styleLevel(c) + ")")
		}
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func makeAreaStyleString(s *AreaSymbol) string {
	var sb strings.Builder
	if s.Color != nil {
		sb.WriteString("BRUSH(fc:" + s.Color.RgbString() + ",l:" + styleLevel(s.Color) + ");")
	}
	for _, pattern := range s.FillPatterns {
		switch pattern.Type {
		case LinePattern:
			if pattern.LineColor == nil {
				continue
			}
			sb.WriteString("BRUSH(fc:" + pattern.LineColor.RgbString())
			sb.WriteString(`,id:"ogr-brush-2"`)
			sb.WriteString(",a:" + styleNumber(pattern.Angle*180/math.Pi))
			sb.WriteString(",l:" + styleLevel(pattern.LineColor) + ");")
		case PointPattern:
			log.Warnf("面符号 %s 的点填充图案无法导出", s.Name)
		}
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func makeTextStyleString(s *TextSymbol) string {
	color := "#000000ff"
	if s.Color != nil {
		color = s.Color.RgbString()
	}
	return "LABEL(c:" + color +
		",f:" + quoteStyleValue(s.FontFamily) +
		",s:" + styleNumber(s.FontSizeMM()) + "mm" +
		`,t:"{Name}")`
}

// makeCombinedStyleString 逆序拼接组成部分，点和文字部分跳过
// 空的部分不参与拼接
func makeCombinedStyleString(s *CombinedSymbol) string {
	var parts []string
	for i := len(s.Parts) - 1; i >= 0; i-- {
		part := s.Parts[i]
		if part == nil {
			continue
		}
		var style string
		switch sub := part.(type) {
		case *LineSymbol:
			style = makeLineStyleString(sub)
		case *AreaSymbol:
			style = makeAreaStyleString(sub)
		case *CombinedSymbol:
			style = makeCombinedStyleString(sub)
		default:
			log.Warnf("组合符号 %s 中的点或文字符号无法导出", s.Name)
		}
		if style != "" {
			parts = append(parts, style)
		}
	}
	return strings.Join(parts, ";")
}
