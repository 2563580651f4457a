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
	"strings"
	"testing"
)

// penTool 解析单个PEN工具，单位设为毫米
func penTool(t *testing.T, style string) *StyleTool {
	t.Helper()
	m := NewStyleManager(nil)
	if !m.InitStyleString(style) {
		t.Fatalf("InitStyleString(%q) failed", style)
	}
	tool := m.GetPart(0)
	tool.SetUnit(OGRSTUMM, 1000)
	return tool
}

func TestApplyPenWidth(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"PEN(w:0.5mm)", 500},
		{"PEN(w:0.01mm)", 100},
		{"PEN(w:0)", 100},
		{"PEN(w:2)", 2000},
		{"PEN(c:#000000)", 123},
	}
	for _, tt := range tests {
		line := &LineSymbol{LineWidth: 123}
		applyPenWidth(penTool(t, tt.style), line)
		if line.LineWidth != tt.want {
			t.Errorf("%s: LineWidth = %d, want %d", tt.style, line.LineWidth, tt.want)
		}
	}
}

func TestApplyPenCapJoin(t *testing.T) {
	tests := []struct {
		style string
		cap   CapStyle
		join  JoinStyle
	}{
		{`PEN(cap:p,j:b)`, SquareCap, BevelJoin},
		{`PEN(cap:r,j:r)`, RoundCap, RoundJoin},
		{`PEN(cap:b,j:m)`, FlatCap, MiterJoin},
	}
	for _, tt := range tests {
		line := &LineSymbol{Cap: FlatCap, Join: MiterJoin}
		tool := penTool(t, tt.style)
		applyPenCap(tool, line)
		applyPenJoin(tool, line)
		if line.Cap != tt.cap || line.Join != tt.join {
			t.Errorf("%s: cap=%v join=%v", tt.style, line.Cap, line.Join)
		}
	}
}

func TestApplyPenPattern(t *testing.T) {
	tests := []struct {
		style       string
		dashed      bool
		dash, space int
	}{
		{`PEN(p:"2mm 1mm")`, true, 2000, 1000},
		{`PEN(p:"0.01mm 0.05mm")`, true, 100, 100},
		{`PEN(p:"1cm 5mm")`, true, 10000, 5000},
		{`PEN(p:"dotted")`, false, 0, 0},
	}
	for _, tt := range tests {
		line := &LineSymbol{}
		applyPenPattern(penTool(t, tt.style), line)
		if line.Dashed != tt.dashed || line.DashLength != tt.dash || line.BreakLength != tt.space {
			t.Errorf("%s: dashed=%v dash=%d break=%d", tt.style, line.Dashed, line.DashLength, line.BreakLength)
		}
	}
}

func TestLabelDescription(t *testing.T) {
	tests := []struct {
		anchor int
		angle  float64
		text   string
		want   int
	}{
		{5, 30, "Hello World", 5},
		{12, 0, "x", 12},
		{13, 0, "x", 1},
		{0, -15.5, "x", 1},
	}
	for _, tt := range tests {
		anchor, angle, text, ok := parseLabelDescription(labelDescription(clampLabelAnchor(tt.anchor), tt.angle, tt.text))
		if !ok || anchor != tt.want || angle != tt.angle || text != tt.text {
			t.Errorf("anchor %d: got %d %v %q %v", tt.anchor, anchor, angle, text, ok)
		}
	}
	if _, _, _, ok := parseLabelDescription("nospace"); ok {
		t.Error("缺少空格的描述应解析失败")
	}
}

// 角度按最短完整精度输出，不截断为整数或固定小数位
func TestLabelDescriptionFullPrecision(t *testing.T) {
	tests := []struct {
		anchor int
		angle  float64
		want   string
	}{
		{5, 30, "10530 x"},
		{5, 30.25, "10530.25 x"},
		{1, -15.5, "101-15.5 x"},
		{12, 1.0 / 3, "1120.3333333333333 x"},
	}
	for _, tt := range tests {
		if got := labelDescription(tt.anchor, tt.angle, "x"); got != tt.want {
			t.Errorf("labelDescription(%d, %v) = %q, want %q", tt.anchor, tt.angle, got, tt.want)
		}
	}
}

func TestApplyLabelAnchor(t *testing.T) {
	tests := []struct {
		anchor int
		h      HorizontalAlignment
		v      VerticalAlignment
	}{
		{1, AlignLeft, AlignBaseline},
		{5, AlignHCenter, AlignVCenter},
		{7, AlignLeft, AlignTop},
		{12, AlignRight, AlignBottom},
		{13, AlignLeft, AlignBaseline},
		{0, AlignLeft, AlignBaseline},
	}
	for _, tt := range tests {
		text := NewTextObject(nil)
		applyLabelAnchor(tt.anchor, text)
		if text.HAlign != tt.h || text.VAlign != tt.v {
			t.Errorf("anchor %d: h=%v v=%v", tt.anchor, text.HAlign, text.VAlign)
		}
	}
}

func TestCleanLabelText(t *testing.T) {
	tests := map[string]string{
		`\fArial;Text`: "Text",
		"a^Ib":         "a\tb",
		"plain":        "plain",
	}
	for in, want := range tests {
		if got := cleanLabelText(in); got != want {
			t.Errorf("cleanLabelText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMakeStyleString(t *testing.T) {
	red := NewMapColor("red", 3)
	red.SetRgb(255, 0, 0)
	blue := NewMapColor("blue", 1)
	blue.SetRgb(0, 0, 255)

	line := &LineSymbol{Color: red, Dashed: true}
	line.SetLineWidth(0.5)

	border := &LineSymbol{HasBorder: true}
	border.LeftBorder = LineBorder{Color: blue, Width: 200, Shift: 300}

	area := &AreaSymbol{Color: blue}
	area.FillPatterns = []FillPattern{{Type: LinePattern, LineColor: red, Angle: 0}}

	text := &TextSymbol{Color: red, FontFamily: "Arial", FontSize: 4000}

	combined := &CombinedSymbol{Parts: []Symbol{line, area}}

	tests := []struct {
		name   string
		symbol Symbol
		want   string
	}{
		{"点", &PointSymbol{InnerColor: red, InnerRadius: 200}, `SYMBOL(id:"ogr-sym-0",c:#ff0000ff,l:-3)`},
		{"虚线", line, `PEN(c:#ff0000ff,w:0.5mm,p:"2mm 1mm",l:-3)`},
		{"左边线", border, `PEN(c:#0000ffff,w:0.2mm,dp:-0.3mm,l:-1)`},
		{"面", area, `BRUSH(fc:#0000ffff,l:-1);BRUSH(fc:#ff0000ff,id:"ogr-brush-2",a:0,l:-3)`},
		{"文字", text, `LABEL(c:#ff0000ff,f:"Arial",s:4mm,t:"{Name}")`},
		{"组合", combined, `BRUSH(fc:#0000ffff,l:-1);BRUSH(fc:#ff0000ff,id:"ogr-brush-2",a:0,l:-3);PEN(c:#ff0000ff,w:0.5mm,p:"2mm 1mm",l:-3)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MakeStyleString(tt.symbol); got != tt.want {
				t.Errorf("MakeStyleString() = %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestCombinedStyleStringSkipsEmptyParts(t *testing.T) {
	red := NewMapColor("red", 3)
	red.SetRgb(255, 0, 0)
	blue := NewMapColor("blue", 1)
	blue.SetRgb(0, 0, 255)

	first := &AreaSymbol{Color: blue}
	second := &AreaSymbol{Color: red}
	// 无颜色无线宽的线符号与无颜色的面符号都不产生样式
	combined := &CombinedSymbol{Parts: []Symbol{first, &LineSymbol{}, second, &AreaSymbol{}}}

	got := MakeStyleString(combined)
	want := makeAreaStyleString(second) + ";" + makeAreaStyleString(first)
	if got != want {
		t.Errorf("MakeStyleString() = %q, want %q", got, want)
	}
	if strings.Contains(got, ";;") || strings.HasPrefix(got, ";") || strings.HasSuffix(got, ";") {
		t.Errorf("样式串含多余分隔符: %q", got)
	}

	empty := &CombinedSymbol{Parts: []Symbol{&LineSymbol{}, &AreaSymbol{}}}
	if got := MakeStyleString(empty); got != "" {
		t.Errorf("全部为空时应返回空串, got %q", got)
	}
}

func TestMakeStyleStringRoundTrip(t *testing.T) {
	m := NewMap()
	d := newSessionDefaults(m)
	cache := NewStyleCache(m, d, nil)

	red := NewMapColor("red", 0)
	red.SetRgb(255, 0, 0)
	line := &LineSymbol{Color: red}
	line.SetLineWidth(0.8)

	style := MakeStyleString(line)
	if !strings.HasPrefix(style, "PEN(") {
		t.Fatalf("style = %q", style)
	}
	got, ok := cache.Resolve(SymbolLine, style).(*LineSymbol)
	if !ok {
		t.Fatal("Resolve did not return a line symbol")
	}
	if got.LineWidth != 800 || got.Color.R != 255 || got.Color.G != 0 {
		t.Errorf("LineWidth=%d color=%s", got.LineWidth, got.Color.RgbString())
	}
}
