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

import "testing"

func newTestCache(t *testing.T) (*Map, *SessionDefaults, *StyleCache) {
	t.Helper()
	m := NewMap()
	d := newSessionDefaults(m)
	return m, d, NewStyleCache(m, d, nil)
}

func TestSessionDefaults(t *testing.T) {
	m := NewMap()
	d := newSessionDefaults(m)
	if m.ColorCount() != 2 || m.SymbolCount() != 4 {
		t.Fatalf("colors=%d symbols=%d", m.ColorCount(), m.SymbolCount())
	}
	if d.BrushColor.Opacity != 0.5 || d.BrushColor.SpotComposition[0].Color != d.PenColor {
		t.Error("默认填充色应为半透明的紫色专色")
	}
	names := []string{"Point", "Line", "Area", "Text"}
	for i, name := range names {
		if got := m.GetSymbol(i).Common().Name; got != name {
			t.Errorf("symbol %d = %q, want %q", i, got, name)
		}
	}
	if d.Line.LineWidth != 100 {
		t.Errorf("默认线宽 = %d", d.Line.LineWidth)
	}
}

func TestStyleCacheIdentity(t *testing.T) {
	m, d, cache := newTestCache(t)

	a := cache.Resolve(SymbolLine, "PEN(c:#ff0000,w:0.5mm)")
	b := cache.Resolve(SymbolLine, "PEN(c:#ff0000,w:0.5mm)")
	c := cache.Resolve(SymbolLine, "PEN(w:0.5, c:#ff0000)")
	if a != b || a != c {
		t.Fatal("等价样式应得到同一个符号")
	}
	if a == Symbol(d.Line) {
		t.Fatal("不应退回默认线符号")
	}
	if m.SymbolCount() != 5 {
		t.Errorf("SymbolCount() = %d, want 5", m.SymbolCount())
	}
	// 两个原始串加一个规范串
	if n := cache.Len(SymbolLine); n != 3 {
		t.Errorf("Len(line) = %d, want 3", n)
	}
}

func TestStyleCacheFallbacks(t *testing.T) {
	_, d, cache := newTestCache(t)
	tests := []struct {
		name  string
		kind  SymbolType
		style string
		want  Symbol
	}{
		{"空线样式", SymbolLine, "", d.Line},
		{"线样式中没有PEN", SymbolLine, "BRUSH(fc:#ff0000)", d.Line},
		{"空面样式", SymbolArea, "", d.Area},
		{"格式错误", SymbolArea, "BRUSH(fc:#ff0000", d.Area},
		{"点样式", SymbolPoint, "", d.Point},
		{"没有文字的LABEL", SymbolText, "LABEL(c:#000000)", d.Point},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.Resolve(tt.kind, tt.style); got != tt.want {
				t.Errorf("Resolve(%q) = %v", tt.style, got)
			}
		})
	}
	if cache.Resolve(SymbolCombined, "PEN(c:#000000)") != nil {
		t.Error("不支持的类型应返回nil")
	}
}

func TestStyleCacheColors(t *testing.T) {
	m, d, cache := newTestCache(t)

	a := cache.Resolve(SymbolLine, "PEN(c:#00ff00,w:1mm)").(*LineSymbol)
	b := cache.Resolve(SymbolArea, "BRUSH(fc:#00ff00)").(*AreaSymbol)
	if a.Color != b.Color {
		t.Error("相同颜色串应共享颜色")
	}
	if m.ColorCount() != 3 {
		t.Errorf("ColorCount() = %d, want 3", m.ColorCount())
	}

	hidden := cache.Resolve(SymbolLine, "PEN(c:#ff000000,w:1mm)").(*LineSymbol)
	if !hidden.Hidden || hidden.Color != d.PenColor {
		t.Error("完全透明的颜色应隐藏符号并保留默认颜色")
	}

	bad := cache.Resolve(SymbolArea, "BRUSH(fc:blue)").(*AreaSymbol)
	if bad.Color != d.PenColor || bad.Hidden {
		t.Error("无法解析的颜色应使用默认线色")
	}
	if m.ColorCount() != 3 {
		t.Errorf("透明和无效颜色不应添加到地图, ColorCount() = %d", m.ColorCount())
	}
}

func TestStyleCachePointSymbol(t *testing.T) {
	_, _, cache := newTestCache(t)
	s, ok := cache.Resolve(SymbolPoint, `SYMBOL(id:"ogr-sym-0",c:#ff0000,a:45)`).(*PointSymbol)
	if !ok {
		t.Fatal("应得到点符号")
	}
	if !s.Rotatable || s.Description != "45.00" {
		t.Errorf("Rotatable=%v Description=%q", s.Rotatable, s.Description)
	}
	if s.InnerColor.R != 255 {
		t.Errorf("InnerColor = %s", s.InnerColor.RgbString())
	}
	if again := cache.Resolve(SymbolPoint, `SYMBOL(id:"ogr-sym-0",c:#ff0000,a:45)`); again != Symbol(s) {
		t.Error("相同样式应命中缓存")
	}
}

func TestStyleCacheLabelSymbol(t *testing.T) {
	m, _, cache := newTestCache(t)
	a, ok := cache.Resolve(SymbolText, `LABEL(t:"Hello",c:#000000,s:8mm,p:5,a:30)`).(*TextSymbol)
	if !ok {
		t.Fatal("应得到文字符号")
	}
	if a.FontSize != 8000 {
		t.Errorf("FontSize = %d, want 8000", a.FontSize)
	}
	anchor, angle, text, _ := parseLabelDescription(a.Description)
	if anchor != 5 || angle != 30 || text != "Hello" {
		t.Errorf("description = %q", a.Description)
	}

	count := m.SymbolCount()
	b := cache.Resolve(SymbolText, `LABEL(t:"World",c:#000000,s:8mm)`).(*TextSymbol)
	if a != b {
		t.Error("颜色与字号相同的注记应共享符号")
	}
	if m.SymbolCount() != count {
		t.Error("共享符号时不应新增符号")
	}
	if _, _, text, _ := parseLabelDescription(b.Description); text != "World" {
		t.Errorf("描述应更新为最新注记, got %q", text)
	}
	if cache.Len(SymbolText) != 1 {
		t.Errorf("Len(text) = %d", cache.Len(SymbolText))
	}
}
