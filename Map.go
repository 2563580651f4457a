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

// MapPart 地图部件（对象分组）
type MapPart struct {
	Name    string
	Objects []Object
}

// NewMapPart 创建地图部件
func NewMapPart(name string) *MapPart {
	return &MapPart{Name: name}
}

// AddObject 添加对象
func (p *MapPart) AddObject(obj Object) {
	p.Objects = append(p.Objects, obj)
}

// ObjectCount 对象数量
func (p *MapPart) ObjectCount() int {
	return len(p.Objects)
}

// Template 底图模板（叠加图片，通过同名点定位）
type Template struct {
	Path                  string
	PassPoints            []MapCoordF
	ApplyCornerPassPoints bool
	Loaded                bool
}

// Map 宿主地图：颜色、符号、部件、模板与地理参考
type Map struct {
	colors      []*MapColor
	symbols     []Symbol
	parts       []*MapPart
	currentPart int
	templates   []*Template
	georef      *Georeferencing
	SymbolSetID string
}

// NewMap 创建包含一个默认部件的空地图
func NewMap() *Map {
	return &Map{
		parts:  []*MapPart{NewMapPart("default part")},
		georef: NewGeoreferencing(),
	}
}

// ==================== 颜色 ====================

// ColorCount 颜色数量
func (m *Map) ColorCount() int {
	return len(m.colors)
}

// GetColor 按位置获取颜色
func (m *Map) GetColor(i int) *MapColor {
	if i < 0 || i >= len(m.colors) {
		return nil
	}
	return m.colors[i]
}

// AddColor 在pos处插入颜色并重排优先级
func (m *Map) AddColor(c *MapColor, pos int) {
	if pos < 0 || pos > len(m.colors) {
		pos = len(m.colors)
	}
	m.colors = append(m.colors, nil)
	copy(m.colors[pos+1:], m.colors[pos:])
	m.colors[pos] = c
	for i, color := range m.colors {
		color.Priority = i
	}
}

// FindColor 按名称查找颜色
func (m *Map) FindColor(name string) *MapColor {
	for _, c := range m.colors {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ==================== 符号 ====================

// SymbolCount 符号数量
func (m *Map) SymbolCount() int {
	return len(m.symbols)
}

// GetSymbol 按位置获取符号
func (m *Map) GetSymbol(i int) Symbol {
	if i < 0 || i >= len(m.symbols) {
		return nil
	}
	return m.symbols[i]
}

// AddSymbol 在pos处插入符号
func (m *Map) AddSymbol(s Symbol, pos int) {
	if pos < 0 || pos > len(m.symbols) {
		pos = len(m.symbols)
	}
	m.symbols = append(m.symbols, nil)
	copy(m.symbols[pos+1:], m.symbols[pos:])
	m.symbols[pos] = s
}

// FindSymbolIndex 返回符号位置，不存在时返回-1
func (m *Map) FindSymbolIndex(s Symbol) int {
	for i, sym := range m.symbols {
		if sym == s {
			return i
		}
	}
	return -1
}

// DetermineSymbolsInUse 返回被对象使用的符号（含组合符号的组成部分）
func (m *Map) DetermineSymbolsInUse() map[Symbol]bool {
	inUse := make(map[Symbol]bool)
	var mark func(s Symbol)
	mark = func(s Symbol) {
		if s == nil || inUse[s] {
			return
		}
		inUse[s] = true
		if combined, ok := s.(*CombinedSymbol); ok {
			for _, part := range combined.Parts {
				mark(part)
			}
		}
	}
	for _, part := range m.parts {
		for _, obj := range part.Objects {
			mark(obj.Symbol())
		}
	}
	return inUse
}

// ==================== 部件与对象 ====================

// PartCount 部件数量
func (m *Map) PartCount() int {
	return len(m.parts)
}

// GetPart 按位置获取部件
func (m *Map) GetPart(i int) *MapPart {
	if i < 0 || i >= len(m.parts) {
		return nil
	}
	return m.parts[i]
}

// AddPart 在pos处插入部件
func (m *Map) AddPart(p *MapPart, pos int) {
	if pos < 0 || pos > len(m.parts) {
		pos = len(m.parts)
	}
	m.parts = append(m.parts, nil)
	copy(m.parts[pos+1:], m.parts[pos:])
	m.parts[pos] = p
	if pos <= m.currentPart && len(m.parts) > 1 {
		m.currentPart++
	}
}

// CurrentPart 当前部件
func (m *Map) CurrentPart() *MapPart {
	return m.parts[m.currentPart]
}

// CurrentPartIndex 当前部件位置
func (m *Map) CurrentPartIndex() int {
	return m.currentPart
}

// SetCurrentPartIndex 设置当前部件
func (m *Map) SetCurrentPartIndex(i int) {
	if i >= 0 && i < len(m.parts) {
		m.currentPart = i
	}
}

// ObjectCount 全部对象数量
func (m *Map) ObjectCount() int {
	n := 0
	for _, part := range m.parts {
		n += part.ObjectCount()
	}
	return n
}

// ApplyOnMatchingObjects 对满足条件的对象依次执行fn
func (m *Map) ApplyOnMatchingObjects(fn func(Object) error, condition func(Object) bool) error {
	for _, part := range m.parts {
		for _, obj := range part.Objects {
			if condition != nil && !condition(obj) {
				continue
			}
			if err := fn(obj); err != nil {
				return err
			}
		}
	}
	return nil
}

// ==================== 模板与地理参考 ====================

// AddTemplate 添加模板
func (m *Map) AddTemplate(t *Template) {
	m.templates = append(m.templates, t)
}

// Templates 返回全部模板
func (m *Map) Templates() []*Template {
	return m.templates
}

// Georeferencing 返回地理参考（只读使用，修改请复制后 SetGeoreferencing）
func (m *Map) Georeferencing() *Georeferencing {
	return m.georef
}

// SetGeoreferencing 替换地理参考
func (m *Map) SetGeoreferencing(g *Georeferencing) {
	m.georef = g.Clone()
}

// ScaleDenominator 地图比例尺分母
func (m *Map) ScaleDenominator() int {
	return m.georef.ScaleDenominator
}
