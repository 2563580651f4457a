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
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// StyleToolType 样式工具类型
type StyleToolType int

const (
	OGRSTCNone StyleToolType = iota
	OGRSTCPen
	OGRSTCBrush
	OGRSTCSymbol
	OGRSTCLabel
)

// String 工具名称
func (t StyleToolType) String() string {
	switch t {
	case OGRSTCPen:
		return "PEN"
	case OGRSTCBrush:
		return "BRUSH"
	case OGRSTCSymbol:
		return "SYMBOL"
	case OGRSTCLabel:
		return "LABEL"
	}
	return ""
}

func styleToolTypeFromName(name string) StyleToolType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PEN":
		return OGRSTCPen
	case "BRUSH":
		return OGRSTCBrush
	case "SYMBOL":
		return OGRSTCSymbol
	case "LABEL":
		return OGRSTCLabel
	}
	return OGRSTCNone
}

// StyleUnit 样式参数单位
type StyleUnit int

const (
	OGRSTUGround StyleUnit = iota
	OGRSTUPixel
	OGRSTUPoints
	OGRSTUMM
	OGRSTUCM
	OGRSTUInches
)

// Suffix 单位后缀
func (u StyleUnit) Suffix() string {
	switch u {
	case OGRSTUGround:
		return "g"
	case OGRSTUPixel:
		return "px"
	case OGRSTUPoints:
		return "pt"
	case OGRSTUCM:
		return "cm"
	case OGRSTUInches:
		return "in"
	}
	return "mm"
}

// ParseStyleUnit 解析单位后缀
func ParseStyleUnit(suffix string) (StyleUnit, bool) {
	switch strings.ToLower(suffix) {
	case "g":
		return OGRSTUGround, true
	case "px":
		return OGRSTUPixel, true
	case "pt":
		return OGRSTUPoints, true
	case "mm":
		return OGRSTUMM, true
	case "cm":
		return OGRSTUCM, true
	case "in":
		return OGRSTUInches, true
	}
	return OGRSTUMM, false
}

type paramType int

const (
	paramString paramType = iota
	paramDouble
	paramInt
	paramBool
)

type paramDefn struct {
	key    string
	typ    paramType
	georef bool
}

// 各工具的参数表，顺序即规范化输出顺序
var styleParamTables = map[StyleToolType][]paramDefn{
	OGRSTCPen: {
		{"c", paramString, false},
		{"w", paramDouble, true},
		{"p", paramString, false},
		{"id", paramString, false},
		{"cap", paramString, false},
		{"j", paramString, false},
		{"dp", paramDouble, true},
		{"pri", paramInt, false},
		{"l", paramInt, false},
	},
	OGRSTCBrush: {
		{"fc", paramString, false},
		{"bc", paramString, false},
		{"id", paramString, false},
		{"a", paramDouble, false},
		{"s", paramDouble, true},
		{"dx", paramDouble, true},
		{"dy", paramDouble, true},
		{"pri", paramInt, false},
		{"l", paramInt, false},
	},
	OGRSTCSymbol: {
		{"id", paramString, false},
		{"a", paramDouble, false},
		{"c", paramString, false},
		{"o", paramString, false},
		{"s", paramDouble, true},
		{"dx", paramDouble, true},
		{"dy", paramDouble, true},
		{"ds", paramDouble, true},
		{"dp", paramDouble, true},
		{"di", paramDouble, true},
		{"pri", paramInt, false},
		{"f", paramString, false},
		{"l", paramInt, false},
	},
	OGRSTCLabel: {
		{"f", paramString, false},
		{"s", paramDouble, true},
		{"t", paramString, false},
		{"a", paramDouble, false},
		{"c", paramString, false},
		{"b", paramString, false},
		{"o", paramString, false},
		{"h", paramString, false},
		{"w", paramDouble, false},
		{"p", paramInt, false},
		{"dx", paramDouble, true},
		{"dy", paramDouble, true},
		{"dp", paramDouble, true},
		{"bo", paramBool, false},
		{"it", paramBool, false},
		{"un", paramBool, false},
		{"st", paramBool, false},
		{"m", paramString, false},
		{"pri", paramInt, false},
		{"l", paramInt, false},
	},
}

func lookupParamDefn(kind StyleToolType, key string) (paramDefn, bool) {
	for _, d := range styleParamTables[kind] {
		if d.key == key {
			return d, true
		}
	}
	return paramDefn{}, false
}

type styleParam struct {
	value string
	unit  StyleUnit
}

// StyleTool 样式工具（PEN、BRUSH、SYMBOL、LABEL）
type StyleTool struct {
	kind   StyleToolType
	params map[string]styleParam
	unit   StyleUnit
	scale  float64
}

// NewStyleTool 创建空的样式工具，默认单位毫米
func NewStyleTool(kind StyleToolType) *StyleTool {
	return &StyleTool{kind: kind, params: map[string]styleParam{}, unit: OGRSTUMM, scale: 1}
}

// GetType 工具类型
func (t *StyleTool) GetType() StyleToolType {
	return t.kind
}

// SetUnit 设置输出单位和比例尺（地面单位换算用）
func (t *StyleTool) SetUnit(unit StyleUnit, scale float64) {
	t.unit = unit
	if scale > 0 {
		t.scale = scale
	}
}

// GetUnit 输出单位
func (t *StyleTool) GetUnit() StyleUnit {
	return t.unit
}

// SetParamStr 设置参数文本
func (t *StyleTool) SetParamStr(key, value string) {
	t.params[key] = styleParam{value: value, unit: t.unit}
}

// SetParamDbl 设置数值参数（单位为工具单位）
func (t *StyleTool) SetParamDbl(key string, value float64) {
	t.params[key] = styleParam{value: strconv.FormatFloat(value, 'g', -1, 64), unit: t.unit}
}

// IsParamSet 参数是否存在
func (t *StyleTool) IsParamSet(key string) bool {
	_, ok := t.params[key]
	return ok
}

// ComputeWithUnit 将指定单位的数值换算为工具单位
func (t *StyleTool) ComputeWithUnit(value float64, from StyleUnit) float64 {
	if from == t.unit {
		return value
	}
	const pointsPerMeter = 72.0 * 39.37
	meters := value
	switch from {
	case OGRSTUGround:
		meters = value / t.scale
	case OGRSTUPixel, OGRSTUPoints:
		meters = value / pointsPerMeter
	case OGRSTUMM:
		meters = value * 0.001
	case OGRSTUCM:
		meters = value * 0.01
	case OGRSTUInches:
		meters = value / 39.37
	}
	switch t.unit {
	case OGRSTUGround:
		return meters * t.scale
	case OGRSTUPixel, OGRSTUPoints:
		return meters * pointsPerMeter
	case OGRSTUMM:
		return meters * 1000
	case OGRSTUCM:
		return meters * 100
	case OGRSTUInches:
		return meters * 39.37
	}
	return meters
}

// GetParamStr 获取参数文本；数值参数返回换算为工具单位后的值
func (t *StyleTool) GetParamStr(key string) (string, bool) {
	p, ok := t.params[key]
	if !ok {
		return "", false
	}
	if defn, known := lookupParamDefn(t.kind, key); known && defn.georef {
		if v, ok := t.GetParamDbl(key); ok {
			return strconv.FormatFloat(v, 'g', -1, 64), true
		}
	}
	return p.value, true
}

// GetParamDbl 获取数值参数，带单位的参数换算为工具单位
func (t *StyleTool) GetParamDbl(key string) (float64, bool) {
	p, ok := t.params[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.value), 64)
	if err != nil {
		return 0, false
	}
	if defn, known := lookupParamDefn(t.kind, key); known && defn.georef {
		v = t.ComputeWithUnit(v, p.unit)
	}
	return v, true
}

// GetParamNum 获取整数参数
func (t *StyleTool) GetParamNum(key string) (int, bool) {
	v, ok := t.GetParamDbl(key)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// GetStyleString 规范化的工具样式字符串：参数按固定顺序，数值为工具单位
func (t *StyleTool) GetStyleString() string {
	var parts []string
	for _, defn := range styleParamTables[t.kind] {
		p, ok := t.params[defn.key]
		if !ok {
			continue
		}
		switch defn.typ {
		case paramString:
			parts = append(parts, defn.key+":"+quoteStyleValue(p.value))
		case paramDouble:
			v, ok := t.GetParamDbl(defn.key)
			if !ok {
				continue
			}
			text := strconv.FormatFloat(v, 'g', -1, 64)
			if defn.georef {
				text += t.unit.Suffix()
			}
			parts = append(parts, defn.key+":"+text)
		default:
			parts = append(parts, defn.key+":"+strings.TrimSpace(p.value))
		}
	}
	return t.kind.String() + "(" + strings.Join(parts, ",") + ")"
}

// GetRGBFromString 解析 #RRGGBB[AA] 颜色，缺省不透明
func (t *StyleTool) GetRGBFromString(color string) (r, g, b, a int, ok bool) {
	return parseStyleColor(color)
}

func parseStyleColor(color string) (r, g, b, a int, ok bool) {
	s := strings.TrimSpace(color)
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 9) {
		return 0, 0, 0, 0, false
	}
	values := [4]int{0, 0, 0, 255}
	for i := 0; i < (len(s)-1)/2; i++ {
		v, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		values[i] = int(v)
	}
	return values[0], values[1], values[2], values[3], true
}

func quoteStyleValue(v string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range v {
		if r == '"' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('"')
	return sb.String()
}

// splitNumberUnit 拆分 "2.5mm" 形式的数值与单位
func splitNumberUnit(text string) (string, StyleUnit, bool) {
	text = strings.TrimSpace(text)
	for _, suffix := range []string{"px", "pt", "mm", "cm", "in", "g"} {
		if strings.HasSuffix(text, suffix) {
			num := strings.TrimSuffix(text, suffix)
			if _, err := strconv.ParseFloat(num, 64); err == nil {
				unit, _ := ParseStyleUnit(suffix)
				return num, unit, true
			}
		}
	}
	return text, OGRSTUMM, false
}

// parseStyleTool 解析 NAME(k:v,...) 片段
func parseStyleTool(part string) (*StyleTool, error) {
	open := strings.IndexByte(part, '(')
	if open < 0 || !strings.HasSuffix(part, ")") {
		return nil, fmt.Errorf("样式片段格式错误: %s", part)
	}
	tool := NewStyleTool(styleToolTypeFromName(part[:open]))
	body := part[open+1 : len(part)-1]
	items, err := splitStyleList(body, ',')
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		colon := strings.IndexByte(item, ':')
		if colon < 0 {
			return nil, fmt.Errorf("样式参数格式错误: %s", item)
		}
		key := strings.TrimSpace(item[:colon])
		raw := strings.TrimSpace(item[colon+1:])
		value, err := unquoteStyleValue(raw)
		if err != nil {
			return nil, err
		}
		defn, known := lookupParamDefn(tool.kind, key)
		if tool.kind != OGRSTCNone && !known {
			log.Debugf("忽略未知的样式参数 %s:%s", key, raw)
			continue
		}
		param := styleParam{value: value, unit: OGRSTUMM}
		if known && defn.typ == paramDouble && !strings.HasPrefix(raw, "\"") {
			if num, unit, ok := splitNumberUnit(value); ok {
				param = styleParam{value: num, unit: unit}
			}
		}
		tool.params[key] = param
	}
	return tool, nil
}

func unquoteStyleValue(raw string) (string, error) {
	if !strings.HasPrefix(raw, "\"") {
		return raw, nil
	}
	if len(raw) < 2 || !strings.HasSuffix(raw, "\"") {
		return "", fmt.Errorf("引号不匹配: %s", raw)
	}
	var sb strings.Builder
	escaped := false
	for _, r := range raw[1 : len(raw)-1] {
		if escaped {
			sb.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// splitStyleList 在引号与括号之外按分隔符拆分
func splitStyleList(s string, sep rune) ([]string, error) {
	var (
		result  []string
		current strings.Builder
		quoted  bool
		escaped bool
		depth   int
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && r == '(':
			depth++
		case !quoted && r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("括号不匹配: %s", s)
			}
		case !quoted && depth == 0 && r == sep:
			result = append(result, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if quoted || depth != 0 {
		return nil, fmt.Errorf("样式字符串不完整: %s", s)
	}
	result = append(result, current.String())
	return result, nil
}

// StyleTable 样式表：名称到样式字符串
type StyleTable struct {
	names  []string
	styles map[string]string
}

// NewStyleTable 创建样式表
func NewStyleTable() *StyleTable {
	return &StyleTable{styles: map[string]string{}}
}

// AddStyle 添加样式，名称已存在时返回false
func (st *StyleTable) AddStyle(name, style string) bool {
	if name == "" {
		return false
	}
	if _, exists := st.styles[name]; exists {
		return false
	}
	st.names = append(st.names, name)
	st.styles[name] = style
	return true
}

// Find 查找样式，不存在时返回空串
func (st *StyleTable) Find(name string) string {
	return st.styles[name]
}

// Count 样式数量
func (st *StyleTable) Count() int {
	return len(st.names)
}

// Names 按添加顺序返回全部名称
func (st *StyleTable) Names() []string {
	return append([]string(nil), st.names...)
}

// Destroy 释放样式表
func (st *StyleTable) Destroy() {
	st.names, st.styles = nil, map[string]string{}
}

// StyleManager 样式字符串解析器
type StyleManager struct {
	table *StyleTable
	parts []*StyleTool
}

// NewStyleManager 创建样式管理器，table 用于解析 @name 引用
func NewStyleManager(table *StyleTable) *StyleManager {
	return &StyleManager{table: table}
}

// InitStyleString 解析样式字符串；空串、格式错误或引用不存在时返回false
func (m *StyleManager) InitStyleString(style string) bool {
	m.parts = nil
	style = strings.TrimSpace(style)
	if strings.HasPrefix(style, "@") {
		if m.table == nil {
			return false
		}
		resolved := m.table.Find(style[1:])
		if resolved == "" {
			return false
		}
		style = resolved
	}
	if style == "" {
		return false
	}
	items, err := splitStyleList(style, ';')
	if err != nil {
		log.Debugf("样式字符串解析失败: %v", err)
		return false
	}
	var parts []*StyleTool
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		tool, err := parseStyleTool(item)
		if err != nil {
			log.Debugf("样式字符串解析失败: %v", err)
			return false
		}
		parts = append(parts, tool)
	}
	m.parts = parts
	return len(parts) > 0
}

// GetPartCount 工具数量
func (m *StyleManager) GetPartCount() int {
	return len(m.parts)
}

// GetPart 第i个工具，未知工具类型返回nil
func (m *StyleManager) GetPart(i int) *StyleTool {
	if i < 0 || i >= len(m.parts) {
		return nil
	}
	if m.parts[i].kind == OGRSTCNone {
		return nil
	}
	return m.parts[i]
}

// AddPart 追加工具
func (m *StyleManager) AddPart(tool *StyleTool) {
	m.parts = append(m.parts, tool)
}

// GetStyleString 全部工具的规范化样式字符串
func (m *StyleManager) GetStyleString() string {
	var parts []string
	for _, tool := range m.parts {
		if tool.kind != OGRSTCNone {
			parts = append(parts, tool.GetStyleString())
		}
	}
	return strings.Join(parts, ";")
}

// AddStyle 将当前样式以name加入样式表
func (m *StyleManager) AddStyle(name string) bool {
	if m.table == nil {
		return false
	}
	return m.table.AddStyle(name, m.GetStyleString())
}

// Destroy 释放样式管理器
func (m *StyleManager) Destroy() {
	m.parts = nil
}
