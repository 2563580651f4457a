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
)

// FieldType 字段类型枚举（取值与OGR一致）
type FieldType int

const (
	FieldTypeInteger   FieldType = 0
	FieldTypeReal      FieldType = 2
	FieldTypeString    FieldType = 4
	FieldTypeBinary    FieldType = 8
	FieldTypeDate      FieldType = 9
	FieldTypeTime      FieldType = 10
	FieldTypeDateTime  FieldType = 11
	FieldTypeInteger64 FieldType = 12
)

// String 字段类型名称
func (t FieldType) String() string {
	switch t {
	case FieldTypeInteger:
		return "Integer"
	case FieldTypeInteger64:
		return "Integer64"
	case FieldTypeReal:
		return "Real"
	case FieldTypeString:
		return "String"
	case FieldTypeDate:
		return "Date"
	case FieldTypeTime:
		return "Time"
	case FieldTypeDateTime:
		return "DateTime"
	case FieldTypeBinary:
		return "Binary"
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// FieldDefn 字段定义
type FieldDefn struct {
	Name  string
	Type  FieldType
	Width int
}

// NewFieldDefn 创建字段定义
func NewFieldDefn(name string, fieldType FieldType) *FieldDefn {
	return &FieldDefn{Name: name, Type: fieldType}
}

// SetWidth 设置字段宽度
func (d *FieldDefn) SetWidth(width int) {
	d.Width = width
}

// FeatureDefn 要素定义（字段列表与几何类型）
type FeatureDefn struct {
	name     string
	geomType GeomType
	fields   []*FieldDefn
}

// NewFeatureDefn 创建要素定义
func NewFeatureDefn(name string, geomType GeomType) *FeatureDefn {
	return &FeatureDefn{name: name, geomType: geomType}
}

// GetName 名称
func (d *FeatureDefn) GetName() string { return d.name }

// GetGeomType 几何类型
func (d *FeatureDefn) GetGeomType() GeomType { return d.geomType }

// GetFieldCount 字段数量
func (d *FeatureDefn) GetFieldCount() int { return len(d.fields) }

// GetFieldDefn 第i个字段定义
func (d *FeatureDefn) GetFieldDefn(i int) *FieldDefn {
	if i < 0 || i >= len(d.fields) {
		return nil
	}
	return d.fields[i]
}

// GetFieldIndex 按名称查找字段索引，不存在返回-1
func (d *FeatureDefn) GetFieldIndex(name string) int {
	for i, f := range d.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (d *FeatureDefn) addField(f *FieldDefn) {
	copyDefn := *f
	d.fields = append(d.fields, &copyDefn)
}

// GDALFeature 要素
type GDALFeature struct {
	fid      int64
	defn     *FeatureDefn
	values   []string
	set      []bool
	geometry *OGRGeometry
	style    string
}

// NewFeature 按要素定义创建空要素
func NewFeature(defn *FeatureDefn) *GDALFeature {
	n := defn.GetFieldCount()
	return &GDALFeature{
		fid:    -1,
		defn:   defn,
		values: make([]string, n),
		set:    make([]bool, n),
	}
}

// IsValid 检查要素是否有效
func (f *GDALFeature) IsValid() bool {
	return f != nil && f.defn != nil
}

// GetFID 要素ID
func (f *GDALFeature) GetFID() int64 { return f.fid }

// SetFID 设置要素ID
func (f *GDALFeature) SetFID(fid int64) { f.fid = fid }

// GetDefnRef 要素定义
func (f *GDALFeature) GetDefnRef() *FeatureDefn { return f.defn }

// GetGeometryRef 获取几何对象（不转移所有权）
func (f *GDALFeature) GetGeometryRef() *OGRGeometry {
	if f == nil {
		return nil
	}
	return f.geometry
}

// SetGeometry 设置几何对象的副本
func (f *GDALFeature) SetGeometry(geom *OGRGeometry) error {
	if f == nil {
		return fmt.Errorf("要素为空")
	}
	f.geometry = geom.Clone()
	return nil
}

// SetGeometryDirectly 设置几何对象（转移所有权，不复制）
func (f *GDALFeature) SetGeometryDirectly(geom *OGRGeometry) error {
	if f == nil {
		return fmt.Errorf("要素为空")
	}
	f.geometry = geom
	return nil
}

// GetFieldIndex 获取字段索引
func (f *GDALFeature) GetFieldIndex(fieldName string) int {
	if f == nil || f.defn == nil {
		return -1
	}
	return f.defn.GetFieldIndex(fieldName)
}

// GetFieldCount 获取字段数量
func (f *GDALFeature) GetFieldCount() int {
	if f == nil || f.defn == nil {
		return 0
	}
	return f.defn.GetFieldCount()
}

// IsFieldSet 字段是否已赋值
func (f *GDALFeature) IsFieldSet(index int) bool {
	return index >= 0 && index < len(f.set) && f.set[index]
}

// SetFieldString 设置字符串字段值
func (f *GDALFeature) SetFieldString(fieldName, value string) error {
	index := f.GetFieldIndex(fieldName)
	if index < 0 {
		return fmt.Errorf("字段 %s 不存在", fieldName)
	}
	f.SetFieldStringByIndex(index, value)
	return nil
}

// SetFieldStringByIndex 通过索引设置字符串字段值
func (f *GDALFeature) SetFieldStringByIndex(index int, value string) {
	if index < 0 || index >= f.GetFieldCount() {
		return
	}
	for len(f.values) <= index {
		f.values = append(f.values, "")
		f.set = append(f.set, false)
	}
	f.values[index] = value
	f.set[index] = true
}

// SetFieldInteger 设置整数字段值
func (f *GDALFeature) SetFieldInteger(fieldName string, value int) error {
	return f.SetFieldString(fieldName, strconv.Itoa(value))
}

// SetFieldDouble 设置浮点字段值
func (f *GDALFeature) SetFieldDouble(fieldName string, value float64) error {
	return f.SetFieldString(fieldName, strconv.FormatFloat(value, 'g', -1, 64))
}

// GetFieldAsString 获取字段值（字符串形式）
func (f *GDALFeature) GetFieldAsString(fieldName string) string {
	return f.GetFieldAsStringByIndex(f.GetFieldIndex(fieldName))
}

// GetFieldAsStringByIndex 通过索引获取字段值
func (f *GDALFeature) GetFieldAsStringByIndex(index int) string {
	if index < 0 || index >= len(f.values) {
		return ""
	}
	return f.values[index]
}

// GetFieldAsInteger 获取整数字段值
func (f *GDALFeature) GetFieldAsInteger(fieldName string) int {
	v, err := strconv.Atoi(f.GetFieldAsString(fieldName))
	if err != nil {
		return 0
	}
	return v
}

// GetFieldAsDouble 获取浮点字段值
func (f *GDALFeature) GetFieldAsDouble(fieldName string) float64 {
	v, err := strconv.ParseFloat(f.GetFieldAsString(fieldName), 64)
	if err != nil {
		return 0
	}
	return v
}

// GetStyleString 要素样式字符串
func (f *GDALFeature) GetStyleString() string {
	return f.style
}

// SetStyleString 设置要素样式字符串
func (f *GDALFeature) SetStyleString(style string) {
	f.style = style
}

// Clone 克隆要素
func (f *GDALFeature) Clone() *GDALFeature {
	if f == nil {
		return nil
	}
	return &GDALFeature{
		fid:      f.fid,
		defn:     f.defn,
		values:   append([]string(nil), f.values...),
		set:      append([]bool(nil), f.set...),
		geometry: f.geometry.Clone(),
		style:    f.style,
	}
}

// Destroy 销毁要素
func (f *GDALFeature) Destroy() {
	if f == nil {
		return
	}
	f.geometry.Destroy()
	f.geometry = nil
}
