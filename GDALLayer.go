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
	"strings"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

// 图层能力名称
const (
	OLCFastGetExtent   = "FastGetExtent"
	OLCCreateField     = "CreateField"
	OLCSequentialWrite = "SequentialWrite"
	OLCRandomRead      = "RandomRead"
)

// GDALLayer 矢量图层
type GDALLayer struct {
	name     string
	defn     *FeatureDefn
	srs      *SpatialReference
	features []*GDALFeature
	cursor   int
	nextFID  int64
	dataset  *GDALDataSource
	readOnly bool
}

func newLayer(name string, srs *SpatialReference, geomType GeomType) *GDALLayer {
	return &GDALLayer{
		name: name,
		defn: NewFeatureDefn(name, geomType),
		srs:  srs,
	}
}

// GetName 获取图层名称
func (gl *GDALLayer) GetName() string {
	return gl.name
}

// GetLayerName 获取图层名称
func (gl *GDALLayer) GetLayerName() string {
	return gl.name
}

// GetLayerDefn 获取图层定义
func (gl *GDALLayer) GetLayerDefn() *FeatureDefn {
	return gl.defn
}

// GetGeomType 获取几何类型
func (gl *GDALLayer) GetGeomType() GeomType {
	return gl.defn.geomType
}

// GetGeometryType 获取几何类型名称
func (gl *GDALLayer) GetGeometryType() string {
	return gl.defn.geomType.String()
}

// GetSpatialRef 获取空间参考系统
func (gl *GDALLayer) GetSpatialRef() *SpatialReference {
	return gl.srs
}

// GetFeatureCount 获取要素数量
func (gl *GDALLayer) GetFeatureCount() int {
	return len(gl.features)
}

// GetFieldCount 获取字段数量
func (gl *GDALLayer) GetFieldCount() int {
	return gl.defn.GetFieldCount()
}

// GetFieldName 获取字段名称
func (gl *GDALLayer) GetFieldName(index int) string {
	if fd := gl.defn.GetFieldDefn(index); fd != nil {
		return fd.Name
	}
	return ""
}

// GetFieldDefn 获取字段定义
func (gl *GDALLayer) GetFieldDefn(index int) *FieldDefn {
	return gl.defn.GetFieldDefn(index)
}

// TestCapability 查询图层能力
func (gl *GDALLayer) TestCapability(capability string) bool {
	switch capability {
	case OLCFastGetExtent, OLCRandomRead:
		return true
	case OLCCreateField, OLCSequentialWrite:
		return !gl.readOnly
	}
	return false
}

// CreateField 创建字段
func (gl *GDALLayer) CreateField(fieldDefn *FieldDefn) error {
	if gl.readOnly {
		return fmt.Errorf("图层 %s 为只读", gl.name)
	}
	if fieldDefn == nil || fieldDefn.Name == "" {
		return fmt.Errorf("字段定义无效")
	}
	if gl.defn.GetFieldIndex(fieldDefn.Name) >= 0 {
		return fmt.Errorf("字段 %s 已存在", fieldDefn.Name)
	}
	if len(gl.features) > 0 {
		return fmt.Errorf("图层 %s 已包含要素，不能追加字段", gl.name)
	}
	gl.defn.addField(fieldDefn)
	return nil
}

// ResetReading 重置读取位置
func (gl *GDALLayer) ResetReading() {
	gl.cursor = 0
}

// GetNextFeature 获取下一个要素的副本，几何携带图层空间参考
func (gl *GDALLayer) GetNextFeature() *GDALFeature {
	if gl.cursor >= len(gl.features) {
		return nil
	}
	feature := gl.features[gl.cursor].Clone()
	gl.cursor++
	if geom := feature.GetGeometryRef(); geom != nil && geom.GetSpatialReference() == nil {
		geom.AssignSpatialReference(gl.srs)
	}
	return feature
}

// CreateEmptyFeature 创建空要素
func (gl *GDALLayer) CreateEmptyFeature() *GDALFeature {
	return NewFeature(gl.defn)
}

// CreateFeature 将要素副本添加到图层
func (gl *GDALLayer) CreateFeature(f *GDALFeature) error {
	if gl.readOnly {
		return fmt.Errorf("图层 %s 为只读", gl.name)
	}
	if !f.IsValid() {
		return fmt.Errorf("要素为空")
	}
	if f.defn != gl.defn {
		return fmt.Errorf("要素定义与图层 %s 不一致", gl.name)
	}
	if gl.dataset != nil && gl.dataset.driver != nil && gl.dataset.driver.acceptGeometry != nil {
		if err := gl.dataset.driver.acceptGeometry(gl, f.GetGeometryRef()); err != nil {
			return err
		}
	}
	stored := f.Clone()
	stored.fid = gl.nextFID
	f.fid = gl.nextFID
	gl.nextFID++
	gl.features = append(gl.features, stored)
	return nil
}

// IterateFeatures 遍历图层中的所有要素
func (gl *GDALLayer) IterateFeatures(callback func(feature *GDALFeature)) {
	gl.ResetReading()
	for {
		feature := gl.GetNextFeature()
		if feature == nil {
			break
		}
		callback(feature)
	}
}

// GetExtent 计算图层范围
func (gl *GDALLayer) GetExtent() (orb.Bound, error) {
	var (
		bound orb.Bound
		found bool
	)
	for _, f := range gl.features {
		b, ok := f.GetGeometryRef().Envelope()
		if !ok {
			continue
		}
		if !found {
			bound, found = b, true
			continue
		}
		bound = bound.Union(b)
	}
	if !found {
		return orb.Bound{}, fmt.Errorf("图层 %s 没有几何数据", gl.name)
	}
	return bound, nil
}

// PrintLayerSummary 打印图层摘要
func (gl *GDALLayer) PrintLayerSummary() {
	srsName := "无"
	if gl.srs != nil {
		srsName = gl.srs.Name()
	}
	fields := make([]string, 0, gl.GetFieldCount())
	for i := 0; i < gl.GetFieldCount(); i++ {
		fd := gl.GetFieldDefn(i)
		fields = append(fields, fmt.Sprintf("%s(%s)", fd.Name, fd.Type))
	}
	log.Infof("图层: %s, 几何类型: %s, 要素数量: %d, 坐标系: %s, 字段: %s",
		gl.name, gl.GetGeometryType(), gl.GetFeatureCount(), srsName, strings.Join(fields, ", "))
}

// CopyAllFeatures 复制所有要素从源图层到目标图层
func CopyAllFeatures(srcLayer, dstLayer *GDALLayer) (int, error) {
	if srcLayer == nil || dstLayer == nil {
		return 0, fmt.Errorf("源图层或目标图层为空")
	}

	count := 0
	srcLayer.ResetReading()
	for {
		feature := srcLayer.GetNextFeature()
		if feature == nil {
			break
		}
		target := dstLayer.CreateEmptyFeature()
		for i := 0; i < srcLayer.GetFieldCount(); i++ {
			if idx := target.GetFieldIndex(srcLayer.GetFieldName(i)); idx >= 0 && feature.IsFieldSet(i) {
				target.SetFieldStringByIndex(idx, feature.GetFieldAsStringByIndex(i))
			}
		}
		_ = target.SetGeometryDirectly(feature.GetGeometryRef())
		target.SetStyleString(feature.GetStyleString())
		if err := dstLayer.CreateFeature(target); err != nil {
			return count, fmt.Errorf("复制要素失败: %v", err)
		}
		count++
	}
	return count, nil
}

// CopyFieldDefinitions 复制字段定义
func CopyFieldDefinitions(srcLayer, dstLayer *GDALLayer) error {
	if srcLayer == nil || dstLayer == nil {
		return fmt.Errorf("源图层或目标图层为空")
	}
	for i := 0; i < srcLayer.GetFieldCount(); i++ {
		// 驱动自带的字段跳过
		if dstLayer.GetLayerDefn().GetFieldIndex(srcLayer.GetFieldName(i)) >= 0 {
			continue
		}
		field := *srcLayer.GetFieldDefn(i)
		if err := dstLayer.CreateField(&field); err != nil {
			return fmt.Errorf("复制字段 %d 失败: %v", i, err)
		}
	}
	return nil
}
