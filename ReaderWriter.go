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
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// driverForPath 按扩展名查找驱动
func driverForPath(filePath string, forWrite bool) (*Driver, error) {
	for _, d := range registeredDrivers() {
		if forWrite && !d.CanCreate || !forWrite && !d.CanOpen {
			continue
		}
		if d.matchesExtension(filePath) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("不支持的文件类型: %s", strings.ToLower(filepath.Ext(filePath)))
}

// FileGeoReader 文件地理数据读取器
type FileGeoReader struct {
	FilePath string
	Driver   string
}

// NewFileGeoReader 创建新的文件地理数据读取器
func NewFileGeoReader(filePath string) (*FileGeoReader, error) {
	// 检查文件是否存在
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("文件不存在: %s", filePath)
	}

	driver, err := driverForPath(filePath, false)
	if err != nil {
		return nil, err
	}

	return &FileGeoReader{
		FilePath: filePath,
		Driver:   driver.GetName(),
	}, nil
}

// open 用指定驱动打开数据源
func (r *FileGeoReader) open() (*GDALDataSource, error) {
	driver, err := GetDriverByName(r.Driver)
	if err != nil {
		return nil, err
	}
	ds, err := driver.Open(r.FilePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开文件 %s: %w", r.FilePath, err)
	}
	return ds, nil
}

// ReadLayer 读取图层，未指定名称时返回第一个图层
func (r *FileGeoReader) ReadLayer(layerName ...string) (*GDALLayer, error) {
	ds, err := r.open()
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	if len(layerName) > 0 && layerName[0] != "" {
		layer := ds.GetLayerByName(layerName[0])
		if layer == nil {
			return nil, fmt.Errorf("图层不存在: %s", layerName[0])
		}
		return layer, nil
	}
	if ds.GetLayerCount() == 0 {
		return nil, fmt.Errorf("文件中没有图层: %s", r.FilePath)
	}
	return ds.GetLayer(0), nil
}

// ListLayers 列出所有图层
func (r *FileGeoReader) ListLayers() ([]string, error) {
	ds, err := r.open()
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	layers := make([]string, 0, ds.GetLayerCount())
	for i := 0; i < ds.GetLayerCount(); i++ {
		if layer := ds.GetLayer(i); layer != nil {
			layers = append(layers, layer.GetName())
		}
	}
	return layers, nil
}

// GetLayerInfo 获取图层信息
func (r *FileGeoReader) GetLayerInfo(layerName ...string) (map[string]interface{}, error) {
	layer, err := r.ReadLayer(layerName...)
	if err != nil {
		return nil, err
	}

	info := make(map[string]interface{})
	info["feature_count"] = layer.GetFeatureCount()
	info["geometry_type"] = layer.GetGeometryType()
	info["field_count"] = layer.GetFieldCount()

	fields := make([]map[string]interface{}, 0, layer.GetFieldCount())
	for i := 0; i < layer.GetFieldCount(); i++ {
		fields = append(fields, map[string]interface{}{
			"index": i,
			"name":  layer.GetFieldName(i),
			"type":  layer.GetFieldType(i),
		})
	}
	info["fields"] = fields

	if srs := layer.GetSpatialRef(); srs != nil {
		if proj, err := srs.ExportToProj4(); err == nil {
			info["projection"] = proj
		}
	}
	if bound, err := layer.GetExtent(); err == nil {
		info["extent"] = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	}
	return info, nil
}

// GetFieldType 获取字段类型
func (gl *GDALLayer) GetFieldType(index int) string {
	if defn := gl.GetFieldDefn(index); defn != nil {
		return defn.Type.String()
	}
	return ""
}

// ReadGeospatialFile 通用读取地理空间文件
func ReadGeospatialFile(filePath string, layerName ...string) (*GDALLayer, error) {
	reader, err := NewFileGeoReader(filePath)
	if err != nil {
		return nil, err
	}
	return reader.ReadLayer(layerName...)
}

// FileGeoWriter 文件地理数据写入器
type FileGeoWriter struct {
	FilePath  string
	Driver    string
	Overwrite bool // 是否覆盖已存在的文件
}

// NewFileGeoWriter 创建新的文件地理数据写入器
func NewFileGeoWriter(filePath string, overwrite bool) (*FileGeoWriter, error) {
	driver, err := driverForPath(filePath, true)
	if err != nil {
		return nil, err
	}
	return &FileGeoWriter{
		FilePath:  filePath,
		Driver:    driver.GetName(),
		Overwrite: overwrite,
	}, nil
}

// WriteLayer 将源图层（字段、要素和样式）写入新文件
func (w *FileGeoWriter) WriteLayer(sourceLayer *GDALLayer, layerName string) error {
	if sourceLayer == nil {
		return fmt.Errorf("源图层为空")
	}
	if _, err := os.Stat(w.FilePath); err == nil {
		if !w.Overwrite {
			return fmt.Errorf("文件已存在: %s", w.FilePath)
		}
		if err := os.Remove(w.FilePath); err != nil {
			return fmt.Errorf("删除已存在文件失败: %w", err)
		}
	}
	if layerName == "" {
		layerName = sourceLayer.GetName()
	}

	driver, err := GetDriverByName(w.Driver)
	if err != nil {
		return err
	}
	ds, err := driver.CreateDataSource(w.FilePath)
	if err != nil {
		return fmt.Errorf("创建数据源失败: %w", err)
	}

	targetLayer, err := ds.CreateLayer(layerName, sourceLayer.GetSpatialRef(), sourceLayer.GetGeomType())
	if err != nil {
		ds.Close()
		return fmt.Errorf("创建图层失败: %w", err)
	}
	if err := CopyFieldDefinitions(sourceLayer, targetLayer); err != nil {
		ds.Close()
		return err
	}
	count, err := CopyAllFeatures(sourceLayer, targetLayer)
	if err != nil {
		ds.Close()
		return err
	}
	if sourceLayer.dataset != nil && sourceLayer.dataset.GetStyleTable() != nil {
		ds.SetStyleTable(sourceLayer.dataset.GetStyleTable())
	}
	if err := ds.Close(); err != nil {
		return err
	}
	log.Infof("写入 %s: 图层 %s, %d 个要素", w.FilePath, layerName, count)
	return nil
}

// WriteGeospatialFile 通用写入地理空间文件
func WriteGeospatialFile(sourceLayer *GDALLayer, filePath string, layerName string, overwrite bool) error {
	writer, err := NewFileGeoWriter(filePath, overwrite)
	if err != nil {
		return err
	}
	return writer.WriteLayer(sourceLayer, layerName)
}

// ConvertFile 文件格式转换
func ConvertFile(sourceFilePath string, targetFilePath string, sourceLayerName string, targetLayerName string, overwrite bool) error {
	sourceReader, err := NewFileGeoReader(sourceFilePath)
	if err != nil {
		return fmt.Errorf("无法读取源文件: %v", err)
	}

	sourceLayer, err := sourceReader.ReadLayer(sourceLayerName)
	if err != nil {
		return fmt.Errorf("无法读取源图层: %v", err)
	}

	if err := WriteGeospatialFile(sourceLayer, targetFilePath, targetLayerName, overwrite); err != nil {
		return fmt.Errorf("无法写入目标文件: %v", err)
	}
	return nil
}
