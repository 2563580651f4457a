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
	"sync"

	log "github.com/sirupsen/logrus"
)

// Driver 矢量数据驱动
type Driver struct {
	Name       string
	LongName   string
	Extensions []string
	CanOpen    bool
	CanCreate  bool
	// MaxLayers 数据源可容纳的最大图层数，0表示不限
	MaxLayers int
	// LayerFields 新建图层自带的字符串字段
	LayerFields []string

	open           func(path string) (*GDALDataSource, error)
	write          func(ds *GDALDataSource) error
	acceptLayer    func(name string, geomType GeomType) error
	acceptGeometry func(layer *GDALLayer, geom *OGRGeometry) error
}

// GetName 驱动名称
func (d *Driver) GetName() string {
	return d.Name
}

// matchesExtension 文件扩展名是否属于该驱动
func (d *Driver) matchesExtension(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range d.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Open 打开已有数据源（只读）
func (d *Driver) Open(path string) (*GDALDataSource, error) {
	if !d.CanOpen || d.open == nil {
		return nil, fmt.Errorf("驱动 %s 不支持读取", d.Name)
	}
	ds, err := d.open(path)
	if err != nil {
		return nil, err
	}
	ds.driver = d
	ds.path = path
	for _, layer := range ds.layers {
		layer.dataset = ds
		layer.readOnly = true
	}
	return ds, nil
}

// CreateDataSource 创建新的数据源，关闭时写出
func (d *Driver) CreateDataSource(path string) (*GDALDataSource, error) {
	if !d.CanCreate {
		return nil, fmt.Errorf("驱动 %s 不支持创建数据源", d.Name)
	}
	if d.write != nil {
		dir := filepath.Dir(path)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("目录不存在: %s", dir)
		}
	}
	return &GDALDataSource{driver: d, path: path, writable: true}, nil
}

var (
	driverRegistry     []*Driver
	driverRegistryOnce sync.Once
)

// registeredDrivers 已注册的驱动（按注册顺序）
func registeredDrivers() []*Driver {
	driverRegistryOnce.Do(func() {
		driverRegistry = []*Driver{
			newMemoryDriver(),
			newGeoJSONDriver(),
			newSQLiteDriver(),
			newCSVDriver(),
			newKMLDriver(),
			newGPXDriver(),
			newDXFDriver(),
		}
	})
	return driverRegistry
}

// GetDriverCount 驱动数量
func GetDriverCount() int {
	return len(registeredDrivers())
}

// GetDriver 第i个驱动
func GetDriver(i int) *Driver {
	drivers := registeredDrivers()
	if i < 0 || i >= len(drivers) {
		return nil
	}
	return drivers[i]
}

// GetDriverByName 按名称查找驱动
func GetDriverByName(name string) (*Driver, error) {
	for _, d := range registeredDrivers() {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, name)
}

// OpenDataSource 根据文件扩展名选择驱动打开数据源
func OpenDataSource(path string) (*GDALDataSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("无法打开文件 %s: %w", path, err)
	}
	var lastErr error
	for _, d := range registeredDrivers() {
		if !d.CanOpen || !d.matchesExtension(path) {
			continue
		}
		ds, err := d.Open(path)
		if err == nil {
			log.Debugf("使用驱动 %s 打开 %s", d.Name, path)
			return ds, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, path)
}

// GDALDataSource 矢量数据源
type GDALDataSource struct {
	driver     *Driver
	path       string
	layers     []*GDALLayer
	styleTable *StyleTable
	writable   bool
	closed     bool
}

// GetDriver 数据源驱动
func (ds *GDALDataSource) GetDriver() *Driver {
	return ds.driver
}

// GetPath 数据源路径
func (ds *GDALDataSource) GetPath() string {
	return ds.path
}

// GetLayerCount 图层数量
func (ds *GDALDataSource) GetLayerCount() int {
	return len(ds.layers)
}

// GetLayer 第i个图层
func (ds *GDALDataSource) GetLayer(i int) *GDALLayer {
	if i < 0 || i >= len(ds.layers) {
		return nil
	}
	return ds.layers[i]
}

// GetLayerByName 按名称获取图层
func (ds *GDALDataSource) GetLayerByName(name string) *GDALLayer {
	for _, layer := range ds.layers {
		if layer.name == name {
			return layer
		}
	}
	return nil
}

// CreateLayer 创建图层
func (ds *GDALDataSource) CreateLayer(name string, srs *SpatialReference, geomType GeomType) (*GDALLayer, error) {
	if ds.closed {
		return nil, fmt.Errorf("数据源已关闭")
	}
	if !ds.writable {
		return nil, fmt.Errorf("数据源 %s 为只读", ds.path)
	}
	if ds.driver != nil && ds.driver.MaxLayers > 0 && len(ds.layers) >= ds.driver.MaxLayers {
		return nil, fmt.Errorf("驱动 %s 只支持 %d 个图层", ds.driver.Name, ds.driver.MaxLayers)
	}
	if ds.GetLayerByName(name) != nil {
		return nil, fmt.Errorf("图层 %s 已存在", name)
	}
	if ds.driver != nil && ds.driver.acceptLayer != nil {
		if err := ds.driver.acceptLayer(name, geomType); err != nil {
			return nil, err
		}
	}
	var layerSRS *SpatialReference
	if srs != nil {
		layerSRS = srs.Clone()
	}
	layer := newLayer(name, layerSRS, geomType)
	layer.dataset = ds
	if ds.driver != nil {
		for _, field := range ds.driver.LayerFields {
			layer.defn.addField(NewFieldDefn(field, FieldTypeString))
		}
	}
	ds.layers = append(ds.layers, layer)
	return layer, nil
}

// addLoadedLayer 由驱动读取数据时追加图层
func (ds *GDALDataSource) addLoadedLayer(layer *GDALLayer) {
	layer.dataset = ds
	ds.layers = append(ds.layers, layer)
}

// SetStyleTable 设置样式表
func (ds *GDALDataSource) SetStyleTable(table *StyleTable) {
	ds.styleTable = table
}

// GetStyleTable 获取样式表
func (ds *GDALDataSource) GetStyleTable() *StyleTable {
	return ds.styleTable
}

// Close 关闭数据源，可写数据源在此写出，重复调用无副作用
func (ds *GDALDataSource) Close() error {
	if ds == nil || ds.closed {
		return nil
	}
	ds.closed = true
	if !ds.writable || ds.driver == nil || ds.driver.write == nil {
		return nil
	}
	if err := ds.driver.write(ds); err != nil {
		return fmt.Errorf("写出数据源 %s 失败: %w", ds.path, err)
	}
	return nil
}
