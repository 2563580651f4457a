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
)

// newMemoryDriver 内存驱动，数据只保存在进程内
func newMemoryDriver() *Driver {
	return &Driver{
		Name:      "Memory",
		LongName:  "Memory",
		CanCreate: true,
	}
}

// ==================== 图层操作函数 ====================

// CreateMemoryLayer 创建内存图层
func CreateMemoryLayer(layerName string, srs *SpatialReference, geomType GeomType) (*GDALLayer, error) {
	driver, err := GetDriverByName("Memory")
	if err != nil {
		return nil, fmt.Errorf("无法获取Memory驱动: %w", err)
	}

	dataset, err := driver.CreateDataSource("")
	if err != nil {
		return nil, fmt.Errorf("创建数据源失败: %w", err)
	}

	layer, err := dataset.CreateLayer(layerName, srs, geomType)
	if err != nil {
		return nil, fmt.Errorf("创建图层失败: %w", err)
	}
	return layer, nil
}

// CreateMemoryDataSource 创建内存数据源
func CreateMemoryDataSource() *GDALDataSource {
	driver, _ := GetDriverByName("Memory")
	ds, _ := driver.CreateDataSource("")
	return ds
}
