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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteLayer 图层表
type sqliteLayer struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"uniqueIndex"`
	GeomType int
	SRS      string
	EPSG     int
	Fields   string
}

func (sqliteLayer) TableName() string { return "ogr_layers" }

// sqliteFeature 要素表，几何以WKB保存
type sqliteFeature struct {
	ID         uint  `gorm:"primaryKey"`
	LayerID    uint  `gorm:"index"`
	FID        int64 `gorm:"column:fid"`
	Geometry   []byte
	Attributes string
	Style      string
}

func (sqliteFeature) TableName() string { return "ogr_features" }

// sqliteStyle 样式表
type sqliteStyle struct {
	Name  string `gorm:"primaryKey"`
	Style string
}

func (sqliteStyle) TableName() string { return "ogr_styles" }

// newSQLiteDriver SQLite驱动（图层、要素、样式表三张表）
func newSQLiteDriver() *Driver {
	return &Driver{
		Name:       "SQLite",
		LongName:   "SQLite / Spatialite",
		Extensions: []string{"sqlite", "db"},
		CanOpen:    true,
		CanCreate:  true,
		open:       openSQLite,
		write:      writeSQLite,
	}
}

func openSQLiteDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite3", DSN: path}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开SQLite数据库失败: %w", err)
	}
	return db, nil
}

func closeSQLiteDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// encodeSRS 空间参考的存储形式
func encodeSRS(srs *SpatialReference) (string, error) {
	switch {
	case srs == nil || !srs.IsLocal() && !srs.IsGeographic() && !srs.IsProjected():
		return "", nil
	case srs.IsLocal():
		return "LOCAL_CS:" + srs.Name(), nil
	}
	return srs.ExportToProj4()
}

func decodeSRS(text string, epsg int) (*SpatialReference, error) {
	if text == "" {
		return nil, nil
	}
	srs := NewSpatialReference()
	if epsg != 0 {
		if err := srs.ImportFromEPSG(epsg); err == nil {
			return srs, nil
		}
	}
	if name, ok := strings.CutPrefix(text, "LOCAL_CS:"); ok {
		srs.SetLocalCS(name)
		return srs, nil
	}
	if err := srs.ImportFromProj4(text); err != nil {
		return nil, err
	}
	return srs, nil
}

func openSQLite(path string) (*GDALDataSource, error) {
	db, err := openSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	defer closeSQLiteDB(db)

	if !db.Migrator().HasTable(&sqliteLayer{}) {
		return nil, fmt.Errorf("%s 不是矢量数据库（缺少 ogr_layers 表）", path)
	}

	var layers []sqliteLayer
	if err := db.Order("id").Find(&layers).Error; err != nil {
		return nil, fmt.Errorf("读取图层失败: %w", err)
	}

	ds := &GDALDataSource{}
	for _, rec := range layers {
		srs, err := decodeSRS(rec.SRS, rec.EPSG)
		if err != nil {
			return nil, fmt.Errorf("图层 %s 的坐标系无效: %w", rec.Name, err)
		}
		layer := newLayer(rec.Name, srs, GeomType(rec.GeomType))
		var fields []FieldDefn
		if rec.Fields != "" {
			if err := json.Unmarshal([]byte(rec.Fields), &fields); err != nil {
				return nil, fmt.Errorf("图层 %s 的字段定义无效: %w", rec.Name, err)
			}
		}
		for i := range fields {
			layer.defn.addField(&fields[i])
		}

		var features []sqliteFeature
		if err := db.Where("layer_id = ?", rec.ID).Order("fid").Find(&features).Error; err != nil {
			return nil, fmt.Errorf("读取图层 %s 的要素失败: %w", rec.Name, err)
		}
		for _, fr := range features {
			f := layer.CreateEmptyFeature()
			if len(fr.Geometry) > 0 {
				geom, err := GeometryFromWKB(fr.Geometry)
				if err != nil {
					log.Warnf("图层 %s 要素 %d 的几何无效: %v", rec.Name, fr.FID, err)
				} else {
					_ = f.SetGeometryDirectly(geom)
				}
			}
			attrs := map[string]string{}
			if fr.Attributes != "" {
				_ = json.Unmarshal([]byte(fr.Attributes), &attrs)
			}
			for name, value := range attrs {
				f.SetFieldStringByIndex(f.GetFieldIndex(name), value)
			}
			f.SetStyleString(fr.Style)
			if err := layer.CreateFeature(f); err != nil {
				return nil, err
			}
		}
		ds.addLoadedLayer(layer)
	}

	var styles []sqliteStyle
	if err := db.Find(&styles).Error; err == nil && len(styles) > 0 {
		table := NewStyleTable()
		for _, s := range styles {
			table.AddStyle(s.Name, s.Style)
		}
		ds.SetStyleTable(table)
	}
	return ds, nil
}

func writeSQLite(ds *GDALDataSource) error {
	if err := os.Remove(ds.GetPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("无法覆盖 %s: %w", ds.GetPath(), err)
	}
	db, err := openSQLiteDB(ds.GetPath())
	if err != nil {
		return err
	}
	defer closeSQLiteDB(db)

	if err := db.AutoMigrate(&sqliteLayer{}, &sqliteFeature{}, &sqliteStyle{}); err != nil {
		return fmt.Errorf("创建表失败: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < ds.GetLayerCount(); i++ {
			if err := writeSQLiteLayer(tx, ds.GetLayer(i)); err != nil {
				return err
			}
		}
		if table := ds.GetStyleTable(); table != nil {
			for _, name := range table.Names() {
				if err := tx.Create(&sqliteStyle{Name: name, Style: table.Find(name)}).Error; err != nil {
					return fmt.Errorf("写入样式 %s 失败: %w", name, err)
				}
			}
		}
		return nil
	})
}

func writeSQLiteLayer(tx *gorm.DB, layer *GDALLayer) error {
	srsText, err := encodeSRS(layer.GetSpatialRef())
	if err != nil {
		return err
	}
	fields := make([]FieldDefn, 0, layer.GetFieldCount())
	for i := 0; i < layer.GetFieldCount(); i++ {
		fields = append(fields, *layer.GetFieldDefn(i))
	}
	fieldJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	rec := sqliteLayer{
		Name:     layer.GetName(),
		GeomType: int(layer.GetGeomType()),
		SRS:      srsText,
		Fields:   string(fieldJSON),
	}
	if srs := layer.GetSpatialRef(); srs != nil {
		rec.EPSG = srs.EPSG()
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("写入图层 %s 失败: %w", layer.GetName(), err)
	}

	var batch []sqliteFeature
	var firstErr error
	layer.IterateFeatures(func(feature *GDALFeature) {
		if firstErr != nil {
			return
		}
		fr := sqliteFeature{LayerID: rec.ID, FID: feature.GetFID(), Style: feature.GetStyleString()}
		if geom := feature.GetGeometryRef(); geom != nil && !geom.IsEmpty() {
			data, err := GeometryToWKB(geom)
			if err != nil {
				firstErr = fmt.Errorf("图层 %s 要素 %d: %w", layer.GetName(), feature.GetFID(), err)
				return
			}
			fr.Geometry = data
		}
		attrs := map[string]string{}
		for i := 0; i < feature.GetFieldCount(); i++ {
			if feature.IsFieldSet(i) {
				attrs[layer.GetFieldName(i)] = feature.GetFieldAsStringByIndex(i)
			}
		}
		data, _ := json.Marshal(attrs)
		fr.Attributes = string(data)
		batch = append(batch, fr)
	})
	if firstErr != nil {
		return firstErr
	}
	if len(batch) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(batch, 500).Error; err != nil {
		return fmt.Errorf("写入图层 %s 的要素失败: %w", layer.GetName(), err)
	}
	return nil
}
