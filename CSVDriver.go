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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	csvGeometryColumn = "WKT"
	csvStyleColumn    = "OGR_STYLE"
)

// newCSVDriver CSV驱动，几何以WKT列保存
func newCSVDriver() *Driver {
	return &Driver{
		Name:       "CSV",
		LongName:   "Comma Separated Value (.csv)",
		Extensions: []string{"csv"},
		CanOpen:    true,
		CanCreate:  true,
		MaxLayers:  1,
		open:       openCSV,
		write:      writeCSV,
	}
}

func openCSV(path string) (*GDALDataSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV文件为空: %s", path)
	}

	header := rows[0]
	geomCol, styleCol := -1, -1
	types := make([]FieldType, len(header))
	typed := make([]bool, len(header))
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case csvGeometryColumn:
			geomCol = i
		case csvStyleColumn:
			styleCol = i
		}
	}
	for _, row := range rows[1:] {
		for i := range header {
			if i >= len(row) || row[i] == "" || i == geomCol || i == styleCol {
				continue
			}
			t := inferFieldTypeFromText(row[i])
			if typed[i] {
				t = mergeFieldTypes(types[i], t)
			}
			types[i], typed[i] = t, true
		}
	}

	geomType := GeomUnknown
	if geomCol < 0 {
		geomType = GeomNone
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	layer := newLayer(name, nil, geomType)
	for i, column := range header {
		if i == geomCol || i == styleCol {
			continue
		}
		fieldType := FieldTypeString
		if typed[i] {
			fieldType = types[i]
		}
		layer.defn.addField(NewFieldDefn(column, fieldType))
	}

	for lineNo, row := range rows[1:] {
		f := layer.CreateEmptyFeature()
		for i, value := range row {
			switch {
			case i >= len(header):
			case i == geomCol:
				if strings.TrimSpace(value) == "" {
					continue
				}
				geom, err := GeometryFromWKT(value)
				if err != nil {
					log.Warnf("%s 第%d行几何无效: %v", path, lineNo+2, err)
					continue
				}
				_ = f.SetGeometryDirectly(geom)
			case i == styleCol:
				f.SetStyleString(value)
			case value != "":
				f.SetFieldStringByIndex(f.GetFieldIndex(header[i]), value)
			}
		}
		if err := layer.CreateFeature(f); err != nil {
			return nil, err
		}
	}

	ds := &GDALDataSource{}
	ds.addLoadedLayer(layer)
	return ds, nil
}

func writeCSV(ds *GDALDataSource) error {
	file, err := os.Create(ds.GetPath())
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	layer := ds.GetLayer(0)
	if layer == nil {
		writer.Flush()
		return writer.Error()
	}

	header := []string{csvGeometryColumn}
	for i := 0; i < layer.GetFieldCount(); i++ {
		header = append(header, layer.GetFieldName(i))
	}
	header = append(header, csvStyleColumn)
	if err := writer.Write(header); err != nil {
		return err
	}

	var firstErr error
	layer.IterateFeatures(func(feature *GDALFeature) {
		if firstErr != nil {
			return
		}
		row := make([]string, 0, len(header))
		geomText := ""
		if geom := feature.GetGeometryRef(); geom != nil && !geom.IsEmpty() {
			geomText, firstErr = GeometryToWKT(geom)
		}
		row = append(row, geomText)
		for i := 0; i < layer.GetFieldCount(); i++ {
			row = append(row, feature.GetFieldAsStringByIndex(i))
		}
		row = append(row, feature.GetStyleString())
		if firstErr == nil {
			firstErr = writer.Write(row)
		}
	})
	if firstErr != nil {
		return firstErr
	}
	writer.Flush()
	return writer.Error()
}
