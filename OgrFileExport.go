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
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// exportIDPrefix 导出格式标识前缀
const exportIDPrefix = "OGR-export-"

// 名称字段
const (
	exportNameField  = "Name"
	exportLayerField = "Layer"
	exportNameWidth  = 32
)

// symbolNamespace 符号样式键的命名空间
var symbolNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/GrainArc/OgrMapper/symbol"))

// OgrQuirk 导出驱动的特殊要求
type OgrQuirk uint8

const (
	// GeorefOptional 允许没有地理参考
	GeorefOptional OgrQuirk = 1 << iota
	// NeedsWgs84 坐标必须为WGS84经纬度
	NeedsWgs84
	// SingleLayer 只能写一个图层
	SingleLayer
	// UseLayerField 用Layer字段代替名称字段
	UseLayerField
)

// Has 是否包含指定要求
func (q OgrQuirk) Has(flag OgrQuirk) bool {
	return q&flag != 0
}

var driverQuirks = map[string]OgrQuirk{
	"ARCGEN":        GeorefOptional,
	"BNA":           GeorefOptional,
	"CSV":           GeorefOptional | SingleLayer,
	"DGN":           GeorefOptional,
	"DGNv8":         GeorefOptional,
	"DWG":           GeorefOptional,
	"DXF":           GeorefOptional | SingleLayer | UseLayerField,
	"GeoJSON":       NeedsWgs84 | SingleLayer,
	"Geomedia":      GeorefOptional,
	"GPX":           NeedsWgs84,
	"INGRES":        GeorefOptional,
	"LIBKML":        NeedsWgs84,
	"Memory":        GeorefOptional,
	"ODS":           GeorefOptional,
	"OpenJUMP .jml": GeorefOptional,
	"REC":           GeorefOptional,
	"SEGY":          GeorefOptional,
	"SQLite":        GeorefOptional,
	"XLS":           GeorefOptional,
	"XLSX":          GeorefOptional,
}

// QuirksForDriver 驱动的导出要求，未登记的驱动没有特殊要求
func QuirksForDriver(name string) OgrQuirk {
	return driverQuirks[name]
}

// ExportOptions 导出选项
type ExportOptions struct {
	// PerSymbolLayers 每个符号一个图层
	PerSymbolLayers bool
}

// NewExportOptions 由配置生成导出选项
func NewExportOptions(manager *GdalManager) ExportOptions {
	return ExportOptions{PerSymbolLayers: manager.IsExportOptionEnabled(OneLayerPerSymbol)}
}

// OgrFileExport 将地图导出为矢量数据源
type OgrFileExport struct {
	WarningSink

	path    string
	m       *Map
	id      string
	options ExportOptions

	quirks         OgrQuirk
	mapSRS         *SpatialReference
	transformation *CoordinateTransformation
	ds             *GDALDataSource
	table          *StyleTable
	symbolIDs      map[Symbol]string
	symbolField    string
	nameField      *FieldDefn
}

// NewOgrFileExport 创建导出会话，id为驱动名称，可带 "OGR-export-" 前缀
func NewOgrFileExport(path string, m *Map, id string, options ExportOptions) *OgrFileExport {
	return &OgrFileExport{
		path:    path,
		m:       m,
		id:      strings.TrimPrefix(id, exportIDPrefix),
		options: options,
	}
}

// Quirks 当前导出驱动的要求
func (e *OgrFileExport) Quirks() OgrQuirk {
	return e.quirks
}

// StyleTable 本次导出生成的样式表
func (e *OgrFileExport) StyleTable() *StyleTable {
	return e.table
}

// SymbolID 符号在样式表中的键
func (e *OgrFileExport) SymbolID(symbol Symbol) string {
	return e.symbolIDs[symbol]
}

// Export 执行导出
func (e *OgrFileExport) Export() (err error) {
	driver, lookupErr := GetDriverByName(e.id)
	if e.id == "" || lookupErr != nil || !driver.CanCreate {
		return newFileFormatError(ErrDriverNotFound, "找不到名为 '%s' 的矢量数据导出驱动", e.id)
	}

	e.quirks = QuirksForDriver(driver.GetName())
	if err := e.setupGeoreferencing(driver); err != nil {
		return err
	}
	defer func() {
		if e.transformation != nil {
			e.transformation.Destroy()
			e.transformation = nil
		}
	}()

	ds, createErr := driver.CreateDataSource(e.path)
	if createErr != nil {
		return newFileFormatError(createErr, "创建数据集失败")
	}
	e.ds = ds
	defer func() {
		if closeErr := ds.Close(); closeErr != nil && err == nil {
			err = newFileFormatError(closeErr, "写出数据集失败")
		}
	}()

	if e.quirks.Has(UseLayerField) {
		e.symbolField = exportLayerField
		e.nameField = nil
	} else {
		e.symbolField = exportNameField
		e.nameField = NewFieldDefn(exportNameField, FieldTypeString)
		e.nameField.SetWidth(exportNameWidth)
	}

	symbols := e.symbolsForExport()
	e.populateStyleTable(symbols)
	ds.SetStyleTable(e.table)

	switch {
	case e.quirks.Has(SingleLayer):
		err = e.exportSingleLayer(symbols)
	case e.options.PerSymbolLayers:
		err = e.exportPerSymbolLayers(symbols)
	default:
		err = e.exportPerTypeLayers()
	}
	if err != nil {
		return err
	}
	log.Infof("导出 %s 完成: %d 个符号, %d 个图层", e.path, len(symbols), ds.GetLayerCount())
	return nil
}

// setupGeoreferencing 确定输出空间参考
func (e *OgrFileExport) setupGeoreferencing(driver *Driver) error {
	georef := e.m.Georeferencing()
	localOnly := false
	if georef.State == GeorefLocal {
		localOnly = true
		e.AddWarning("地图没有地理参考，只导出本地坐标")
	}

	e.mapSRS = localMapSRS()
	if !localOnly {
		e.mapSRS = NewSpatialReference()
		e.mapSRS.SetProjCS("Projected map SRS")
		_ = e.mapSRS.SetWellKnownGeogCS("WGS84")
		if err := e.mapSRS.ImportFromProj4(georef.ProjectedCRSSpec); err != nil {
			localOnly = true
			e.mapSRS = localMapSRS()
			e.AddWarning(fmt.Sprintf("无法导出地理参考信息，只导出本地坐标: %v", err))
		}
	}

	if localOnly && !e.quirks.Has(GeorefOptional) {
		return newFileFormatError(ErrNoSuitableSRS, "%s 驱动需要有效的地理参考", driver.GetName())
	}

	if e.quirks.Has(NeedsWgs84) {
		ct, err := NewCoordinateTransformation(e.mapSRS, NewWGS84())
		if err != nil {
			return newFileFormatError(err, "无法建立到WGS84的坐标转换")
		}
		e.transformation = ct
	}
	return nil
}

// localMapSRS 没有地理参考时输出使用的本地坐标系
func localMapSRS() *SpatialReference {
	srs := NewSpatialReference()
	srs.SetLocalCS("Map SRS")
	return srs
}

// symbolsForExport 使用中且非隐藏、非辅助的符号，按颜色优先级排序
func (e *OgrFileExport) symbolsForExport() []Symbol {
	inUse := e.m.DetermineSymbolsInUse()
	var symbols []Symbol
	for i := 0; i < e.m.SymbolCount(); i++ {
		symbol := e.m.GetSymbol(i)
		common := symbol.Common()
		if inUse[symbol] && !common.Hidden && !common.Helper {
			symbols = append(symbols, symbol)
		}
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		return LessByColorPriority(symbols[i], symbols[j])
	})
	return symbols
}

// populateStyleTable 为每个符号生成一条样式
func (e *OgrFileExport) populateStyleTable(symbols []Symbol) {
	e.table = NewStyleTable()
	e.symbolIDs = make(map[Symbol]string, len(symbols))
	for _, symbol := range symbols {
		id := uuid.NewSHA1(symbolNamespace, []byte(fmt.Sprintf("%d/%s", e.m.FindSymbolIndex(symbol), symbol.Common().Name))).String()
		e.symbolIDs[symbol] = id

		style := MakeStyleString(symbol)
		log.Debugf("%s:\t%q", symbol.Common().PlainTextName(), style)
		e.table.AddStyle(id, style)
	}
}

// baseName 文件名中第一个点之前的部分
func (e *OgrFileExport) baseName() string {
	name := filepath.Base(e.path)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

func isLineSymbol(symbol Symbol) bool {
	return symbol.Type() == SymbolLine ||
		(symbol.Type() == SymbolCombined && symbol.ContainedTypes()&SymbolArea == 0)
}

func hasSymbolType(object Object, t SymbolType) bool {
	return object.Symbol() != nil && object.Symbol().ContainedTypes()&t != 0
}

func matchSymbol(symbol Symbol) func(Object) bool {
	return func(object Object) bool {
		return object.Symbol() == symbol
	}
}

func (e *OgrFileExport) exportSingleLayer(symbols []Symbol) error {
	layer := e.createLayer("Layer", GeomUnknown)
	if layer == nil {
		return newFileFormatError(nil, "创建图层失败")
	}
	for _, symbol := range symbols {
		var err error
		match := matchSymbol(symbol)
		switch {
		case symbol.Type() == SymbolPoint:
			err = e.addPointsToLayer(layer, match)
		case symbol.Type() == SymbolText:
			err = e.addTextToLayer(layer, match)
		case isLineSymbol(symbol):
			err = e.addLinesToLayer(layer, match)
		case symbol.ContainedTypes()&SymbolArea != 0:
			err = e.addAreasToLayer(layer, match)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// exportPerSymbolLayers 依次写点与文字、线、面，兼顾GPX等驱动的图层顺序要求
func (e *OgrFileExport) exportPerSymbolLayers(symbols []Symbol) error {
	layerName := func(symbol Symbol) string {
		return e.baseName() + "_" + symbol.Common().PlainTextName()
	}
	for _, symbol := range symbols {
		var err error
		switch symbol.Type() {
		case SymbolPoint:
			if layer := e.createLayer(layerName(symbol), GeomPoint); layer != nil {
				err = e.addPointsToLayer(layer, matchSymbol(symbol))
			}
		case SymbolText:
			if layer := e.createLayer(layerName(symbol), GeomPoint); layer != nil {
				err = e.addTextToLayer(layer, matchSymbol(symbol))
			}
		}
		if err != nil {
			return err
		}
	}
	for _, symbol := range symbols {
		if !isLineSymbol(symbol) {
			continue
		}
		if layer := e.createLayer(layerName(symbol), GeomLineString); layer != nil {
			if err := e.addLinesToLayer(layer, matchSymbol(symbol)); err != nil {
				return err
			}
		}
	}
	for _, symbol := range symbols {
		if symbol.ContainedTypes()&SymbolArea == 0 {
			continue
		}
		if layer := e.createLayer(layerName(symbol), GeomPolygon); layer != nil {
			if err := e.addAreasToLayer(layer, matchSymbol(symbol)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *OgrFileExport) exportPerTypeLayers() error {
	base := e.baseName()
	if layer := e.createLayer(base+"_points", GeomPoint); layer != nil {
		if err := e.addPointsToLayer(layer, func(o Object) bool { return hasSymbolType(o, SymbolPoint) }); err != nil {
			return err
		}
		if err := e.addTextToLayer(layer, func(o Object) bool { return hasSymbolType(o, SymbolText) }); err != nil {
			return err
		}
	}
	if layer := e.createLayer(base+"_lines", GeomLineString); layer != nil {
		if err := e.addLinesToLayer(layer, func(o Object) bool { return o.Symbol() != nil && isLineSymbol(o.Symbol()) }); err != nil {
			return err
		}
	}
	if layer := e.createLayer(base+"_areas", GeomPolygon); layer != nil {
		if err := e.addAreasToLayer(layer, func(o Object) bool { return hasSymbolType(o, SymbolArea) }); err != nil {
			return err
		}
	}
	return nil
}

// createLayer 创建图层并添加名称字段，失败时记录警告并返回nil
func (e *OgrFileExport) createLayer(name string, geomType GeomType) *GDALLayer {
	srs := e.mapSRS
	if e.quirks.Has(NeedsWgs84) {
		srs = e.transformation.Target()
	}
	layer, err := e.ds.CreateLayer(name, srs, geomType)
	if err != nil {
		e.AddWarning(fmt.Sprintf("无法创建图层 %s: %v", name, err))
		return nil
	}
	if !e.quirks.Has(UseLayerField) {
		field := *e.nameField
		if err := layer.CreateField(&field); err != nil {
			e.AddWarning(fmt.Sprintf("无法创建名称字段: %v", err))
		}
	}
	return layer
}

// truncateRunes 截取前n个字符
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// newExportFeature 创建要素并写入符号名称
func (e *OgrFileExport) newExportFeature(layer *GDALLayer, symbol Symbol) *GDALFeature {
	feature := layer.CreateEmptyFeature()
	_ = feature.SetFieldString(e.symbolField, truncateRunes(symbol.Common().PlainTextName(), exportNameWidth))
	return feature
}

// projected 地图坐标转为输出坐标
func (e *OgrFileExport) projected(geom *OGRGeometry) {
	if !e.quirks.Has(NeedsWgs84) {
		geom.AssignSpatialReference(e.mapSRS)
		return
	}
	if err := geom.Transform(e.transformation); err != nil {
		log.Debugf("坐标转换失败: %v", err)
	}
}

func (e *OgrFileExport) writeFeature(layer *GDALLayer, feature *GDALFeature) error {
	defer feature.Destroy()
	if err := layer.CreateFeature(feature); err != nil {
		return newFileFormatError(err, "无法在图层 %s 中创建要素", layer.GetName())
	}
	return nil
}

func (e *OgrFileExport) pointGeometry(p MapCoordF) *OGRGeometry {
	proj := e.m.Georeferencing().ToProjectedCoords(p)
	geom := NewGeometry(GeomPoint)
	geom.AddPoint2D(proj[0], proj[1])
	e.projected(geom)
	return geom
}

func (e *OgrFileExport) addPointsToLayer(layer *GDALLayer, condition func(Object) bool) error {
	return e.m.ApplyOnMatchingObjects(func(object Object) error {
		point, ok := object.(*PointObject)
		if !ok {
			return nil
		}
		symbol := point.Symbol()
		feature := e.newExportFeature(layer, symbol)
		_ = feature.SetGeometryDirectly(e.pointGeometry(point.Coord.F()))
		feature.SetStyleString(e.table.Find(e.symbolIDs[symbol]))
		return e.writeFeature(layer, feature)
	}, condition)
}

var labelTextEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// addTextToLayer 文字写入名称字段；没有名称字段或文字过长时直接代入样式中的{Name}
func (e *OgrFileExport) addTextToLayer(layer *GDALLayer, condition func(Object) bool) error {
	return e.m.ApplyOnMatchingObjects(func(object Object) error {
		text, ok := object.(*TextObject)
		if !ok {
			return nil
		}
		symbol := text.Symbol()
		feature := e.newExportFeature(layer, symbol)
		if e.nameField != nil {
			_ = feature.SetFieldString(e.nameField.Name, truncateRunes(text.Text, exportNameWidth))
		}
		_ = feature.SetGeometryDirectly(e.pointGeometry(text.Anchor.F()))

		style := e.table.Find(e.symbolIDs[symbol])
		if e.nameField == nil || utf8.RuneCountInString(text.Text) > exportNameWidth {
			style = strings.ReplaceAll(style, "{Name}", labelTextEscaper.Replace(text.Text))
		}
		feature.SetStyleString(style)
		return e.writeFeature(layer, feature)
	}, condition)
}

// addLinesToLayer 每个路径部分写为一个线要素
func (e *OgrFileExport) addLinesToLayer(layer *GDALLayer, condition func(Object) bool) error {
	georef := e.m.Georeferencing()
	return e.m.ApplyOnMatchingObjects(func(object Object) error {
		path, ok := object.(*PathObject)
		if !ok || len(path.Parts) == 0 {
			return nil
		}
		symbol := path.Symbol()
		style := e.table.Find(e.symbolIDs[symbol])
		for _, part := range path.Parts {
			line := NewGeometry(GeomLineString)
			for _, c := range part.Coords {
				p := georef.ToProjectedCoords(c.F())
				line.AddPoint2D(p[0], p[1])
			}
			e.projected(line)

			feature := e.newExportFeature(layer, symbol)
			_ = feature.SetGeometryDirectly(line)
			feature.SetStyleString(style)
			if err := e.writeFeature(layer, feature); err != nil {
				return err
			}
		}
		return nil
	}, condition)
}

// addAreasToLayer 每个路径写为一个面要素，各部分为闭合环
func (e *OgrFileExport) addAreasToLayer(layer *GDALLayer, condition func(Object) bool) error {
	georef := e.m.Georeferencing()
	return e.m.ApplyOnMatchingObjects(func(object Object) error {
		path, ok := object.(*PathObject)
		if !ok || len(path.Parts) == 0 {
			return nil
		}
		symbol := path.Symbol()
		polygon := NewGeometry(GeomPolygon)
		for _, part := range path.Parts {
			ring := NewGeometry(GeomLinearRing)
			for _, c := range part.Coords {
				p := georef.ToProjectedCoords(c.F())
				ring.AddPoint2D(p[0], p[1])
			}
			ring.CloseRings()
			_ = polygon.AddGeometryDirectly(ring)
		}
		e.projected(polygon)

		feature := e.newExportFeature(layer, symbol)
		_ = feature.SetGeometryDirectly(polygon)
		feature.SetStyleString(e.table.Find(e.symbolIDs[symbol]))
		return e.writeFeature(layer, feature)
	}, condition)
}
