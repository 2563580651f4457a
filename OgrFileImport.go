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
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// gpxTrackPointsLayer GPX轨迹点图层，轨迹线已在单独图层中
const gpxTrackPointsLayer = "track_points"

// ImportOptions 导入选项
type ImportOptions struct {
	ClipLayers           bool
	SeparateLayers       bool
	GeoreferencingImport bool
	UnitType             UnitType
	// SymbolsOnly 只由要素样式建立颜色与符号，不向地图添加对象
	SymbolsOnly bool
}

// NewImportOptions 由配置生成导入选项
func NewImportOptions(manager *GdalManager) ImportOptions {
	return ImportOptions{
		ClipLayers:           manager.IsImportOptionEnabled(ClipLayers),
		SeparateLayers:       manager.IsImportOptionEnabled(SeparateLayers),
		GeoreferencingImport: manager.IsImportOptionEnabled(GeoreferencingImport),
		UnitType:             manager.UnitType(),
	}
}

// ImportStats 因各类原因未能导入的对象数
type ImportStats struct {
	EmptyGeometries         int
	NoTransformation        int
	FailedTransformation    int
	UnsupportedGeometryType int
	TooFewCoordinates       int
}

// OgrFileImport 将矢量数据源导入地图
//
// 一个实例对应一次导入会话，样式缓存、颜色缓存和坐标转换缓存都只属于该会话。
type OgrFileImport struct {
	WarningSink

	path     string
	m        *Map
	options  ImportOptions
	defaults *SessionDefaults

	driverName string
	styles     *StyleCache
	pipeline   *CoordinateTransformPipeline
	stats      ImportStats
}

// NewOgrFileImport 创建导入会话，并向地图添加默认颜色与符号
func NewOgrFileImport(path string, m *Map, options ImportOptions) *OgrFileImport {
	return &OgrFileImport{
		path:     path,
		m:        m,
		options:  options,
		defaults: newSessionDefaults(m),
	}
}

// Defaults 会话默认颜色与符号
func (imp *OgrFileImport) Defaults() *SessionDefaults {
	return imp.defaults
}

// Stats 最近一次导入的统计
func (imp *OgrFileImport) Stats() ImportStats {
	return imp.stats
}

// DriverName 最近一次导入使用的驱动名称
func (imp *OgrFileImport) DriverName() string {
	return imp.driverName
}

// Import 打开文件并导入
func (imp *OgrFileImport) Import() error {
	ds, err := OpenDataSource(imp.path)
	if err != nil {
		return newFileFormatError(err, "无法打开文件 %s", imp.path)
	}
	defer ds.Close()
	return imp.ImportDataSource(ds)
}

// ImportDataSource 导入已打开的数据源
func (imp *OgrFileImport) ImportDataSource(ds *GDALDataSource) error {
	if driver := ds.GetDriver(); driver != nil {
		imp.driverName = driver.GetName()
		if imp.driverName != "" {
			imp.m.SymbolSetID = imp.driverName
		}
	}
	imp.stats = ImportStats{}

	resolver := NewSpatialReferenceResolver(imp.m, &imp.WarningSink)
	var target *SpatialReference
	if imp.options.GeoreferencingImport {
		srs, err := resolver.Resolve(ds)
		if err != nil {
			return err
		}
		target = srs
	} else {
		target = resolver.SRSFromMap()
	}

	imp.styles = NewStyleCache(imp.m, imp.defaults, ds.GetStyleTable())
	imp.pipeline = NewCoordinateTransformPipeline(target, imp.m.Georeferencing(), imp.options.UnitType)
	defer imp.pipeline.Close()

	layerCount := ds.GetLayerCount()
	for i := 0; i < layerCount; i++ {
		layer := ds.GetLayer(i)
		if layer == nil {
			imp.AddWarning(fmt.Sprintf("无法加载图层 %d", i))
			continue
		}
		if layer.GetName() == gpxTrackPointsLayer {
			continue
		}

		part := imp.m.CurrentPart()
		if imp.options.SeparateLayers && !imp.options.SymbolsOnly {
			if part.ObjectCount() == 0 {
				part.Name = layer.GetName()
			} else {
				part = NewMapPart(layer.GetName())
				index := imp.m.PartCount()
				imp.m.AddPart(part, index)
				imp.m.SetCurrentPartIndex(index)
			}
		}
		imp.importLayer(part, layer)
	}

	imp.stats.NoTransformation = imp.pipeline.NoTransformation
	imp.reportStats()
	log.Infof("导入 %s 完成: %d 个对象, %d 个符号", imp.path, imp.m.ObjectCount(), imp.m.SymbolCount())
	return nil
}

// reportStats 每个非零计数汇总为一条警告
func (imp *OgrFileImport) reportStats() {
	report := func(n int, reason string) {
		if n > 0 {
			imp.AddWarning(fmt.Sprintf("有 %d 个对象无法加载，原因：%s", n, reason))
		}
	}
	report(imp.stats.EmptyGeometries, "几何为空")
	report(imp.stats.NoTransformation, "无法确定坐标转换")
	report(imp.stats.FailedTransformation, "坐标转换失败")
	report(imp.stats.UnsupportedGeometryType, "未知或不支持的几何类型")
	report(imp.stats.TooFewCoordinates, "坐标数量不足")
}

func (imp *OgrFileImport) importLayer(part *MapPart, layer *GDALLayer) {
	var clipper *GeometryClippingAdapter
	if imp.options.ClipLayers && layer.TestCapability(OLCFastGetExtent) {
		clipper = imp.layerClipping(layer)
	}

	defn := layer.GetLayerDefn()
	layer.ResetReading()
	for feature := layer.GetNextFeature(); feature != nil; feature = layer.GetNextFeature() {
		geom := feature.GetGeometryRef()
		if geom == nil || geom.IsEmpty() {
			imp.stats.EmptyGeometries++
			feature.Destroy()
			continue
		}
		imp.importFeature(part, defn, feature, geom, clipper)
		feature.Destroy()
	}
}

// layerClipping 以图层外包矩形建立裁剪器，无法换算到地图坐标时不裁剪
func (imp *OgrFileImport) layerClipping(layer *GDALLayer) *GeometryClippingAdapter {
	bound, err := layer.GetExtent()
	if err != nil {
		return nil
	}
	outline := NewGeometry(GeomLinearRing)
	outline.AddPoint2D(bound.Min[0], bound.Min[1])
	outline.AddPoint2D(bound.Max[0], bound.Min[1])
	outline.AddPoint2D(bound.Max[0], bound.Max[1])
	outline.AddPoint2D(bound.Min[0], bound.Max[1])
	outline.AddPoint2D(bound.Min[0], bound.Min[1])

	srs := layer.GetSpatialRef()
	if !imp.pipeline.SetReference(srs) {
		return nil
	}
	if srs != nil {
		if err := imp.pipeline.Transform(outline); err != nil {
			imp.stats.FailedTransformation++
			return nil
		}
	}

	boundary := NewPathObject(nil)
	for i := 0; i < outline.GetPointCount(); i++ {
		boundary.AddCoordinate(imp.pipeline.ToMap(outline.GetX(i), outline.GetY(i)), false)
	}
	boundary.CloseAllParts()
	return NewGeometryClippingAdapter(boundary)
}

func (imp *OgrFileImport) importFeature(part *MapPart, defn *FeatureDefn, feature *GDALFeature, geom *OGRGeometry, clipper *GeometryClippingAdapter) {
	srs := geom.GetSpatialReference()
	if !imp.pipeline.SetReference(srs) {
		return
	}
	if srs != nil {
		if err := imp.pipeline.Transform(geom); err != nil {
			imp.stats.FailedTransformation++
			return
		}
	}

	objects := imp.importGeometry(feature, geom)
	if imp.options.SymbolsOnly {
		return
	}
	tags := importFields(defn, feature)
	objects = imp.handleOverlayIcon(objects, tags)

	if clipper != nil {
		objects = clipper.Clip(objects)
	}

	for _, object := range objects {
		objectTags := object.Tags()
		for _, key := range tags.Keys() {
			if !objectTags.Has(key) {
				objectTags.InsertOrAssign(key, tags.Value(key))
			}
		}
		part.AddObject(object)
	}
}

// importFields 非空字段值转为标签
func importFields(defn *FeatureDefn, feature *GDALFeature) *Tags {
	tags := &Tags{}
	if defn == nil {
		return tags
	}
	for i := 0; i < defn.GetFieldCount(); i++ {
		value := feature.GetFieldAsStringByIndex(i)
		if value != "" {
			tags.InsertOrAssign(defn.GetFieldDefn(i).Name, value)
		}
	}
	return tags
}

// importGeometry 按几何类型生成对象，集合类型递归展开
func (imp *OgrFileImport) importGeometry(feature *GDALFeature, geom *OGRGeometry) []Object {
	switch geom.GetGeometryType() {
	case GeomPoint:
		if object := imp.importPoint(feature, geom); object != nil {
			return []Object{object}
		}
	case GeomLineString:
		if object := imp.importLineString(feature, geom); object != nil {
			return []Object{object}
		}
	case GeomPolygon:
		if object := imp.importPolygon(feature, geom); object != nil {
			return []Object{object}
		}
	case GeomCollection, GeomMultiLineString, GeomMultiPoint, GeomMultiPolygon:
		var result []Object
		for i := 0; i < geom.GetGeometryCount(); i++ {
			if child := geom.GetGeometryRef(i); child != nil {
				result = append(result, imp.importGeometry(feature, child)...)
			}
		}
		return result
	default:
		log.Debugf("未知或不支持的几何类型: %s", geom.GetGeometryName())
		imp.stats.UnsupportedGeometryType++
	}
	return nil
}

// importPoint 点要素生成点对象或文字对象
// 点符号描述中的角度作为旋转，文字符号描述携带锚点、角度和注记
func (imp *OgrFileImport) importPoint(feature *GDALFeature, geom *OGRGeometry) Object {
	symbol := imp.styles.Resolve(SymbolPoint, feature.GetStyleString())
	position := imp.pipeline.ToMap(geom.GetX(0), geom.GetY(0))

	switch s := symbol.(type) {
	case *PointSymbol:
		object := NewPointObject(s)
		object.Coord = position
		if angle, err := strconv.ParseFloat(s.Description, 64); err == nil {
			object.Rotation = angle * math.Pi / 180
			object.Tags().InsertOrAssign("Rotation", strconv.FormatFloat(angle, 'g', -1, 64))
		}
		return object

	case *TextSymbol:
		anchor, angle, label, ok := parseLabelDescription(s.Description)
		if !ok {
			return nil
		}
		if strings.HasPrefix(label, "{") && strings.HasSuffix(label, "}") && len(label) >= 2 {
			field := label[1 : len(label)-1]
			if index := feature.GetFieldIndex(field); index >= 0 {
				label = feature.GetFieldAsStringByIndex(index)
			} else {
				label = field
			}
		}
		if label == "" {
			return nil
		}
		object := NewTextObject(s)
		object.Anchor = position
		object.Text = cleanLabelText(label)
		applyLabelAnchor(anchor, object)
		object.Rotation = angle * math.Pi / 180
		return object
	}
	return nil
}

// importLineString 线要素生成路径，点数少于2时跳过
func (imp *OgrFileImport) importLineString(feature *GDALFeature, geom *OGRGeometry) *PathObject {
	if geom.GetGeometryType() != GeomLineString {
		geom = geom.ForceToLineString()
	}
	n := geom.GetPointCount()
	if n < 2 {
		imp.stats.TooFewCoordinates++
		return nil
	}
	object := NewPathObject(imp.styles.Resolve(SymbolLine, feature.GetStyleString()))
	for i := 0; i < n; i++ {
		object.AddCoordinate(imp.pipeline.ToMap(geom.GetX(i), geom.GetY(i)), false)
	}
	return object
}

// importPolygon 面要素生成闭合路径，内环作为新的部分
func (imp *OgrFileImport) importPolygon(feature *GDALFeature, geom *OGRGeometry) *PathObject {
	if geom.GetGeometryCount() < 1 {
		imp.stats.TooFewCoordinates++
		return nil
	}
	outline := geom.GetGeometryRef(0)
	if outline.GetGeometryType() != GeomLineString {
		outline = outline.ForceToLineString()
	}
	n := outline.GetPointCount()
	if n < 3 {
		imp.stats.TooFewCoordinates++
		return nil
	}

	object := NewPathObject(imp.styles.Resolve(SymbolArea, feature.GetStyleString()))
	for i := 0; i < n; i++ {
		object.AddCoordinate(imp.pipeline.ToMap(outline.GetX(i), outline.GetY(i)), false)
	}
	for g := 1; g < geom.GetGeometryCount(); g++ {
		hole := geom.GetGeometryRef(g)
		for i := 0; i < hole.GetPointCount(); i++ {
			object.AddCoordinate(imp.pipeline.ToMap(hole.GetX(i), hole.GetY(i)), i == 0)
		}
	}
	object.CloseAllParts()
	return object
}

// handleOverlayIcon KML地面叠加图片：带icon字段的单个五点路径转为底图模板
func (imp *OgrFileImport) handleOverlayIcon(objects []Object, tags *Tags) []Object {
	if len(objects) != 1 || !tags.Has(kmlOverlayField) {
		return objects
	}
	path, ok := objects[0].(*PathObject)
	if !ok || path.CoordinateCount() != 5 {
		return objects
	}

	icon := tags.Value(kmlOverlayField)
	iconPath := icon
	if !strings.HasPrefix(icon, "/") && !strings.Contains(icon, ":") {
		base := imp.path
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
		iconPath = filepath.Join(filepath.Dir(base), icon)
	}
	if _, err := os.Stat(iconPath); err != nil {
		log.Debugf("叠加图片不存在: %s", icon)
		return objects
	}

	template := &Template{Path: iconPath, ApplyCornerPassPoints: true}
	for _, part := range path.Parts {
		for _, c := range part.Coords {
			template.PassPoints = append(template.PassPoints, c.F())
		}
	}
	imp.m.AddTemplate(template)
	return nil
}
