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
	"encoding/xml"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-kml"
)

// newKMLDriver KML驱动，坐标固定为WGS84经纬度
func newKMLDriver() *Driver {
	return &Driver{
		Name:       "LIBKML",
		LongName:   "Keyhole Markup Language (LIBKML)",
		Extensions: []string{"kml"},
		CanOpen:    true,
		CanCreate:  true,
		open:       openKML,
		write:      writeKML,
	}
}

// KML读取结构
type kmlContainer struct {
	ID         string         `xml:"id,attr"`
	Name       string         `xml:"name"`
	Styles     []kmlStyle     `xml:"Style"`
	Documents  []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
	Overlays   []kmlOverlay   `xml:"GroundOverlay"`
}

// kmlOverlay 地面叠加图片
type kmlOverlay struct {
	Name      string `xml:"name"`
	Href      string `xml:"Icon>href"`
	LatLonBox struct {
		North float64 `xml:"north"`
		South float64 `xml:"south"`
		East  float64 `xml:"east"`
		West  float64 `xml:"west"`
	} `xml:"LatLonBox"`
}

// kmlOverlayField 叠加图片路径字段
const kmlOverlayField = "icon"

// geometry 叠加范围按左下、右下、右上、左上的顺序形成闭合环
func (o *kmlOverlay) geometry() *OGRGeometry {
	b := o.LatLonBox
	return polygonFromOrb(orb.Polygon{{
		{b.West, b.South}, {b.East, b.South}, {b.East, b.North}, {b.West, b.North}, {b.West, b.South},
	}})
}

type kmlPlacemark struct {
	Name          string            `xml:"name"`
	Description   string            `xml:"description"`
	StyleURL      string            `xml:"styleUrl"`
	Style         *kmlStyle         `xml:"Style"`
	ExtendedData  kmlExtendedData   `xml:"ExtendedData"`
	Point         *kmlCoordinates   `xml:"Point"`
	LineString    *kmlCoordinates   `xml:"LineString"`
	Polygon       *kmlPolygon       `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoordinates   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoordinates `xml:"innerBoundaryIs>LinearRing"`
}

type kmlMultiGeometry struct {
	Points      []kmlCoordinates   `xml:"Point"`
	LineStrings []kmlCoordinates   `xml:"LineString"`
	Polygons    []kmlPolygon       `xml:"Polygon"`
	Children    []kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlExtendedData struct {
	Data       []kmlData `xml:"Data"`
	SimpleData []kmlData `xml:"SchemaData>SimpleData"`
}

type kmlData struct {
	Name      string `xml:"name,attr"`
	Value     string `xml:"value"`
	CharValue string `xml:",chardata"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	LineStyle *struct {
		Color string  `xml:"color"`
		Width float64 `xml:"width"`
	} `xml:"LineStyle"`
	PolyStyle *struct {
		Color string `xml:"color"`
		Fill  string `xml:"fill"`
	} `xml:"PolyStyle"`
	IconStyle *struct {
		Color string  `xml:"color"`
		Scale float64 `xml:"scale"`
	} `xml:"IconStyle"`
}

// kmlColorToStyle KML的aabbggrr颜色转为#rrggbbaa
func kmlColorToStyle(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 8 {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s[6:8] + s[4:6] + s[2:4] + s[0:2], true
}

// styleString 将KML样式转为样式字符串
func (s *kmlStyle) styleString() string {
	var parts []string
	if s.IconStyle != nil {
		part := `SYMBOL(id:"ogr-sym-0"`
		if c, ok := kmlColorToStyle(s.IconStyle.Color); ok {
			part += ",c:" + c
		}
		parts = append(parts, part+")")
	}
	if s.LineStyle != nil {
		part := "PEN("
		if c, ok := kmlColorToStyle(s.LineStyle.Color); ok {
			part += "c:" + c + ","
		}
		width := s.LineStyle.Width
		if width <= 0 {
			width = 1
		}
		parts = append(parts, part+"w:"+strconv.FormatFloat(width, 'g', -1, 64)+"px)")
	}
	if s.PolyStyle != nil && s.PolyStyle.Fill != "0" {
		if c, ok := kmlColorToStyle(s.PolyStyle.Color); ok {
			parts = append(parts, "BRUSH(fc:"+c+")")
		}
	}
	return strings.Join(parts, ";")
}

func parseKMLCoordinates(text string) []orb.Point {
	var points []orb.Point
	for _, tuple := range strings.Fields(text) {
		values := strings.Split(tuple, ",")
		if len(values) < 2 {
			continue
		}
		x, errX := strconv.ParseFloat(values[0], 64)
		y, errY := strconv.ParseFloat(values[1], 64)
		if errX != nil || errY != nil {
			continue
		}
		points = append(points, orb.Point{x, y})
	}
	return points
}

func kmlLine(t GeomType, c kmlCoordinates) *OGRGeometry {
	g := NewGeometry(t)
	for _, p := range parseKMLCoordinates(c.Coordinates) {
		g.AddPoint2D(p[0], p[1])
	}
	return g
}

func kmlPolygonGeometry(p kmlPolygon) *OGRGeometry {
	polygon := NewGeometry(GeomPolygon)
	_ = polygon.AddGeometryDirectly(kmlLine(GeomLinearRing, p.Outer))
	for _, inner := range p.Inner {
		_ = polygon.AddGeometryDirectly(kmlLine(GeomLinearRing, inner))
	}
	polygon.CloseRings()
	return polygon
}

func (m *kmlMultiGeometry) geometry() *OGRGeometry {
	collection := NewGeometry(GeomCollection)
	for _, p := range m.Points {
		_ = collection.AddGeometryDirectly(kmlLine(GeomPoint, p))
	}
	for _, l := range m.LineStrings {
		_ = collection.AddGeometryDirectly(kmlLine(GeomLineString, l))
	}
	for _, p := range m.Polygons {
		_ = collection.AddGeometryDirectly(kmlPolygonGeometry(p))
	}
	for i := range m.Children {
		_ = collection.AddGeometryDirectly(m.Children[i].geometry())
	}
	return collection
}

func (p *kmlPlacemark) geometry() *OGRGeometry {
	switch {
	case p.Point != nil:
		return kmlLine(GeomPoint, *p.Point)
	case p.LineString != nil:
		return kmlLine(GeomLineString, *p.LineString)
	case p.Polygon != nil:
		return kmlPolygonGeometry(*p.Polygon)
	case p.MultiGeometry != nil:
		return p.MultiGeometry.geometry()
	}
	return nil
}

func (p *kmlPlacemark) attributes() map[string]string {
	attrs := map[string]string{}
	for _, d := range append(p.ExtendedData.Data, p.ExtendedData.SimpleData...) {
		if d.Name == "" {
			continue
		}
		value := d.Value
		if value == "" {
			value = strings.TrimSpace(d.CharValue)
		}
		attrs[d.Name] = value
	}
	return attrs
}

type kmlLayerSource struct {
	name       string
	placemarks []kmlPlacemark
	overlays   []kmlOverlay
}

// collectKMLLayers 每个含要素的Document/Folder形成一个图层
func collectKMLLayers(c *kmlContainer, fallback string, out *[]kmlLayerSource, styles *StyleTable) {
	for _, s := range c.Styles {
		if s.ID != "" {
			styles.AddStyle(s.ID, s.styleString())
		}
	}
	name := c.Name
	if name == "" {
		name = fallback
	}
	if len(c.Placemarks) > 0 || len(c.Overlays) > 0 {
		*out = append(*out, kmlLayerSource{name: name, placemarks: c.Placemarks, overlays: c.Overlays})
	}
	for i := range c.Documents {
		collectKMLLayers(&c.Documents[i], name, out, styles)
	}
	for i := range c.Folders {
		collectKMLLayers(&c.Folders[i], name, out, styles)
	}
}

func openKML(path string) (*GDALDataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取KML文件失败: %w", err)
	}
	var root kmlContainer
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("解析KML失败: %w", err)
	}

	styles := NewStyleTable()
	var sources []kmlLayerSource
	collectKMLLayers(&root, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), &sources, styles)

	ds := &GDALDataSource{}
	if styles.Count() > 0 {
		ds.SetStyleTable(styles)
	}
	used := map[string]int{}
	for _, src := range sources {
		name := src.name
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", src.name, n)
		}
		used[src.name]++

		layer := newLayer(name, NewWGS84(), GeomUnknown)
		layer.defn.addField(NewFieldDefn("Name", FieldTypeString))
		layer.defn.addField(NewFieldDefn("Description", FieldTypeString))
		for _, pm := range src.placemarks {
			for key := range pm.attributes() {
				if layer.defn.GetFieldIndex(key) < 0 {
					layer.defn.addField(NewFieldDefn(key, FieldTypeString))
				}
			}
		}
		if len(src.overlays) > 0 && layer.defn.GetFieldIndex(kmlOverlayField) < 0 {
			layer.defn.addField(NewFieldDefn(kmlOverlayField, FieldTypeString))
		}

		for i := range src.placemarks {
			pm := &src.placemarks[i]
			f := layer.CreateEmptyFeature()
			if pm.Name != "" {
				f.SetFieldStringByIndex(0, pm.Name)
			}
			if pm.Description != "" {
				f.SetFieldStringByIndex(1, pm.Description)
			}
			for key, value := range pm.attributes() {
				f.SetFieldStringByIndex(f.GetFieldIndex(key), value)
			}
			if geom := pm.geometry(); geom != nil {
				_ = f.SetGeometryDirectly(geom)
			}
			switch {
			case pm.Style != nil:
				f.SetStyleString(pm.Style.styleString())
			case strings.HasPrefix(pm.StyleURL, "#"):
				f.SetStyleString("@" + pm.StyleURL[1:])
			}
			if err := layer.CreateFeature(f); err != nil {
				return nil, err
			}
		}
		for i := range src.overlays {
			overlay := &src.overlays[i]
			f := layer.CreateEmptyFeature()
			if overlay.Name != "" {
				f.SetFieldStringByIndex(0, overlay.Name)
			}
			f.SetFieldStringByIndex(f.GetFieldIndex(kmlOverlayField), overlay.Href)
			_ = f.SetGeometryDirectly(overlay.geometry())
			if err := layer.CreateFeature(f); err != nil {
				return nil, err
			}
		}
		ds.addLoadedLayer(layer)
	}
	log.Debugf("KML %s: %d 个图层", path, len(ds.layers))
	return ds, nil
}

// toWGS84 返回WGS84经纬度下的几何副本
func toWGS84(geom *OGRGeometry, srs *SpatialReference) (*OGRGeometry, error) {
	clone := geom.Clone()
	if srs == nil || srs.IsSame(NewWGS84()) {
		return clone, nil
	}
	ct, err := NewCoordinateTransformation(srs, NewWGS84())
	if err != nil {
		return nil, err
	}
	if err := clone.Transform(ct); err != nil {
		return nil, err
	}
	return clone, nil
}

func kmlCoords(g *OGRGeometry) kml.Element {
	coords := make([]kml.Coordinate, 0, g.GetPointCount())
	for _, p := range g.Points() {
		coords = append(coords, kml.Coordinate{Lon: p[0], Lat: p[1]})
	}
	return kml.Coordinates(coords...)
}

// kmlGeometry 几何转KML元素
func kmlGeometry(g *OGRGeometry) (kml.Element, error) {
	switch g.GetGeometryType() {
	case GeomPoint:
		return kml.Point(kmlCoords(g)), nil
	case GeomLineString:
		return kml.LineString(kmlCoords(g)), nil
	case GeomLinearRing:
		return kml.LinearRing(kmlCoords(g)), nil
	case GeomPolygon:
		if g.GetGeometryCount() == 0 {
			return nil, fmt.Errorf("空多边形")
		}
		children := []kml.Element{
			kml.OuterBoundaryIs(kml.LinearRing(kmlCoords(g.GetGeometryRef(0)))),
		}
		for i := 1; i < g.GetGeometryCount(); i++ {
			children = append(children, kml.InnerBoundaryIs(kml.LinearRing(kmlCoords(g.GetGeometryRef(i)))))
		}
		return kml.Polygon(children...), nil
	case GeomMultiPoint, GeomMultiLineString, GeomMultiPolygon, GeomCollection:
		children := make([]kml.Element, 0, g.GetGeometryCount())
		for i := 0; i < g.GetGeometryCount(); i++ {
			child, err := kmlGeometry(g.GetGeometryRef(i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return kml.MultiGeometry(children...), nil
	}
	return nil, fmt.Errorf("KML不支持几何类型 %s", g.GetGeometryName())
}

func styleToolColor(tool *StyleTool, key string) (color.Color, bool) {
	value, ok := tool.GetParamStr(key)
	if !ok {
		return nil, false
	}
	r, g, b, a, ok := tool.GetRGBFromString(value)
	if !ok {
		return nil, false
	}
	return color.NRGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a)}, true
}

// kmlInlineStyle 由样式字符串生成Placemark内联样式
func kmlInlineStyle(table *StyleTable, style string) kml.Element {
	sm := NewStyleManager(table)
	if !sm.InitStyleString(style) {
		return nil
	}
	var children []kml.Element
	for i := 0; i < sm.GetPartCount(); i++ {
		tool := sm.GetPart(i)
		if tool == nil {
			continue
		}
		tool.SetUnit(OGRSTUPixel, 1)
		switch tool.GetType() {
		case OGRSTCPen:
			elems := []kml.Element{}
			if c, ok := styleToolColor(tool, "c"); ok {
				elems = append(elems, kml.Color(c))
			}
			if w, ok := tool.GetParamDbl("w"); ok {
				elems = append(elems, kml.Width(w))
			}
			children = append(children, kml.LineStyle(elems...))
		case OGRSTCBrush:
			if c, ok := styleToolColor(tool, "fc"); ok {
				children = append(children, kml.PolyStyle(kml.Color(c)))
			}
		case OGRSTCSymbol:
			if c, ok := styleToolColor(tool, "c"); ok {
				children = append(children, kml.IconStyle(kml.Color(c)))
			}
		case OGRSTCLabel:
			if c, ok := styleToolColor(tool, "c"); ok {
				children = append(children, kml.LabelStyle(kml.Color(c)))
			}
		}
	}
	if len(children) == 0 {
		return nil
	}
	return kml.Style(children...)
}

func writeKML(ds *GDALDataSource) error {
	docChildren := []kml.Element{
		kml.Name(strings.TrimSuffix(filepath.Base(ds.GetPath()), filepath.Ext(ds.GetPath()))),
	}
	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		folder := []kml.Element{kml.Name(layer.GetName())}
		nameIdx := layer.GetLayerDefn().GetFieldIndex("Name")
		var firstErr error
		layer.IterateFeatures(func(feature *GDALFeature) {
			if firstErr != nil {
				return
			}
			geom := feature.GetGeometryRef()
			if geom == nil || geom.IsEmpty() {
				return
			}
			wgs84, err := toWGS84(geom, layer.GetSpatialRef())
			if err != nil {
				firstErr = fmt.Errorf("图层 %s 要素 %d 无法转换为WGS84: %w", layer.GetName(), feature.GetFID(), err)
				return
			}
			elem, err := kmlGeometry(wgs84)
			if err != nil {
				firstErr = err
				return
			}
			placemark := []kml.Element{}
			if nameIdx >= 0 && feature.IsFieldSet(nameIdx) {
				placemark = append(placemark, kml.Name(feature.GetFieldAsStringByIndex(nameIdx)))
			}
			if style := feature.GetStyleString(); style != "" {
				placemark = append(placemark, kml.Description(style))
				if s := kmlInlineStyle(ds.GetStyleTable(), style); s != nil {
					placemark = append(placemark, s)
				}
			}
			placemark = append(placemark, elem)
			folder = append(folder, kml.Placemark(placemark...))
		})
		if firstErr != nil {
			return firstErr
		}
		docChildren = append(docChildren, kml.Folder(folder...))
	}

	file, err := os.Create(ds.GetPath())
	if err != nil {
		return err
	}
	defer file.Close()
	return kml.KML(kml.Document(docChildren...)).WriteIndent(file, "", "  ")
}
