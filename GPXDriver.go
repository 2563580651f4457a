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
	"os"
)

// GPX固定图层名
const (
	gpxWaypoints   = "waypoints"
	gpxRoutes      = "routes"
	gpxTracks      = "tracks"
	gpxRoutePoints = "route_points"
	gpxTrackPoints = "track_points"
)

// newGPXDriver GPX驱动，不支持面
func newGPXDriver() *Driver {
	return &Driver{
		Name:           "GPX",
		LongName:       "GPX",
		Extensions:     []string{"gpx"},
		CanOpen:        true,
		CanCreate:      true,
		open:           openGPX,
		write:          writeGPX,
		acceptLayer:    gpxAcceptLayer,
		acceptGeometry: gpxAcceptGeometry,
	}
}

func isPolygonal(t GeomType) bool {
	switch t {
	case GeomPolygon, GeomMultiPolygon, GeomCurvePolygon, GeomMultiSurface, GeomTriangle, GeomTIN, GeomPolyhedralSurface:
		return true
	}
	return false
}

func gpxAcceptLayer(name string, geomType GeomType) error {
	if isPolygonal(geomType) {
		return fmt.Errorf("GPX不支持面图层 %s", name)
	}
	return nil
}

func gpxAcceptGeometry(layer *GDALLayer, geom *OGRGeometry) error {
	if geom != nil && isPolygonal(geom.GetGeometryType()) {
		return fmt.Errorf("GPX图层 %s 不支持面几何", layer.GetName())
	}
	return nil
}

type gpxFile struct {
	XMLName   xml.Name   `xml:"gpx"`
	Version   string     `xml:"version,attr"`
	Creator   string     `xml:"creator,attr"`
	Xmlns     string     `xml:"xmlns,attr,omitempty"`
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []gpxRoute `xml:"rte"`
	Tracks    []gpxTrack `xml:"trk"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name,omitempty"`
	Desc string  `xml:"desc,omitempty"`
}

type gpxRoute struct {
	Name   string     `xml:"name,omitempty"`
	Desc   string     `xml:"desc,omitempty"`
	Points []gpxPoint `xml:"rtept"`
}

type gpxTrack struct {
	Name     string       `xml:"name,omitempty"`
	Desc     string       `xml:"desc,omitempty"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

func gpxLayer(name string, geomType GeomType) *GDALLayer {
	layer := newLayer(name, NewWGS84(), geomType)
	layer.defn.addField(NewFieldDefn("name", FieldTypeString))
	layer.defn.addField(NewFieldDefn("desc", FieldTypeString))
	return layer
}

func addGPXFeature(layer *GDALLayer, name, desc string, geom *OGRGeometry) error {
	f := layer.CreateEmptyFeature()
	if name != "" {
		f.SetFieldStringByIndex(0, name)
	}
	if desc != "" {
		f.SetFieldStringByIndex(1, desc)
	}
	_ = f.SetGeometryDirectly(geom)
	return layer.CreateFeature(f)
}

func gpxPointGeometry(p gpxPoint) *OGRGeometry {
	g := NewGeometry(GeomPoint)
	g.AddPoint2D(p.Lon, p.Lat)
	return g
}

func gpxLineGeometry(points []gpxPoint) *OGRGeometry {
	g := NewGeometry(GeomLineString)
	for _, p := range points {
		g.AddPoint2D(p.Lon, p.Lat)
	}
	return g
}

func openGPX(path string) (*GDALDataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取GPX文件失败: %w", err)
	}
	var doc gpxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析GPX失败: %w", err)
	}

	waypoints := gpxLayer(gpxWaypoints, GeomPoint)
	routes := gpxLayer(gpxRoutes, GeomLineString)
	tracks := gpxLayer(gpxTracks, GeomMultiLineString)
	routePoints := gpxLayer(gpxRoutePoints, GeomPoint)
	trackPoints := gpxLayer(gpxTrackPoints, GeomPoint)

	for _, w := range doc.Waypoints {
		if err := addGPXFeature(waypoints, w.Name, w.Desc, gpxPointGeometry(w)); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Routes {
		if err := addGPXFeature(routes, r.Name, r.Desc, gpxLineGeometry(r.Points)); err != nil {
			return nil, err
		}
		for _, p := range r.Points {
			if err := addGPXFeature(routePoints, p.Name, p.Desc, gpxPointGeometry(p)); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range doc.Tracks {
		multi := NewGeometry(GeomMultiLineString)
		for _, seg := range t.Segments {
			_ = multi.AddGeometryDirectly(gpxLineGeometry(seg.Points))
			for _, p := range seg.Points {
				if err := addGPXFeature(trackPoints, p.Name, p.Desc, gpxPointGeometry(p)); err != nil {
					return nil, err
				}
			}
		}
		if err := addGPXFeature(tracks, t.Name, t.Desc, multi); err != nil {
			return nil, err
		}
	}

	ds := &GDALDataSource{}
	for _, layer := range []*GDALLayer{waypoints, routes, tracks, routePoints, trackPoints} {
		ds.addLoadedLayer(layer)
	}
	return ds, nil
}

// gpxFeatureName 取Name或name字段作为名称
func gpxFeatureName(layer *GDALLayer, f *GDALFeature) string {
	for _, field := range []string{"Name", "name"} {
		if idx := layer.GetLayerDefn().GetFieldIndex(field); idx >= 0 && f.IsFieldSet(idx) {
			return f.GetFieldAsStringByIndex(idx)
		}
	}
	return ""
}

func appendGPXGeometry(doc *gpxFile, name string, g *OGRGeometry) error {
	switch g.GetGeometryType() {
	case GeomPoint:
		doc.Waypoints = append(doc.Waypoints, gpxPoint{Lat: g.GetY(0), Lon: g.GetX(0), Name: name})
	case GeomLineString, GeomLinearRing:
		doc.Tracks = append(doc.Tracks, gpxTrack{Name: name, Segments: []gpxSegment{gpxSegmentOf(g)}})
	case GeomMultiLineString:
		track := gpxTrack{Name: name}
		for i := 0; i < g.GetGeometryCount(); i++ {
			track.Segments = append(track.Segments, gpxSegmentOf(g.GetGeometryRef(i)))
		}
		doc.Tracks = append(doc.Tracks, track)
	case GeomMultiPoint, GeomCollection:
		for i := 0; i < g.GetGeometryCount(); i++ {
			if err := appendGPXGeometry(doc, name, g.GetGeometryRef(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("GPX不支持几何类型 %s", g.GetGeometryName())
	}
	return nil
}

func gpxSegmentOf(g *OGRGeometry) gpxSegment {
	seg := gpxSegment{}
	for _, p := range g.Points() {
		seg.Points = append(seg.Points, gpxPoint{Lat: p[1], Lon: p[0]})
	}
	return seg
}

func writeGPX(ds *GDALDataSource) error {
	doc := gpxFile{Version: "1.1", Creator: "OgrMapper", Xmlns: "http://www.topografix.com/GPX/1/1"}
	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		var firstErr error
		layer.IterateFeatures(func(feature *GDALFeature) {
			geom := feature.GetGeometryRef()
			if firstErr != nil || geom == nil || geom.IsEmpty() {
				return
			}
			wgs84, err := toWGS84(geom, layer.GetSpatialRef())
			if err != nil {
				firstErr = fmt.Errorf("图层 %s 要素 %d 无法转换为WGS84: %w", layer.GetName(), feature.GetFID(), err)
				return
			}
			firstErr = appendGPXGeometry(&doc, gpxFeatureName(layer, feature), wgs84)
		})
		if firstErr != nil {
			return firstErr
		}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("编码GPX失败: %w", err)
	}
	return os.WriteFile(ds.GetPath(), append([]byte(xml.Header), data...), 0644)
}
