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
	"bytes"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rpaloschi/dxf-go/document"
	"github.com/rpaloschi/dxf-go/entities"
	log "github.com/sirupsen/logrus"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/color"
	"github.com/yofu/dxf/drawing"
	"github.com/yofu/dxf/entity"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

const (
	dxfLayerField    = "Layer"
	dxfTolerance     = 1e-6
	dxfDefaultTextMM = 2.5
	dxfEntitiesLayer = "entities"
)

// newDXFDriver DXF驱动，读取多段线，写出点、线、面和文字
func newDXFDriver() *Driver {
	return &Driver{
		Name:       "DXF",
		LongName:   "AutoCAD DXF",
		Extensions: []string{"dxf"},
		CanOpen:    true,
		CanCreate:  true,
		// 写出时按该字段分配DXF图层
		LayerFields: []string{dxfLayerField},
		open:        openDXF,
		write:       writeDXF,
	}
}

// dxfCodePages $DWGCODEPAGE 取值对应的文本编码，nil表示UTF-8
var dxfCodePages = map[string]encoding.Encoding{
	"ANSI_936":   simplifiedchinese.GBK,
	"ANSI_54936": simplifiedchinese.GB18030,
	"ANSI_950":   traditionalchinese.Big5,
	"ANSI_932":   japanese.ShiftJIS,
	"ANSI_949":   korean.EUCKR,
	"ANSI_1250":  charmap.Windows1250,
	"ANSI_1251":  charmap.Windows1251,
	"ANSI_1252":  charmap.Windows1252,
	"ANSI_1253":  charmap.Windows1253,
	"ANSI_1254":  charmap.Windows1254,
	"DOS437":     charmap.CodePage437,
	"UTF-8":      nil,
	"UTF8":       nil,
}

var (
	dxfCodePageMu      sync.RWMutex
	dxfDefaultCodePage = "ANSI_936"
)

// SetDXFCodePage 设置文件头未声明代码页时使用的代码页，写出DXF时也使用该代码页
func SetDXFCodePage(codePage string) error {
	codePage = strings.ToUpper(strings.TrimSpace(codePage))
	if _, ok := dxfCodePages[codePage]; !ok {
		return fmt.Errorf("不支持的DXF代码页: %s", codePage)
	}
	dxfCodePageMu.Lock()
	dxfDefaultCodePage = codePage
	dxfCodePageMu.Unlock()
	return nil
}

// DXFCodePage 当前默认代码页
func DXFCodePage() string {
	dxfCodePageMu.RLock()
	defer dxfCodePageMu.RUnlock()
	return dxfDefaultCodePage
}

// dxfHeaderVars 读取文件头中的 $ACADVER 与 $DWGCODEPAGE
func dxfHeaderVars(data []byte) (version, codePage string) {
	lines := strings.Split(string(data), "\n")
	for i := 0; i+2 < len(lines); i++ {
		switch strings.TrimSpace(lines[i]) {
		case "$ACADVER":
			version = strings.TrimSpace(lines[i+2])
		case "$DWGCODEPAGE":
			codePage = strings.ToUpper(strings.TrimSpace(lines[i+2]))
		case "ENDSEC":
			return version, codePage
		}
	}
	return version, codePage
}

// dxfTextEncoding 按文件声明选择文本编码
// AutoCAD 2007（AC1021）起的DXF一律为UTF-8，更早的版本按 $DWGCODEPAGE，未声明时使用默认代码页
func dxfTextEncoding(data []byte) (encoding.Encoding, string) {
	version, codePage := dxfHeaderVars(data)
	if version >= "AC1021" {
		return nil, "UTF-8"
	}
	if enc, ok := dxfCodePages[codePage]; ok {
		return enc, codePage
	}
	if codePage != "" {
		log.Warnf("未知的DXF代码页 %s，使用 %s", codePage, DXFCodePage())
	}
	codePage = DXFCodePage()
	return dxfCodePages[codePage], codePage
}

// decodeDXFText 将文件中的文本转换为UTF-8
func decodeDXFText(enc encoding.Encoding, s string) string {
	if enc == nil {
		return s
	}
	decoded, _, err := transform.String(enc.NewDecoder(), s)
	if err != nil {
		return s
	}
	return decoded
}

// encodeDXFText 将UTF-8文本转换为文件编码
func encodeDXFText(enc encoding.Encoding, s string) string {
	if enc == nil {
		return s
	}
	encoded, _, err := transform.String(enc.NewEncoder(), s)
	if err != nil {
		return s
	}
	return encoded
}

// setDXFCodePage 在文件头中写入 $DWGCODEPAGE
func setDXFCodePage(data []byte, codePage string) []byte {
	lines := strings.Split(string(data), "\n")
	suffix := ""
	if len(lines) > 0 && strings.HasSuffix(lines[0], "\r") {
		suffix = "\r"
	}
	insertAt := -1
	for i := 0; i+2 < len(lines); i++ {
		switch strings.TrimSpace(lines[i]) {
		case "$DWGCODEPAGE":
			lines[i+2] = codePage + suffix
			return []byte(strings.Join(lines, "\n"))
		case "$ACADVER":
			insertAt = i + 3
		case "HEADER":
			if insertAt < 0 {
				insertAt = i + 1
			}
		case "ENDSEC":
			i = len(lines)
		}
	}
	if insertAt < 0 {
		return data
	}
	vars := []string{"  9" + suffix, "$DWGCODEPAGE" + suffix, "  3" + suffix, codePage + suffix}
	out := append(append(append([]string(nil), lines[:insertAt]...), vars...), lines[insertAt:]...)
	return []byte(strings.Join(out, "\n"))
}

func dxfPointsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < dxfTolerance && math.Abs(a[1]-b[1]) < dxfTolerance
}

// dxfPolylineGeometry 闭合或首尾相同的多段线转为面，其余为线
func dxfPolylineGeometry(points []orb.Point, closed bool) *OGRGeometry {
	if len(points) < 2 {
		return nil
	}
	if closed || (len(points) >= 4 && dxfPointsEqual(points[0], points[len(points)-1])) {
		ring := append([]orb.Point(nil), points...)
		if !dxfPointsEqual(ring[0], ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}
		if len(ring) >= 4 {
			return polygonFromOrb(orb.Polygon{ring})
		}
	}
	return lineFromPoints(GeomLineString, points)
}

func dxfEntityGeometry(e entities.Entity) (*OGRGeometry, string, bool) {
	switch v := e.(type) {
	case *entities.Polyline:
		points := make([]orb.Point, 0, len(v.Vertices))
		for _, vertex := range v.Vertices {
			points = append(points, orb.Point{vertex.Location.X, vertex.Location.Y})
		}
		return dxfPolylineGeometry(points, false), v.LayerName, true
	case *entities.LWPolyline:
		points := make([]orb.Point, 0, len(v.Points))
		for _, vertex := range v.Points {
			points = append(points, orb.Point{vertex.Point.X, vertex.Point.Y})
		}
		return dxfPolylineGeometry(points, v.Closed), v.LayerName, true
	}
	return nil, "", false
}

func openDXF(path string) (*GDALDataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开DXF文件失败: %w", err)
	}
	enc, codePage := dxfTextEncoding(data)
	log.Debugf("DXF %s: 代码页 %s", path, codePage)

	doc, err := document.DxfDocumentFromStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析DXF失败: %w", err)
	}

	layer := newLayer(dxfEntitiesLayer, nil, GeomUnknown)
	layer.defn.addField(NewFieldDefn(dxfLayerField, FieldTypeString))

	skipped := 0
	add := func(e entities.Entity) error {
		geom, layerName, ok := dxfEntityGeometry(e)
		if !ok {
			skipped++
			return nil
		}
		if geom == nil {
			return nil
		}
		f := layer.CreateEmptyFeature()
		f.SetFieldStringByIndex(0, decodeDXFText(enc, layerName))
		_ = f.SetGeometryDirectly(geom)
		return layer.CreateFeature(f)
	}

	for _, e := range doc.Entities.Entities {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	for _, block := range doc.Blocks {
		for _, e := range block.Entities {
			if err := add(e); err != nil {
				return nil, err
			}
		}
	}
	if skipped > 0 {
		log.Debugf("DXF %s: 跳过 %d 个不支持的实体", path, skipped)
	}

	ds := &GDALDataSource{}
	ds.addLoadedLayer(layer)
	return ds, nil
}

var fieldReferencePattern = regexp.MustCompile(`\{([^}]*)\}`)

// substituteFieldReferences 以要素字段值替换 {Field}
func substituteFieldReferences(text string, f *GDALFeature) string {
	return fieldReferencePattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		if idx := f.GetFieldIndex(name); idx >= 0 {
			return f.GetFieldAsStringByIndex(idx)
		}
		return m
	})
}

// dxfLabel 要素样式中的文字与字高
func dxfLabel(table *StyleTable, f *GDALFeature) (string, float64, bool) {
	sm := NewStyleManager(table)
	if !sm.InitStyleString(f.GetStyleString()) {
		return "", 0, false
	}
	for i := 0; i < sm.GetPartCount(); i++ {
		tool := sm.GetPart(i)
		if tool == nil || tool.GetType() != OGRSTCLabel {
			continue
		}
		text, ok := tool.GetParamStr("t")
		if !ok {
			continue
		}
		height := dxfDefaultTextMM
		if s, ok := tool.GetParamDbl("s"); ok && s > 0 {
			height = s
		}
		return substituteFieldReferences(text, f), height, true
	}
	return "", 0, false
}

type dxfWriter struct {
	drawing *drawing.Drawing
	layers  map[string]bool
	enc     encoding.Encoding
}

func (w *dxfWriter) useLayer(name string) error {
	name = encodeDXFText(w.enc, name)
	if !w.layers[name] {
		if _, err := w.drawing.AddLayer(name, color.White, dxf.DefaultLineType, true); err != nil {
			return err
		}
		w.layers[name] = true
		return nil
	}
	return w.drawing.ChangeLayer(name)
}

func (w *dxfWriter) polyline(points []orb.Point, closed bool) {
	if closed && len(points) > 1 && dxfPointsEqual(points[0], points[len(points)-1]) {
		points = points[:len(points)-1]
	}
	lwp := entity.NewLwPolyline(len(points))
	for i, p := range points {
		lwp.Vertices[i] = []float64{p[0], p[1]}
	}
	if closed {
		lwp.Close()
	}
	w.drawing.AddEntity(lwp)
}

func (w *dxfWriter) geometry(g *OGRGeometry) error {
	switch g.GetGeometryType() {
	case GeomPoint:
		_, err := w.drawing.Point(g.GetX(0), g.GetY(0), 0)
		return err
	case GeomLineString:
		w.polyline(g.Points(), false)
	case GeomLinearRing:
		w.polyline(g.Points(), true)
	case GeomPolygon:
		for i := 0; i < g.GetGeometryCount(); i++ {
			w.polyline(g.GetGeometryRef(i).Points(), true)
		}
	case GeomMultiPoint, GeomMultiLineString, GeomMultiPolygon, GeomCollection:
		for i := 0; i < g.GetGeometryCount(); i++ {
			if err := w.geometry(g.GetGeometryRef(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("DXF不支持几何类型 %s", g.GetGeometryName())
	}
	return nil
}

func writeDXF(ds *GDALDataSource) error {
	codePage := DXFCodePage()
	w := &dxfWriter{drawing: dxf.NewDrawing(), layers: map[string]bool{}, enc: dxfCodePages[codePage]}
	w.drawing.Header().LtScale = 1.0

	for i := 0; i < ds.GetLayerCount(); i++ {
		layer := ds.GetLayer(i)
		layerField := layer.GetLayerDefn().GetFieldIndex(dxfLayerField)
		var firstErr error
		layer.IterateFeatures(func(feature *GDALFeature) {
			geom := feature.GetGeometryRef()
			if firstErr != nil || geom == nil || geom.IsEmpty() {
				return
			}
			name := layer.GetName()
			if layerField >= 0 && feature.IsFieldSet(layerField) {
				name = feature.GetFieldAsStringByIndex(layerField)
			}
			if firstErr = w.useLayer(name); firstErr != nil {
				return
			}
			if text, height, ok := dxfLabel(ds.GetStyleTable(), feature); ok && geom.GetGeometryType() == GeomPoint {
				_, firstErr = w.drawing.Text(encodeDXFText(w.enc, text), geom.GetX(0), geom.GetY(0), 0, height)
				return
			}
			firstErr = w.geometry(geom)
		})
		if firstErr != nil {
			return fmt.Errorf("图层 %s: %w", layer.GetName(), firstErr)
		}
	}
	if err := w.drawing.SaveAs(ds.GetPath()); err != nil {
		return err
	}
	data, err := os.ReadFile(ds.GetPath())
	if err != nil {
		return err
	}
	return os.WriteFile(ds.GetPath(), setDXFCodePage(data, codePage), 0644)
}
