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
	"math"
	"testing"
)

func TestPipelineRebuilds(t *testing.T) {
	target := mustEPSG(t, 3857)
	p := NewCoordinateTransformPipeline(target, NewGeoreferencing(), UnitOnGround)
	defer p.Close()

	a := mustEPSG(t, 4326)
	b := mustEPSG(t, 4326)
	local := NewSpatialReference()
	local.SetLocalCS("Local")

	steps := []struct {
		srs      *SpatialReference
		ok       bool
		rebuilds int
	}{
		{a, true, 1},
		{a, true, 1},
		{b, true, 2},
		{nil, true, 2},
		{b, true, 2},
		{a, true, 3},
		{local, false, 3},
	}
	for i, s := range steps {
		if got := p.SetReference(s.srs); got != s.ok {
			t.Fatalf("step %d: SetReference = %v, want %v", i, got, s.ok)
		}
		if p.Rebuilds != s.rebuilds {
			t.Errorf("step %d: Rebuilds = %d, want %d", i, p.Rebuilds, s.rebuilds)
		}
	}
	if p.NoTransformation != 1 {
		t.Errorf("NoTransformation = %d, want 1", p.NoTransformation)
	}
}

func TestPipelineTransform(t *testing.T) {
	target := mustEPSG(t, 3857)
	p := NewCoordinateTransformPipeline(target, NewGeoreferencing(), UnitOnGround)
	defer p.Close()

	src := mustEPSG(t, 4326)
	if !p.SetReference(src) {
		t.Fatal("SetReference failed")
	}
	geom := pointGeom(1, 0)
	if err := p.Transform(geom); err != nil {
		t.Fatal(err)
	}
	if math.Abs(geom.GetX(0)-111319.49) > 0.1 || math.Abs(geom.GetY(0)) > 1e-6 {
		t.Errorf("transformed = %v, %v", geom.GetX(0), geom.GetY(0))
	}
	if geom.GetSpatialReference() != target {
		t.Error("转换后几何应携带目标空间参考")
	}
}

func TestPipelineToMap(t *testing.T) {
	georef := NewGeoreferencing()
	georef.SetScaleDenominator(10000)

	tests := []struct {
		name string
		unit UnitType
		want MapCoord
	}{
		// 1:10000 下地面 10m 为图上 1mm
		{"地面单位", UnitOnGround, MapCoord{X: 1000, Y: -2000}},
		{"图纸单位", UnitOnPaper, MapCoord{X: 10000, Y: -20000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCoordinateTransformPipeline(nil, georef, tt.unit)
			if !p.SetReference(nil) {
				t.Fatal("SetReference(nil) should succeed")
			}
			if got := p.ToMap(10, 20); got != tt.want {
				t.Errorf("ToMap = %+v, want %+v", got, tt.want)
			}
		})
	}
}
