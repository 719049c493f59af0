package markup

import "github.com/paulmach/orb"

func pointGeom(lon, lat float64) orb.Point {
	return orb.Point{lon, lat}
}

func pointOf(f Feature) (orb.Point, bool) {
	p, ok := f.Geometry.(orb.Point)
	return p, ok
}

func lineOf(f Feature) (orb.LineString, bool) {
	ls, ok := f.Geometry.(orb.LineString)
	return ls, ok
}

func polygonOf(f Feature) (orb.Polygon, bool) {
	poly, ok := f.Geometry.(orb.Polygon)
	return poly, ok
}
