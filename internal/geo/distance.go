// Package geo computes geodesic distances and resolves place names to
// coordinates.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Unit is a length unit accepted by Distance.
type Unit string

const (
	Meters     Unit = "meters"
	Kilometers Unit = "kilometers"
	Feet       Unit = "feet"
	Miles      Unit = "miles"
)

var (
	ErrUnknownUnit  = errors.New("unknown distance unit")
	ErrInvalidPoint = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// metersPer converts one Unit into meters.
var metersPer = map[Unit]float64{
	Meters:     1,
	Kilometers: 1000,
	Feet:       0.3048,
	Miles:      1609.344,
}

// ParseUnit maps a unit name to a Unit.
func ParseUnit(s string) (Unit, error) {
	u := Unit(s)
	if _, ok := metersPer[u]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownUnit, s)
	}
	return u, nil
}

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// WGS-84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = (1 - wgs84F) * wgs84A

	meanEarthRadius = 6371008.8

	vincentyMaxIter   = 200
	vincentyTolerance = 1e-12
)

// Distance returns the geodesic distance between a and b on the WGS-84
// ellipsoid, expressed in unit. The result is identical for (a, b) and (b, a).
func Distance(a, b Point, unit Unit) (float64, error) {
	factor, ok := metersPer[unit]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownUnit, unit)
	}
	if !a.valid() || !b.valid() {
		return 0, ErrInvalidPoint
	}

	// Canonical order makes the floating point path the same both ways.
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lon < a.Lon) {
		a, b = b, a
	}

	meters, ok := vincenty(a, b)
	if !ok {
		meters = haversine(a, b)
	}
	return meters / factor, nil
}

// vincenty solves the inverse geodesic problem. ok is false when the
// iteration does not converge (nearly antipodal points).
func vincenty(p1, p2 Point) (float64, bool) {
	phi1, phi2 := toRadians(p1.Lat), toRadians(p2.Lat)
	L := toRadians(p2.Lon - p1.Lon)

	U1 := math.Atan((1 - wgs84F) * math.Tan(phi1))
	U2 := math.Atan((1 - wgs84F) * math.Tan(phi2))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cos2Alpha, cos2SigmaM float64

	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)

		x := cosU2 * sinLambda
		y := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(x*x + y*y)
		if sinSigma == 0 {
			return 0, true // coincident points
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)

		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		} else {
			cos2SigmaM = 0 // equatorial line
		}

		C := wgs84F / 16 * cos2Alpha * (4 + wgs84F*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return 0, false
	}

	u2 := cos2Alpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + u2/16384*(4096+u2*(-768+u2*(320-175*u2)))
	B := u2 / 1024 * (256 + u2*(-128+u2*(74-47*u2)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return wgs84B * A * (sigma - deltaSigma), true
}

func haversine(p1, p2 Point) float64 {
	dLat := toRadians(p2.Lat - p1.Lat)
	dLon := toRadians(p2.Lon - p1.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(p1.Lat))*math.Cos(toRadians(p2.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * meanEarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
