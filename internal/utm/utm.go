package utm

import (
	"errors"
	"fmt"
	"math"
)

const (
	k0 = 0.9996
	e  = 0.00669438 // WGS84 first eccentricity squared
	r  = 6378137    // WGS84 equatorial radius in meters

	falseEasting  = 500000
	falseNorthing = 10000000

	zoneLetters = "CDEFGHJKLMNPQRSTUVWXX"
)

var (
	e2  = e * e
	e3  = e2 * e
	eP2 = e / (1 - e)

	sqrtE = math.Sqrt(1 - e)
	_e    = (1 - sqrtE) / (1 + sqrtE)
	_e2   = _e * _e
	_e3   = _e2 * _e
	_e4   = _e3 * _e
	_e5   = _e4 * _e

	m1 = 1 - e/4 - 3*e2/64 - 5*e3/256
	m2 = 3*e/8 + 3*e2/32 + 45*e3/1024
	m3 = 15*e2/256 + 45*e3/1024
	m4 = 35 * e3 / 3072

	p2 = 3.0/2*_e - 27.0/32*_e3 + 269.0/512*_e5
	p3 = 21.0/16*_e2 - 55.0/32*_e4
	p4 = 151.0/96*_e3 - 417.0/128*_e5
	p5 = 1097.0 / 512 * _e4
)

var (
	// ErrOutOfRange is returned when a coordinate falls outside the area UTM covers
	ErrOutOfRange = errors.New("coordinate out of range")

	// ErrInvalidZone is returned for zone numbers outside 1..60 or unknown zone letters
	ErrInvalidZone = errors.New("invalid zone")
)

// Coordinate is a position in the Universal Transverse Mercator system
type Coordinate struct {
	Easting    float64 // meters
	Northing   float64 // meters
	ZoneNumber int     // 1..60
	ZoneLetter byte    // latitude band, 'C'..'X'
}

// Northern reports whether the coordinate belongs to the northern hemisphere
func (c Coordinate) Northern() bool {
	return c.ZoneLetter >= 'N'
}

// Offset returns the coordinate moved by the given distances in meters, keeping the zone.
func (c Coordinate) Offset(dEasting, dNorthing float64) Coordinate {
	c.Easting += dEasting
	c.Northing += dNorthing
	return c
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d%c %.3fE %.3fN", c.ZoneNumber, c.ZoneLetter, c.Easting, c.Northing)
}

// ToUTM converts a WGS84 latitude/longitude pair to UTM
func ToUTM(lat, lon float64) (Coordinate, error) {
	if lat < -80 || lat > 84 {
		return Coordinate{}, fmt.Errorf("%w: latitude %f not in [-80, 84]", ErrOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %f not in [-180, 180]", ErrOutOfRange, lon)
	}

	latRad := radians(lat)
	latSin := math.Sin(latRad)
	latCos := math.Cos(latRad)

	latTan := latSin / latCos
	latTan2 := latTan * latTan
	latTan4 := latTan2 * latTan2

	zoneNumber := ZoneNumber(lat, lon)
	zoneLetter := ZoneLetter(lat)

	lonRad := radians(lon)
	centralLonRad := radians(CentralLongitude(zoneNumber))

	n := r / math.Sqrt(1-e*latSin*latSin)
	c := eP2 * latCos * latCos

	a := latCos * modAngle(lonRad-centralLonRad)
	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	m := r * (m1*latRad -
		m2*math.Sin(2*latRad) +
		m3*math.Sin(4*latRad) -
		m4*math.Sin(6*latRad))

	easting := k0*n*(a+
		a3/6*(1-latTan2+c)+
		a5/120*(5-18*latTan2+latTan4+72*c-58*eP2)) + falseEasting

	northing := k0 * (m + n*latTan*(a2/2+
		a4/24*(5-latTan2+9*c+4*c*c)+
		a6/720*(61-58*latTan2+latTan4+600*c-330*eP2)))

	if lat < 0 {
		northing += falseNorthing
	}

	return Coordinate{
		Easting:    easting,
		Northing:   northing,
		ZoneNumber: zoneNumber,
		ZoneLetter: zoneLetter,
	}, nil
}

// FromUTM converts a UTM coordinate back to WGS84 latitude/longitude. The zone
// is taken from the coordinate as given and is never recomputed.
func FromUTM(coord Coordinate) (lat, lon float64, err error) {
	if coord.Easting < 100000 || coord.Easting >= 1000000 {
		return 0, 0, fmt.Errorf("%w: easting %f not in [100000, 1000000)", ErrOutOfRange, coord.Easting)
	}
	if coord.Northing < 0 || coord.Northing > 10000000 {
		return 0, 0, fmt.Errorf("%w: northing %f not in [0, 10000000]", ErrOutOfRange, coord.Northing)
	}
	if coord.ZoneNumber < 1 || coord.ZoneNumber > 60 {
		return 0, 0, fmt.Errorf("%w: zone number %d not in [1, 60]", ErrInvalidZone, coord.ZoneNumber)
	}
	if coord.ZoneLetter < 'C' || coord.ZoneLetter > 'X' || coord.ZoneLetter == 'I' || coord.ZoneLetter == 'O' {
		return 0, 0, fmt.Errorf("%w: zone letter %q", ErrInvalidZone, coord.ZoneLetter)
	}

	x := coord.Easting - falseEasting
	y := coord.Northing
	if !coord.Northern() {
		y -= falseNorthing
	}

	m := y / k0
	mu := m / (r * m1)

	pRad := mu +
		p2*math.Sin(2*mu) +
		p3*math.Sin(4*mu) +
		p4*math.Sin(6*mu) +
		p5*math.Sin(8*mu)

	pSin := math.Sin(pRad)
	pSin2 := pSin * pSin
	pCos := math.Cos(pRad)

	pTan := pSin / pCos
	pTan2 := pTan * pTan
	pTan4 := pTan2 * pTan2

	epSin := 1 - e*pSin2
	epSinSqrt := math.Sqrt(epSin)

	n := r / epSinSqrt
	rad := (1 - e) / epSin

	c := eP2 * pCos * pCos
	c2 := c * c

	d := x / (n * k0)
	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	latRad := pRad - (pTan/rad)*
		(d2/2-
			d4/24*(5+3*pTan2+10*c-4*c2-9*eP2)) +
		d6/720*(61+90*pTan2+298*c+45*pTan4-252*eP2-3*c2)

	lonRad := (d -
		d3/6*(1+2*pTan2+c) +
		d5/120*(5-2*c+28*pTan2-3*c2+8*eP2+24*pTan4)) / pCos

	lonRad = modAngle(lonRad + radians(CentralLongitude(coord.ZoneNumber)))

	return degrees(latRad), degrees(lonRad), nil
}

// ZoneNumber returns the UTM zone for a position, including the Norway and
// Svalbard exceptions.
func ZoneNumber(lat, lon float64) int {
	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32
	}

	if lat >= 72 && lat <= 84 && lon >= 0 {
		switch {
		case lon < 9:
			return 31
		case lon < 21:
			return 33
		case lon < 33:
			return 35
		case lon < 42:
			return 37
		}
	}

	if lon == 180 {
		return 60
	}

	return int((lon+180)/6) + 1
}

// ZoneLetter returns the latitude band letter, or 0 outside [-80, 84]
func ZoneLetter(lat float64) byte {
	if lat < -80 || lat > 84 {
		return 0
	}
	return zoneLetters[int(lat+80)>>3]
}

// CentralLongitude returns the central meridian of a zone in degrees
func CentralLongitude(zoneNumber int) float64 {
	return float64((zoneNumber-1)*6 - 180 + 3)
}

// modAngle wraps an angle in radians into [-pi, pi)
func modAngle(value float64) float64 {
	v := math.Mod(value+math.Pi, 2*math.Pi)
	if v < 0 {
		v += 2 * math.Pi
	}
	return v - math.Pi
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
