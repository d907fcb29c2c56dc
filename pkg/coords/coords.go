// Package coords parses region center points given in decimal degrees,
// degrees/minutes/seconds or MGRS grid references.
package coords

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"

	"github.com/NERVsystems/osmtiles/pkg/core"
)

// Format is the notation a center point was written in
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	default:
		return "unknown"
	}
}

// Point is a parsed WGS84 position
type Point struct {
	Lat    float64
	Lon    float64
	Format Format
}

var (
	// zone, band, 100km square, even-length numeric location
	mgrsRegex = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	// 52°31'12"N 13°24'18"E, 52d31m12sN 13d24m18sE, 52 31 12 N 13 24 18 E
	dmsRegex = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	decimalRegex = regexp.MustCompile(`^(-?\d+(?:\.\d*)?)[,\s]+(-?\d+(?:\.\d*)?)$`)
)

// Parse detects the notation of input and converts it to decimal degrees.
func Parse(input string) (Point, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Point{}, core.NewError(core.ErrInvalidInput, "empty coordinate string")
	}

	switch DetectFormat(input) {
	case FormatMGRS:
		return ParseMGRS(input)
	case FormatDMS:
		return ParseDMS(input)
	case FormatDecimal:
		return ParseDecimal(input)
	}
	return Point{}, core.Errorf(core.ErrInvalidInput, "unrecognized coordinate format: %q", input).
		WithGuidance("Use \"lat,lon\", DMS such as 52°31'12\"N 13°24'18\"E, or an MGRS reference")
}

// DetectFormat reports the notation of input without converting it.
func DetectFormat(input string) Format {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return FormatUnknown
	case mgrsRegex.MatchString(input):
		return FormatMGRS
	case dmsRegex.MatchString(input):
		return FormatDMS
	case decimalRegex.MatchString(input):
		return FormatDecimal
	}
	return FormatUnknown
}

// ParseMGRS converts an MGRS grid reference such as "33UUU9100018000".
func ParseMGRS(input string) (Point, error) {
	input = strings.ToUpper(strings.TrimSpace(input))
	m := mgrsRegex.FindStringSubmatch(input)
	if m == nil || len(m[4])%2 != 0 {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid MGRS reference: %q", input)
	}
	if zone, _ := strconv.Atoi(m[1]); zone < 1 || zone > 60 {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid MGRS zone: %s", m[1])
	}

	lat, lon, err := mgrs.MGRSToLatLng(input)
	if err != nil {
		return Point{}, core.Errorf(core.ErrInvalidInput, "MGRS conversion failed for %q", input).WithCause(err)
	}
	return checkRange(Point{Lat: lat, Lon: lon, Format: FormatMGRS})
}

// ParseDMS converts degrees/minutes/seconds with hemisphere letters.
func ParseDMS(input string) (Point, error) {
	m := dmsRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid DMS coordinate: %q", input)
	}

	lat, err := dmsToDecimal(m[1], m[2], m[3])
	if err != nil {
		return Point{}, err
	}
	lon, err := dmsToDecimal(m[5], m[6], m[7])
	if err != nil {
		return Point{}, err
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lon = -lon
	}
	return checkRange(Point{Lat: lat, Lon: lon, Format: FormatDMS})
}

func dmsToDecimal(deg, min, sec string) (float64, error) {
	d, _ := strconv.ParseFloat(deg, 64)
	m, _ := strconv.ParseFloat(min, 64)
	s, _ := strconv.ParseFloat(sec, 64)
	if m >= 60 || s >= 60 {
		return 0, core.Errorf(core.ErrInvalidInput, "minutes and seconds must be below 60, got %s'%s\"", min, sec)
	}
	return d + m/60 + s/3600, nil
}

// ParseDecimal converts "lat,lon" or "lat lon".
func ParseDecimal(input string) (Point, error) {
	m := decimalRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid decimal coordinate: %q", input)
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid latitude %q", m[1]).WithCause(err)
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Point{}, core.Errorf(core.ErrInvalidInput, "invalid longitude %q", m[2]).WithCause(err)
	}
	return checkRange(Point{Lat: lat, Lon: lon, Format: FormatDecimal})
}

// ToMGRS formats a position as MGRS; precision 1-5 selects 10km down to 1m.
func ToMGRS(lat, lon float64, precision int) (string, error) {
	if precision < 1 || precision > 5 {
		precision = 5
	}
	if _, err := checkRange(Point{Lat: lat, Lon: lon}); err != nil {
		return "", err
	}
	s, err := mgrs.LatLngToMGRS(lat, lon, precision)
	if err != nil {
		return "", core.NewError(core.ErrInvalidInput, "MGRS conversion failed").WithCause(err)
	}
	return s, nil
}

func checkRange(p Point) (Point, error) {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return Point{}, core.Errorf(core.ErrInvalidInput, "coordinates out of range: lat=%f, lon=%f", p.Lat, p.Lon)
	}
	return p, nil
}
