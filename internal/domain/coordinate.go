package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCoordinate is returned for a blank cod, which JMA publishes while
	// the hypocentre is still being determined.
	ErrEmptyCoordinate = errors.New("empty coordinate")

	// ErrMalformedCoordinate is returned when the string does not follow the
	// "<sign><lat><sign><lon>[<sign><depth>]/" layout, with '/' allowed between
	// tokens.
	ErrMalformedCoordinate = errors.New("malformed coordinate")

	// ErrCoordinateOutOfRange is returned when latitude is outside [-90, 90] or
	// longitude is outside [-180, 180].
	ErrCoordinateOutOfRange = errors.New("coordinate out of range")
)

// CoordinateError describes why a packed coordinate could not be parsed.
type CoordinateError struct {
	Input string
	Err   error
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("parse coordinate %q: %v", e.Input, e.Err)
}

func (e *CoordinateError) Unwrap() error { return e.Err }

// ParsePosition extracts latitude and longitude from a packed coordinate
// string such as "+34.2+135.2+0/".
func ParsePosition(cod string) (Position, error) {
	h, err := ParseHypocenter(cod)
	if err != nil {
		return Position{}, err
	}
	return h.Position, nil
}

// ParseHypocenter parses a packed coordinate string into position and depth.
// The third token is elevation in metres; it is converted to a positive depth
// in kilometres. A missing third token leaves DepthKnown false.
func ParseHypocenter(cod string) (Hypocenter, error) {
	s := strings.TrimSpace(cod)
	if s == "" {
		return Hypocenter{}, &CoordinateError{Input: cod, Err: ErrEmptyCoordinate}
	}

	tokens, ok := splitPacked(s)
	if !ok || len(tokens) < 2 || len(tokens) > 3 {
		return Hypocenter{}, &CoordinateError{Input: cod, Err: ErrMalformedCoordinate}
	}

	lat, errLat := strconv.ParseFloat(tokens[0], 64)
	lon, errLon := strconv.ParseFloat(tokens[1], 64)
	if errLat != nil || errLon != nil {
		return Hypocenter{}, &CoordinateError{Input: cod, Err: ErrMalformedCoordinate}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Hypocenter{}, &CoordinateError{
			Input: cod,
			Err:   fmt.Errorf("%w: lat=%g lon=%g", ErrCoordinateOutOfRange, lat, lon),
		}
	}

	h := Hypocenter{Position: Position{Latitude: lat, Longitude: lon}}
	if len(tokens) == 3 {
		elevation, err := strconv.ParseFloat(tokens[2], 64)
		if err != nil {
			return Hypocenter{}, &CoordinateError{Input: cod, Err: ErrMalformedCoordinate}
		}
		h.DepthKm = elevationToDepthKm(elevation)
		h.DepthKnown = true
	}
	return h, nil
}

// FormatPackedCoordinate encodes a position and depth (km) as a packed
// coordinate string. It is the inverse of ParseHypocenter.
func FormatPackedCoordinate(lat, lon, depthKm float64) string {
	elevation := -math.Round(depthKm * 1000)
	var b strings.Builder
	writeSigned(&b, lat)
	writeSigned(&b, lon)
	writeSigned(&b, elevation)
	b.WriteByte('/')
	return b.String()
}

// FormatPackedPosition encodes a position with no elevation token, so the
// parsed hypocenter reports its depth as unknown.
func FormatPackedPosition(lat, lon float64) string {
	var b strings.Builder
	writeSigned(&b, lat)
	writeSigned(&b, lon)
	b.WriteByte('/')
	return b.String()
}

// splitPacked breaks a packed coordinate into signed numeric tokens. Runs of
// '/' separate tokens, and inside each segment a token starts at '+' or '-'
// and runs to the next sign. Runs of sign characters collapse into the last
// one. A segment after a slash may omit its sign, meaning '+'.
func splitPacked(s string) ([]string, bool) {
	s = strings.TrimRight(s, "/")
	if s == "" || !isSign(s[0]) {
		return nil, false
	}

	tokens := make([]string, 0, 3)
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			continue
		}
		if !isSign(seg[0]) {
			seg = "+" + seg
		}
		segTokens, ok := splitSigned(seg)
		if !ok {
			return nil, false
		}
		tokens = append(tokens, segTokens...)
	}
	return tokens, true
}

// splitSigned splits a slash-free segment that begins with a sign.
func splitSigned(s string) ([]string, bool) {
	var tokens []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i < len(s) && !isSign(s[i]) {
			continue
		}
		tok := s[start:i]
		start = i
		if len(tok) == 1 {
			if i == len(s) {
				return nil, false
			}
			continue
		}
		if !isDecimal(tok[1:]) {
			return nil, false
		}
		tokens = append(tokens, tok)
	}
	return tokens, true
}

func isSign(c byte) bool { return c == '+' || c == '-' }

// isDecimal reports whether s is digits with at most one decimal point.
func isDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func elevationToDepthKm(elevation float64) float64 {
	depth := -elevation / 1000
	if depth == 0 {
		return 0 // normalise -0
	}
	return depth
}

func writeSigned(b *strings.Builder, v float64) {
	if v == 0 {
		v = 0 // normalise -0
	}
	if v >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
}
