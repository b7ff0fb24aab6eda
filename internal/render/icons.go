package render

import (
	"strings"
	"unicode/utf8"
)

// Icon is the pictogram shown next to a record.
type Icon string

const (
	IconDroplet Icon = "droplet"
	IconCloud   Icon = "cloud"
	IconWarm    Icon = "warm"
	IconDefault Icon = "default"
)

var glyphs = map[Icon]string{
	IconDroplet: "💧",
	IconCloud:   "☁",
	IconWarm:    "☀",
	IconDefault: "☁",
}

// Glyph returns the terminal glyph for i.
func (i Icon) Glyph() string {
	if g, ok := glyphs[i]; ok {
		return g
	}
	return glyphs[IconDefault]
}

// IconFor picks an icon by case-insensitive keyword. Rules are checked in
// order and the first match wins.
func IconFor(description string) Icon {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "rain"):
		return IconDroplet
	case strings.Contains(desc, "cloud"):
		return IconCloud
	case strings.Contains(desc, "sun"), strings.Contains(desc, "clear"):
		return IconWarm
	default:
		return IconDefault
	}
}

// Band is a temperature color band.
type Band string

const (
	BandHot  Band = "hot"
	BandWarm Band = "warm"
	BandMild Band = "mild"
	BandCold Band = "cold"
)

var ansi = map[Band]string{
	BandHot:  "\x1b[31m",
	BandWarm: "\x1b[33m",
	BandMild: "\x1b[93m",
	BandCold: "\x1b[34m",
}

const ansiReset = "\x1b[0m"

// BandFor bands a temperature in °C. Lower bounds are inclusive.
func BandFor(celsius float64) Band {
	switch {
	case celsius >= 25:
		return BandHot
	case celsius >= 15:
		return BandWarm
	case celsius >= 5:
		return BandMild
	default:
		return BandCold
	}
}

const shortIDLen = 8

// ShortID truncates id to its first eight characters followed by "...".
func ShortID(id string) string {
	if utf8.RuneCountInString(id) <= shortIDLen {
		return id + "..."
	}
	return string([]rune(id)[:shortIDLen]) + "..."
}
