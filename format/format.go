// Package format turns decoded weather items into display strings.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/steakoverflow/weather"
)

const (
	places           = 2
	temperatureWidth = 15
	shortDate        = "1/2/06"
)

var absoluteZero = decimal.RequireFromString("273.15")

type Rounding int

const (
	// HalfEven rounds ties to the nearest even digit.
	HalfEven Rounding = iota
	// Down truncates toward zero.
	Down
)

func (r Rounding) String() string {
	switch r {
	case Down:
		return "down"
	default:
		return "half-even"
	}
}

func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half-even", "halfeven", "bank":
		return HalfEven, nil
	case "down", "truncate":
		return Down, nil
	default:
		return HalfEven, fmt.Errorf("invalid rounding %q (allowed: half-even, down)", s)
	}
}

func (r Rounding) round(d decimal.Decimal) decimal.Decimal {
	if r == Down {
		return d.RoundDown(places)
	}
	return d.RoundBank(places)
}

// Fixed renders d with exactly two decimals.
func (r Rounding) Fixed(d decimal.Decimal) string {
	return r.round(d).StringFixed(places)
}

type Options struct {
	Rounding Rounding
	Location *time.Location
}

func Celsius(kelvin decimal.Decimal, r Rounding) string {
	return r.Fixed(kelvin.Sub(absoluteZero))
}

// Temperatures renders "min / max" in Celsius, right-padded to 15 characters.
// Longer strings are left intact.
func Temperatures(t weather.Temperature, r Rounding) string {
	full := Celsius(t.AverageMin, r) + " / " + Celsius(t.AverageMax, r)

	if n := utf8.RuneCountInString(full); n < temperatureWidth {
		full += strings.Repeat(" ", temperatureWidth-n)
	}

	return full
}

func Humidity(item weather.WeatherItem, r Rounding) string {
	return r.Fixed(item.Humidity) + "%"
}

func Pressure(item weather.WeatherItem, r Rounding) string {
	return r.Fixed(item.Pressure) + " mbar"
}

func WindSpeed(item weather.WeatherItem, r Rounding) string {
	return r.Fixed(item.WindSpeed) + " m/s"
}

func Date(dt int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(dt, 0).In(loc).Format(shortDate)
}

// Row returns the table cells for one item: date, humidity, pressure,
// temperatures and wind speed.
func Row(item weather.WeatherItem, opts Options) []string {
	return []string{
		Date(item.Dt, opts.Location),
		Humidity(item, opts.Rounding),
		Pressure(item, opts.Rounding),
		Temperatures(item.Temp, opts.Rounding) + " ºC",
		WindSpeed(item, opts.Rounding),
	}
}

func Rows(model *weather.WeatherModel, opts Options) [][]string {
	if model == nil {
		return [][]string{}
	}

	rows := make([][]string, 0, len(model.List))
	for _, item := range model.List {
		rows = append(rows, Row(item, opts))
	}
	return rows
}

// Message upper-cases the first letter of the error message.
func Message(e *weather.ErrorData) string {
	if e == nil || e.Message == "" {
		return ""
	}

	_, size := utf8.DecodeRuneInString(e.Message)
	return cases.Upper(language.Und).String(e.Message[:size]) + e.Message[size:]
}
