package weather

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeatherItem is one observation as returned by the provider.
type WeatherItem struct {
	Dt        int64           `json:"dt"`
	Humidity  decimal.Decimal `json:"humidity"`
	Pressure  decimal.Decimal `json:"pressure"`
	Temp      Temperature     `json:"temp"`
	WindSpeed decimal.Decimal `json:"wind_speed"`
}

// Temperature aggregates are in Kelvin.
type Temperature struct {
	AverageMin decimal.Decimal `json:"average_min"`
	Average    decimal.Decimal `json:"average"`
	AverageMax decimal.Decimal `json:"average_max"`
}

type WeatherModel struct {
	List []WeatherItem `json:"list"`
}

// Lookup is the history record of a single query and its outcome.
type Lookup struct {
	ID    string        `json:"id" validate:"required"`
	Query string        `json:"query"`
	At    time.Time     `json:"at" validate:"required"`
	Items int           `json:"items" validate:"gte=0"`
	Error string        `json:"error,omitempty"`
	Model *WeatherModel `json:"model,omitempty"`
}

// Failed reports whether the lookup ended with an ErrorData.
func (l *Lookup) Failed() bool {
	return l.Error != ""
}

type LookupRequest struct {
	Query string `json:"query"`
}
