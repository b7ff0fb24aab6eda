package models

import "time"

// WeatherMeasurement is the observed conditions attached to a record.
type WeatherMeasurement struct {
	Temperature float64 `json:"temperature"` // °C
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`   // percent, 0-100
	WindSpeed   float64 `json:"wind_speed"` // km/h
}

// WeatherRecord is the canonical client-side record. Both backend shapes
// (nested detail, flattened summary) are normalized into it by the client.
type WeatherRecord struct {
	ID          string             `json:"id"`
	Date        string             `json:"date"`
	Location    string             `json:"location"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"created_at,omitempty"`
	Measurement WeatherMeasurement `json:"weather_data"`
}

// DashboardStats is computed by the backend over the full record set.
type DashboardStats struct {
	TotalRecords       int     `json:"total_records"`
	UniqueLocations    int     `json:"unique_locations"`
	AverageTemperature float64 `json:"average_temperature"`
	MostCommonLocation string  `json:"most_common_location"`
}

// CreateRequest asks the backend to capture current conditions for a location.
type CreateRequest struct {
	Date     string `json:"date"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}
