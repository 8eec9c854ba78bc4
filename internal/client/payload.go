package client

// Raw provider payloads. Pointer fields distinguish "absent" from "zero" so the normalizer can
// reject payloads missing required fields.

// RawCondition is one entry of a payload's weather array.
type RawCondition struct {
	ID          *int    `json:"id"`
	Main        *string `json:"main"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// RawMain holds the main measurements block.
type RawMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	Humidity  *int     `json:"humidity"`
	Pressure  *int     `json:"pressure"`
}

// RawWind holds the wind block.
type RawWind struct {
	Speed *float64 `json:"speed"`
	Deg   *int     `json:"deg"`
}

// RawCurrent is the /weather response.
type RawCurrent struct {
	Name       *string        `json:"name"`
	Main       *RawMain       `json:"main"`
	Weather    []RawCondition `json:"weather"`
	Wind       *RawWind       `json:"wind"`
	Visibility *int           `json:"visibility"`
	Timezone   *int           `json:"timezone"`
	Sys        *RawSys        `json:"sys"`
}

// RawSys holds country and sun times (unix seconds).
type RawSys struct {
	Country *string `json:"country"`
	Sunrise *int64  `json:"sunrise"`
	Sunset  *int64  `json:"sunset"`
}

// RawForecastEntry is one 3-hour step of the /forecast response.
type RawForecastEntry struct {
	Dt      *int64         `json:"dt"`
	Main    *RawMain       `json:"main"`
	Weather []RawCondition `json:"weather"`
	Wind    *RawWind       `json:"wind"`
}

// RawForecast is the /forecast response. City.Timezone is the UTC offset in seconds.
type RawForecast struct {
	List []RawForecastEntry `json:"list"`
	City *RawCity           `json:"city"`
}

// RawCity identifies the forecast location.
type RawCity struct {
	Name     *string `json:"name"`
	Country  *string `json:"country"`
	Timezone *int    `json:"timezone"`
}

// RawLocation is one entry of the geocoding /direct response.
type RawLocation struct {
	Name    *string  `json:"name"`
	Country *string  `json:"country"`
	State   *string  `json:"state"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}
