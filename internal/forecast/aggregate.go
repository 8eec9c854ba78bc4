// Package forecast collapses fine-grained provider forecast samples into daily summaries.
package forecast

import (
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// dayBucket accumulates the samples of one calendar day.
type dayBucket struct {
	date        string
	first       models.RawSample
	tempMin     float64
	tempMax     float64
	humiditySum int
	count       int
}

// Aggregate groups samples by the calendar date of their timestamp and returns at most maxDays
// summaries in the order days were first seen. Temperature min/max span the whole day; humidity
// is the truncated integer mean; weather condition and wind speed come from the day's first
// sample. Empty input yields an empty, non-nil slice.
func Aggregate(samples []models.RawSample, maxDays int) []models.DailySummary {
	if maxDays <= 0 || len(samples) == 0 {
		return []models.DailySummary{}
	}

	index := make(map[string]int)
	var buckets []*dayBucket
	for _, s := range samples {
		date := s.Timestamp.Format(dateLayout)
		i, ok := index[date]
		if !ok {
			index[date] = len(buckets)
			buckets = append(buckets, &dayBucket{
				date:    date,
				first:   s,
				tempMin: s.Temp,
				tempMax: s.Temp,
			})
			i = len(buckets) - 1
		}
		b := buckets[i]
		if s.Temp < b.tempMin {
			b.tempMin = s.Temp
		}
		if s.Temp > b.tempMax {
			b.tempMax = s.Temp
		}
		b.humiditySum += s.Humidity
		b.count++
	}

	if len(buckets) > maxDays {
		buckets = buckets[:maxDays]
	}

	out := make([]models.DailySummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.DailySummary{
			Date:               b.date,
			TemperatureMin:     b.tempMin,
			TemperatureMax:     b.tempMax,
			Humidity:           b.humiditySum / b.count,
			WeatherCode:        b.first.Condition.Code,
			WeatherMain:        b.first.Condition.Main,
			WeatherDescription: b.first.Condition.Description,
			Icon:               b.first.Condition.Icon,
			WindSpeed:          b.first.WindSpeed,
		})
	}
	return out
}
