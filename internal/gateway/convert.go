package gateway

import (
	"time"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

// Gateway record JSON structures. Timestamps are RFC 3339 strings; records
// whose times fail to parse are skipped rather than failing the whole fetch.

type stepsDTO struct {
	StartTime string `json:"start_time"`
	Count     int64  `json:"count"`
}

type stepsResponse struct {
	Records []stepsDTO `json:"records"`
}

type distanceDTO struct {
	StartTime string  `json:"start_time"`
	Meters    float64 `json:"meters"`
}

type distanceResponse struct {
	Records []distanceDTO `json:"records"`
}

type caloriesDTO struct {
	StartTime    string  `json:"start_time"`
	Kilocalories float64 `json:"kilocalories"`
}

type caloriesResponse struct {
	Records []caloriesDTO `json:"records"`
}

type sleepDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type sleepResponse struct {
	Records []sleepDTO `json:"records"`
}

type heartRateSampleDTO struct {
	Time string `json:"time"`
	BPM  int64  `json:"bpm"`
}

type heartRateDTO struct {
	Samples []heartRateSampleDTO `json:"samples"`
}

type heartRateResponse struct {
	Records []heartRateDTO `json:"records"`
}

type oxygenDTO struct {
	Time       string  `json:"time"`
	Percentage float64 `json:"percentage"`
}

type oxygenResponse struct {
	Records []oxygenDTO `json:"records"`
}

type exerciseDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TypeCode  int    `json:"type_code"`
	Title     string `json:"title,omitempty"`
}

type exerciseResponse struct {
	Records []exerciseDTO `json:"records"`
}

func convertSteps(in []stepsDTO) []model.StepsRecord {
	out := make([]model.StepsRecord, 0, len(in))
	for _, d := range in {
		start, err := time.Parse(time.RFC3339Nano, d.StartTime)
		if err != nil {
			continue
		}
		out = append(out, model.StepsRecord{Start: start, Count: d.Count})
	}
	return out
}

func convertDistance(in []distanceDTO) []model.DistanceRecord {
	out := make([]model.DistanceRecord, 0, len(in))
	for _, d := range in {
		start, err := time.Parse(time.RFC3339Nano, d.StartTime)
		if err != nil {
			continue
		}
		out = append(out, model.DistanceRecord{Start: start, Meters: d.Meters})
	}
	return out
}

func convertCalories(in []caloriesDTO) []model.CaloriesRecord {
	out := make([]model.CaloriesRecord, 0, len(in))
	for _, d := range in {
		start, err := time.Parse(time.RFC3339Nano, d.StartTime)
		if err != nil {
			continue
		}
		out = append(out, model.CaloriesRecord{Start: start, Kilocalories: d.Kilocalories})
	}
	return out
}

func convertSleep(in []sleepDTO) []model.SleepSession {
	out := make([]model.SleepSession, 0, len(in))
	for _, d := range in {
		start, err := time.Parse(time.RFC3339Nano, d.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339Nano, d.EndTime)
		if err != nil {
			continue
		}
		out = append(out, model.SleepSession{Start: start, End: end})
	}
	return out
}

func convertHeartRates(in []heartRateDTO) []model.HeartRateSeries {
	out := make([]model.HeartRateSeries, 0, len(in))
	for _, d := range in {
		series := model.HeartRateSeries{Samples: make([]model.HeartRateSample, 0, len(d.Samples))}
		for _, s := range d.Samples {
			ts, err := time.Parse(time.RFC3339Nano, s.Time)
			if err != nil {
				continue
			}
			series.Samples = append(series.Samples, model.HeartRateSample{Time: ts, BPM: s.BPM})
		}
		if len(series.Samples) > 0 {
			out = append(out, series)
		}
	}
	return out
}

func convertOxygen(in []oxygenDTO) []model.OxygenReading {
	out := make([]model.OxygenReading, 0, len(in))
	for _, d := range in {
		ts, err := time.Parse(time.RFC3339Nano, d.Time)
		if err != nil {
			continue
		}
		out = append(out, model.OxygenReading{Time: ts, Percentage: d.Percentage})
	}
	return out
}

func convertExercise(in []exerciseDTO) []model.ExerciseSession {
	out := make([]model.ExerciseSession, 0, len(in))
	for _, d := range in {
		start, err := time.Parse(time.RFC3339Nano, d.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339Nano, d.EndTime)
		if err != nil {
			continue
		}
		out = append(out, model.ExerciseSession{Start: start, End: end, TypeCode: d.TypeCode, Title: d.Title})
	}
	return out
}
