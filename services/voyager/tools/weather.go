// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const (
	openMeteoHost        = "api.open-meteo.com"
	openMeteoGeocodeHost = "geocoding-api.open-meteo.com"
)

// WeatherTool answers current-conditions and short-range forecast
// questions via the Open-Meteo public API. Two calls per invocation:
// geocode the city, then fetch the forecast for its coordinates.
type WeatherTool struct {
	httpClient   *http.Client
	geocodeBase  string
	forecastBase string
}

// NewWeatherTool creates the adapter with production endpoints.
func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		httpClient:   &http.Client{Timeout: 8 * time.Second},
		geocodeBase:  "https://" + openMeteoGeocodeHost + "/v1/search",
		forecastBase: "https://" + openMeteoHost + "/v1/forecast",
	}
}

// WithEndpoints overrides both API endpoints, for tests.
func (t *WeatherTool) WithEndpoints(geocode, forecast string) *WeatherTool {
	t.geocodeBase = geocode
	t.forecastBase = forecast
	return t
}

func (t *WeatherTool) Name() string { return "weather" }
func (t *WeatherTool) Host() string { return openMeteoHost }

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// Invoke geocodes args["city"] and fetches its forecast.
func (t *WeatherTool) Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error) {
	city := args["city"]

	geo, err := t.geocode(ctx, city)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", geo.lat))
	q.Set("longitude", fmt.Sprintf("%.4f", geo.lon))
	q.Set("current", "temperature_2m,weather_code,wind_speed_10m")
	q.Set("daily", "temperature_2m_max,temperature_2m_min")
	q.Set("forecast_days", "3")

	var fc forecastResponse
	reqURL := t.forecastBase + "?" + q.Encode()
	if err := t.getJSON(ctx, reqURL, &fc); err != nil {
		return nil, fmt.Errorf("forecast for %q: %w", city, err)
	}

	facts := []datatypes.Fact{
		{
			Source: "open-meteo",
			Key:    "current_weather",
			Value: fmt.Sprintf("%s, %s: %.1f°C, %s, wind %.0f km/h",
				geo.name, geo.country, fc.Current.Temperature,
				describeWeatherCode(fc.Current.WeatherCode), fc.Current.WindSpeed),
			URL: reqURL,
		},
	}
	if len(fc.Daily.TempMax) > 0 && len(fc.Daily.TempMin) > 0 {
		facts = append(facts, datatypes.Fact{
			Source: "open-meteo",
			Key:    "forecast_range",
			Value: fmt.Sprintf("next 3 days in %s: highs to %.0f°C, lows to %.0f°C",
				geo.name, maxOf(fc.Daily.TempMax), minOf(fc.Daily.TempMin)),
			URL: reqURL,
		})
	}
	return facts, nil
}

type geoPoint struct {
	name, country string
	lat, lon      float64
}

func (t *WeatherTool) geocode(ctx context.Context, city string) (geoPoint, error) {
	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")

	var resp geocodeResponse
	if err := t.getJSON(ctx, t.geocodeBase+"?"+q.Encode(), &resp); err != nil {
		return geoPoint{}, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(resp.Results) == 0 {
		return geoPoint{}, fmt.Errorf("geocode %q: no results", city)
	}
	r := resp.Results[0]
	return geoPoint{name: r.Name, country: r.Country, lat: r.Latitude, lon: r.Longitude}, nil
}

func (t *WeatherTool) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// describeWeatherCode maps WMO weather codes to short descriptions.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
