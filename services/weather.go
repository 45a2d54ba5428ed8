package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WeatherProvider supplies the current outdoor temperature used for the
// fingerprint's 5-degree bucket. Failures degrade to "no weather context",
// never to a failed recommendation.
type WeatherProvider interface {
	CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error)
}

// OpenMeteoService talks to the free open-meteo current weather endpoint.
type OpenMeteoService struct{}

type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
	} `json:"current_weather"`
}

func (OpenMeteoService) CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	query := url.Values{}
	query.Add("latitude", fmt.Sprintf("%.4f", lat))
	query.Add("longitude", fmt.Sprintf("%.4f", lon))
	query.Add("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.open-meteo.com/v1/forecast?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("weather request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var parsed openMeteoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, err
	}
	return parsed.CurrentWeather.Temperature, nil
}
