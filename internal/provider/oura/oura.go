// Package oura pulls daily sleep, readiness and activity summaries from
// the Oura API v2. All three collections are paginated with a next_token
// continuation and keyed by calendar day; the provider recomputes a day's
// scores as more data arrives, so these records merge under
// UpdateExisting.
package oura

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/provider"
)

const SourceName = "oura"

// Config holds Oura credentials and endpoint.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Adapter implements provider.Adapter for Oura.
type Adapter struct {
	client *provider.Client
}

// New builds an Oura adapter with its own rate-limited retryable client.
func New(cfg Config) *Adapter {
	return &Adapter{
		client: provider.NewClient(SourceName, provider.ClientConfig{
			BaseURL:           cfg.BaseURL,
			AuthToken:         cfg.Token,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: 4, // Oura allows 5 req/s per token
		}),
	}
}

func (a *Adapter) Name() string { return SourceName }

// endpoint maps one usercollection path to the record kind it yields.
var endpoints = []struct {
	path string
	kind model.RecordKind
}{
	{"/v2/usercollection/daily_sleep", model.KindSleep},
	{"/v2/usercollection/daily_readiness", model.KindReadiness},
	{"/v2/usercollection/daily_activity", model.KindActivity},
}

// Fetch pages each daily collection for the window. If a collection fails
// after the client's retry budget, the records gathered so far are
// returned with a partial fetch error; the caller decides what to do with
// them.
func (a *Adapter) Fetch(ctx context.Context, window model.TimeRange) ([]model.Record, error) {
	var out []model.Record
	for _, ep := range endpoints {
		recs, err := a.fetchCollection(ctx, ep.path, ep.kind, window)
		out = append(out, recs...)
		if err != nil {
			var fe *model.FetchError
			transient := true
			if errors.As(err, &fe) {
				transient = fe.Transient
			}
			return out, &model.FetchError{
				Source:    SourceName,
				Transient: transient,
				Partial:   true,
				Err:       fmt.Errorf("%s: %w", ep.path, err),
			}
		}
	}
	return out, nil
}

type dailyEnvelope struct {
	Data []struct {
		ID        string    `json:"id"`
		Day       string    `json:"day"`
		Score     *float64  `json:"score"`
		Timestamp time.Time `json:"timestamp"`

		// daily_activity extras; zero for the other collections
		Steps          float64 `json:"steps"`
		ActiveCalories float64 `json:"active_calories"`
		TotalCalories  float64 `json:"total_calories"`

		// daily_readiness extra
		TemperatureDeviation *float64 `json:"temperature_deviation"`
	} `json:"data"`
	NextToken *string `json:"next_token"`
}

func (a *Adapter) fetchCollection(ctx context.Context, path string, kind model.RecordKind, window model.TimeRange) ([]model.Record, error) {
	query := url.Values{
		"start_date": {window.From.UTC().Format("2006-01-02")},
		"end_date":   {window.To.UTC().Format("2006-01-02")},
	}

	var out []model.Record
	for {
		var env dailyEnvelope
		if err := a.client.GetJSON(ctx, path, query, &env); err != nil {
			return out, err
		}

		for _, d := range env.Data {
			if d.Day == "" {
				// Incomplete provider rows are dropped, never fabricated.
				continue
			}
			rec := model.Record{
				Key:     d.Day,
				Kind:    kind,
				Time:    d.Timestamp,
				Metrics: map[string]float64{},
				Attrs:   map[string]string{"providerId": d.ID},
			}
			if rec.Time.IsZero() {
				if day, err := time.Parse("2006-01-02", d.Day); err == nil {
					rec.Time = day
				}
			}
			if d.Score != nil {
				rec.Metrics["score"] = *d.Score
			}
			if kind == model.KindActivity {
				rec.Metrics["steps"] = d.Steps
				rec.Metrics["activeCalories"] = d.ActiveCalories
				rec.Metrics["totalCalories"] = d.TotalCalories
			}
			if d.TemperatureDeviation != nil {
				rec.Metrics["temperatureDeviation"] = *d.TemperatureDeviation
			}
			out = append(out, rec)
		}

		if env.NextToken == nil || *env.NextToken == "" {
			return out, nil
		}
		query.Set("next_token", *env.NextToken)
	}
}
