package providers

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

const (
	fmiStoredQuery = "fmi::observations::weather::simple"
	fmiMissing     = "NaN"
)

// FMI parameter names requested from the simple observations query.
const (
	fmiTemperature   = "t2m"
	fmiWindSpeed     = "ws_10min"
	fmiHumidity      = "rh"
	fmiPressure      = "p_sea"
	fmiPrecipitation = "ri_10min"
)

var fmiParameters = []string{fmiTemperature, fmiWindSpeed, fmiHumidity, fmiPressure, fmiPrecipitation}

// fmiFeatureCollection is the root of a simple-feature WFS response.
type fmiFeatureCollection struct {
	XMLName xml.Name           `xml:"FeatureCollection"`
	Members []fmiFeatureMember `xml:"member"`
}

type fmiFeatureMember struct {
	Element fmiElement `xml:"BsWfsElement"`
}

// fmiElement is one (time, parameter, value) record.
type fmiElement struct {
	Time           string `xml:"Time"`
	ParameterName  string `xml:"ParameterName"`
	ParameterValue string `xml:"ParameterValue"`
}

// fmiExceptionReport is the OWS error document FMI returns with 4xx statuses.
type fmiExceptionReport struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		ExceptionCode string   `xml:"exceptionCode,attr"`
		ExceptionText []string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

// FMIProvider implements weather.Provider for the FMI open data WFS service.
// The upstream resolves the observation station from the place name itself.
type FMIProvider struct {
	baseURL string
	window  time.Duration
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

// NewFMIProvider creates an FMI provider. window is how far back observations
// are requested; the most recent valid value per parameter wins.
func NewFMIProvider(client *http.Client, baseURL string, window time.Duration, backoff BackoffConfig, logger *slog.Logger) *FMIProvider {
	if baseURL == "" {
		baseURL = "https://opendata.fmi.fi/wfs"
	}
	if window <= 0 {
		window = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FMIProvider{
		baseURL: baseURL,
		window:  window,
		httpCfg: HTTPClientConfig{Client: client, Backoff: backoff, Logger: logger},
		circuit: newCircuitBreaker("fmi"),
		logger:  logger,
		now:     time.Now,
	}
}

func (p *FMIProvider) Source() weather.Source {
	return weather.SourceFMI
}

func (p *FMIProvider) RequiresCoordinates() bool {
	return false
}

func (p *FMIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if strings.TrimSpace(loc.Place) == "" {
		return weather.Observation{}, fmt.Errorf("fmi requires a place name")
	}

	buildRequest := func() (*http.Request, error) {
		params := url.Values{}
		params.Set("service", "WFS")
		params.Set("version", "2.0.0")
		params.Set("request", "getFeature")
		params.Set("storedquery_id", fmiStoredQuery)
		params.Set("place", loc.Place)
		params.Set("parameters", strings.Join(fmiParameters, ","))
		params.Set("starttime", p.now().Add(-p.window).UTC().Format("2006-01-02T15:04:05Z"))
		params.Set("timestep", "10")

		return http.NewRequest(http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, "fmi", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var ue *weather.UpstreamError
		if errors.As(err, &ue) && ue.Status == http.StatusBadRequest {
			if msg, ok := parseFMIException(ue.Body); ok && common.HasAny(msg, "place", "location") {
				return weather.Observation{}, fmt.Errorf("%w: fmi: %s", weather.ErrEmptyResult, msg)
			}
		}
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	return p.parse(loc.Place, resp.Body)
}

// parse reduces the parameter records to the latest valid value per parameter.
func (p *FMIProvider) parse(place string, body io.Reader) (weather.Observation, error) {
	var fc fmiFeatureCollection
	if err := xml.NewDecoder(body).Decode(&fc); err != nil {
		return weather.Observation{}, fmt.Errorf("fmi: failed to parse XML: %w", err)
	}

	latest := make(map[string]float64)
	for _, m := range fc.Members {
		name := strings.TrimSpace(m.Element.ParameterName)
		raw := strings.TrimSpace(m.Element.ParameterValue)
		if name == "" || raw == "" || strings.EqualFold(raw, fmiMissing) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			p.logger.Debug("fmi: skipping unparsable value", "parameter", name, "value", raw)
			continue
		}
		latest[name] = v
	}

	if len(latest) == 0 {
		return weather.EmptyObservation(place, weather.SourceFMI), nil
	}

	obs := weather.Observation{
		Place:  place,
		Source: weather.SourceFMI,
	}
	if t, ok := latest[fmiTemperature]; ok {
		obs.Temperature = t
	} else {
		p.logger.Warn("fmi: temperature missing, reporting 0", "place", place)
	}
	if v, ok := latest[fmiWindSpeed]; ok {
		obs.WindSpeedMps = weather.Float(v)
	}
	if v, ok := latest[fmiHumidity]; ok {
		obs.Humidity = weather.Int(int(v))
	}
	if v, ok := latest[fmiPressure]; ok {
		obs.PressureHPa = weather.Float(v)
	}
	if v, ok := latest[fmiPrecipitation]; ok {
		obs.PrecipitationMm = weather.Float(v)
	}
	obs.Description = describeConditions(obs)

	return obs, nil
}

// describeConditions derives a label from thresholds; first match wins.
func describeConditions(obs weather.Observation) string {
	switch {
	case obs.PrecipitationMm != nil && *obs.PrecipitationMm > 0.2:
		return "rain"
	case obs.WindSpeedMps != nil && *obs.WindSpeedMps > 8:
		return "windy"
	case obs.Temperature < -5:
		return "freezing"
	case obs.Temperature > 20:
		return "warm and clear"
	default:
		return "cloudy or partly cloudy"
	}
}

// parseFMIException flattens an OWS exception report into one message.
func parseFMIException(body []byte) (string, bool) {
	var report fmiExceptionReport
	if err := xml.Unmarshal(body, &report); err != nil || len(report.Exceptions) == 0 {
		return "", false
	}
	exc := report.Exceptions[0]
	msg := fmt.Sprintf("FMI API Error [%s]", exc.ExceptionCode)
	if len(exc.ExceptionText) > 0 {
		msg += ": " + strings.Join(exc.ExceptionText, " | ")
	}
	return msg, true
}
