package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-observatory/internal/analytics"
	"github.com/i474232898/weather-observatory/internal/weather"
)

var validate = validator.New()

const defaultHours = 24

// WeatherService is the live-weather dependency of the routes.
type WeatherService interface {
	GetWeather(ctx context.Context, place string) (weather.MergedObservation, error)
}

// Analytics answers the historical endpoints.
type Analytics interface {
	History(ctx context.Context, place string, hours int) ([]weather.Record, error)
	Stats(ctx context.Context, place string, hours int) (weather.Summary, error)
	Trend(ctx context.Context, place string, hours int) (analytics.TrendResult, error)
	CompareSources(ctx context.Context, place string, hours int) (analytics.SourceComparison, error)
	HourlyAverages(ctx context.Context, place string, hours int) ([]analytics.HourlyAverage, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService, engine Analytics) {
	w := app.Group("/weather")

	w.Get("/", func(c *fiber.Ctx) error {
		q := cityQuery{City: strings.TrimSpace(c.Query("city"))}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "city query parameter is required")
		}

		merged, err := service.GetWeather(c.UserContext(), q.City)
		if err != nil {
			return toFiberError(err, fmt.Sprintf("No weather data found for '%s'", q.City))
		}
		return c.JSON(merged)
	})

	w.Get("/history/:city", func(c *fiber.Ctx) error {
		q, err := parseWindowQuery(c)
		if err != nil {
			return err
		}
		records, err := engine.History(c.UserContext(), q.City, q.Hours)
		if err != nil {
			return toFiberError(err, "")
		}
		return c.JSON(fiber.Map{
			"city":              q.City,
			"hours":             q.Hours,
			"observation_count": len(records),
			"data":              records,
		})
	})

	w.Get("/stats/:city", func(c *fiber.Ctx) error {
		q, err := parseWindowQuery(c)
		if err != nil {
			return err
		}
		stats, err := engine.Stats(c.UserContext(), q.City, q.Hours)
		if err != nil {
			return toFiberError(err, "")
		}
		return c.JSON(fiber.Map{"city": q.City, "period_hours": q.Hours, "statistics": stats})
	})

	w.Get("/trend/:city", func(c *fiber.Ctx) error {
		q, err := parseWindowQuery(c)
		if err != nil {
			return err
		}
		trend, err := engine.Trend(c.UserContext(), q.City, q.Hours)
		if err != nil {
			return toFiberError(err, "")
		}
		return c.JSON(fiber.Map{"city": q.City, "period_hours": q.Hours, "trend_analysis": trend})
	})

	w.Get("/compare/:city", func(c *fiber.Ctx) error {
		q, err := parseWindowQuery(c)
		if err != nil {
			return err
		}
		cmp, err := engine.CompareSources(c.UserContext(), q.City, q.Hours)
		if err != nil {
			return toFiberError(err, "")
		}
		return c.JSON(fiber.Map{"city": q.City, "period_hours": q.Hours, "source_comparison": cmp})
	})

	w.Get("/hourly/:city", func(c *fiber.Ctx) error {
		q, err := parseWindowQuery(c)
		if err != nil {
			return err
		}
		hourly, err := engine.HourlyAverages(c.UserContext(), q.City, q.Hours)
		if err != nil {
			return toFiberError(err, "")
		}
		return c.JSON(fiber.Map{"city": q.City, "period_hours": q.Hours, "hourly_data": hourly})
	})
}

type cityQuery struct {
	City string `validate:"required"`
}

// windowQuery identifies a place and a look-back window in hours.
type windowQuery struct {
	City  string `validate:"required"`
	Hours int    `validate:"gte=0,lte=8760"`
}

func parseWindowQuery(c *fiber.Ctx) (windowQuery, error) {
	q := windowQuery{
		City:  strings.TrimSpace(c.Params("city")),
		Hours: defaultHours,
	}

	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "hours must be an integer")
		}
		q.Hours = n
	}

	if err := validate.Struct(q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return q, nil
}

// toFiberError maps core errors to HTTP status codes. notFoundMsg replaces the
// message for ErrNoData when set.
func toFiberError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, weather.ErrNoData):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		return fiber.NewError(fiber.StatusNotFound, notFoundMsg)
	case errors.Is(err, weather.ErrStorage):
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather history")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}
