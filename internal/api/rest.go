package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/medleyhq/medley/internal/aggregation"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	aggregatorService interface {
		RunBatch(ctx context.Context) (*aggregation.Summary, error)
		LastSummary() *aggregation.Summary
	}

	searchService interface {
		Search(ctx context.Context, query string, limit int) ([]*title.Record, error)
	}

	healthService interface {
		Snapshot(lastBatch *aggregation.Summary) (*aggregation.HealthSnapshot, error)
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router exposing
	// the operator surface: pipeline health, catalog search, and a manual
	// aggregation trigger.
	RestGateway struct {
		config     *RestConfig
		ec         *echo.Echo
		aggregator aggregatorService
		searcher   searchService
		health     healthService
	}
)

func NewRestGateway(config *RestConfig, aggregator aggregatorService, searcher searchService, health healthService) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	gateway := &RestGateway{
		config:     config,
		ec:         ec,
		aggregator: aggregator,
		searcher:   searcher,
		health:     health,
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	v1 := ec.Group("/api/medley/v1")
	v1.GET("/health/", gateway.getHealth)
	v1.GET("/search/", gateway.getSearch)
	v1.POST("/aggregate/", gateway.postAggregate)

	return gateway
}

// getHealth returns the current health snapshot of the pipeline, including
// the summary of the most recent aggregation batch.
func (gateway *RestGateway) getHealth(ec echo.Context) error {
	snapshot, err := gateway.health.Snapshot(gateway.aggregator.LastSummary())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, snapshot)
}

// getSearch queries the search index (with canonical store fallback) for the
// given query string.
func (gateway *RestGateway) getSearch(ec echo.Context) error {
	query := ec.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'query' is required")
	}

	limit := 0
	if rawLimit := ec.QueryParam("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'limit' must be a positive integer")
		}

		limit = parsed
	}

	records, err := gateway.searcher.Search(ec.Request().Context(), query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, records)
}

// postAggregate runs one aggregation batch on demand and returns its summary.
func (gateway *RestGateway) postAggregate(ec echo.Context) error {
	summary, err := gateway.aggregator.RunBatch(ec.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, summary)
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
