//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TickerPulse/pkg/config"
	"TickerPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCacheService,
		ProvideKafkaProducer,

		// Repositories
		ProvideStateRepository,
		ProvideSeriesStore,
		ProvideUniverse,
		ProvideEventPublisher,

		// State and push
		ProvideHub,
		ProvideStateCache,

		// Upstream sources
		ProvideMarketData,
		ProvideListingSources,
		ProvideCatalog,

		// Use cases
		ProvideHistorical,
		ProvideDiscovery,
		ProvideSelector,
		ProvideForecast,
		ProvideLiveMonitor,
		ProvideOrchestrator,

		// Transport
		ProvideAPIHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
