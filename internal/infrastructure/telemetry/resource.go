package telemetry

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// serviceVersion stamps every exported signal; bumped with releases.
const serviceVersion = "1.0.0"

// providerShutdownTimeout bounds how long a provider may block flushing
// pending telemetry during shutdown.
const providerShutdownTimeout = 10 * time.Second

// serviceResource builds the OTEL resource shared by the trace, metric and
// log pipelines, so all three report under the same service identity.
func serviceResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
