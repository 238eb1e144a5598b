package state

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Resource identity attached to everything the exporter reports.
const (
	IdentityKey   = "exporter"
	IdentityValue = "eunomia"
)

// createResource builds the exporter resource. The identity attribute is
// always present and cannot be overridden by extra attributes.
func createResource(extra []attribute.KeyValue) (*resource.Resource, error) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+1)
	for _, kv := range extra {
		if kv.Key == IdentityKey {
			continue
		}
		attrs = append(attrs, kv)
	}
	attrs = append(attrs, attribute.String(IdentityKey, IdentityValue))

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}
