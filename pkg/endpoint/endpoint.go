// Package endpoint describes the remote mapping capabilities and how requests
// to each of them are shaped.
package endpoint

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jdziat/bulk-mapper/pkg/core"
)

// Endpoint is one of the remote mapping capabilities.
type Endpoint int

const (
	Domain Endpoint = iota + 1
	Merchant
	Product
)

// Shaping holds per-request options that depend on the caller, not the endpoint.
type Shaping struct {
	// CompaniesOnly asks the merchant mapper to treat inputs as company names.
	CompaniesOnly bool
}

// Parse resolves an endpoint name. Both the short ("domain") and the path
// form ("domain-mapper") are accepted.
func Parse(name string) (Endpoint, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "domain", "domain-mapper":
		return Domain, nil
	case "merchant", "merchant-mapper":
		return Merchant, nil
	case "product", "product-mapper":
		return Product, nil
	case "domains", "merchants", "products":
		return 0, fmt.Errorf("%w %q, use one of domain-mapper, merchant-mapper, product-mapper", core.ErrOutdatedEndpoint, name)
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownEndpoint, name)
}

// All returns every endpoint in declaration order.
func All() []Endpoint {
	return []Endpoint{Domain, Merchant, Product}
}

func (e Endpoint) String() string {
	switch e {
	case Domain:
		return "domain"
	case Merchant:
		return "merchant"
	case Product:
		return "product"
	}
	return fmt.Sprintf("endpoint(%d)", int(e))
}

// Valid reports whether e is a known endpoint.
func (e Endpoint) Valid() bool {
	return e >= Domain && e <= Product
}

// Path is the URL path segment of the endpoint.
func (e Endpoint) Path() string {
	return e.String() + "-mapper"
}

// DefaultBatchSize is how many inputs are sent per request when the caller
// does not override it. The domain mapper accepts batches; merchant and
// product strings are resolved one per request.
func (e Endpoint) DefaultBatchSize() int {
	if e == Domain {
		return 10
	}
	return 1
}

// MaxBatchSize is the largest batch the endpoint accepts.
func (e Endpoint) MaxBatchSize() int {
	if e == Domain {
		return 50
	}
	return 10
}

// BatchSize clamps a requested batch size to the endpoint's limits.
// Non-positive values select the default.
func (e Endpoint) BatchSize(n int) int {
	if n <= 0 {
		return e.DefaultBatchSize()
	}
	if m := e.MaxBatchSize(); n > m {
		return m
	}
	return n
}

// Shape applies endpoint specific headers to an outgoing request.
func (e Endpoint) Shape(h http.Header, s Shaping) {
	if e == Merchant && s.CompaniesOnly {
		h.Set("X-Input-Type", "company name")
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Endpoint) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownEndpoint, int(e))
	}
	return []byte(e.Path()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endpoint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
