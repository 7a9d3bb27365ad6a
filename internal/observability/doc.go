// Package observability builds the zap logger and the Prometheus collectors
// shared by the storefront gateway.
//
// Metrics cover the three places where the gateway makes decisions on behalf
// of the browser:
//   - Route Gate outcomes (pass, login redirect, default-path redirect)
//   - checkout step transitions and order submissions
//   - calls to the store backend, including exchange-rate refreshes
//
// A nil *Metrics is valid and records nothing.
package observability
