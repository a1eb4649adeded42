// Package plaid implements core.ProviderClient against the Plaid HTTP API:
// link token creation, public token exchange and payroll income retrieval,
// either directly or through an intermediary report endpoint.
package plaid
