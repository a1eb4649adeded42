// Package providers groups the live payroll provider clients. plaid holds the
// Plaid link, exchange and payroll income client; devkit holds scripted
// transports and response fixtures for tests.
package providers
