// Package webhooks ingests provider webhook deliveries.
//
// Every well-formed event is acknowledged with {"received": true}, including
// event types the router does not know. Only a body that is not JSON, or that
// carries neither a webhook type nor a webhook code, is rejected as malformed.
// Follow-up work for recognized events is handed to an optional enqueuer and
// never delays or changes the acknowledgment.
package webhooks
