// Package domain models weather oracle requests, their fulfillment events and
// the reports materialized from them.
//
// # Request lifecycle
//
// A client funds a request for a named city from the contract's escrow. The
// contract records it as pending and emits a WeatherRequested event. The
// oracle network later calls back with the observed weather; the contract
// drops the pending entry and emits a WeatherReported event, which the
// indexer turns into a Report.
//
//	nonexistent -> pending -> fulfilled (terminal, not stored)
//
// Pending requests never expire. A request that is never fulfilled keeps its
// fee in the oracle network's hands.
//
// # Identifiers
//
// Request IDs are keccak256(contract address || uint256 nonce), the same
// derivation Chainlink clients use. The nonce only ever grows and is stored
// with the rest of the contract state, so an ID is never reissued for a
// contract address as long as its state store is kept. See [RequestID].
//
// # Fixed-point temperatures
//
// Temperatures travel as int32 hundredths of a degree Celsius:
//
//	1550  -> 15.50°C
//	-5    -> -0.05°C
//
// # Wire format
//
// Events are JSON objects with a fixed field order. Every field is required;
// decoding an event with a missing field fails with [ErrMalformedEvent]
// instead of defaulting it:
//
//	WeatherRequested {requestId, city, requester, timestamp}
//	WeatherReported  {requestId, city, temperature, description, timestamp, requester}
package domain
