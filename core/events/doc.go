// Package events defines the engine events published on the event bus.
//
// Available event types:
//   - BookingTransitioned: a booking changed status
//   - AggregateFinalized: a daily revenue aggregate was written
//   - PricingChanged: a new price list was committed
//
// The engine never assumes a push transport; collaborators subscribe to the
// bus and forward events wherever they need to.
package events
