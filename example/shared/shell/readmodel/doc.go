// Package readmodel contains in-process projections of the example that are fed by dispatcher subscribers.
//
// Subscribers run concurrently and may see an event more than once, so projections apply events
// idempotently and independent of their arrival order.
package readmodel
