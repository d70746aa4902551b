// Package push delivers reminder notifications to browser push endpoints
// using the Web Push protocol with VAPID authentication.
//
// A Dispatcher performs exactly one delivery attempt per call and never
// retries. Failures are reported as *DeliveryError, which records whether
// the endpoint is permanently gone (HTTP 404 or 410) or the failure was
// transient (network errors, throttling, server errors).
package push
