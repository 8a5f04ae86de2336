// Package policy evaluates the messaging rules of a business: quiet-hours
// scheduling, consent-based audience resolution, keyword rule matching and
// template placeholder validation.
//
// Every function here is pure. State such as when a rule last fired is owned
// by the caller and passed in explicitly, so evaluations may run concurrently.
package policy
