// Package taxonomy defines the gateway-wide error taxonomy: the closed set of
// error kinds, their fixed severities and categories, and the single
// classification point that turns raised failures into structured records.
//
// Past classification, the gateway passes ErrorRecord values between
// components instead of raw errors. Every kind string is stable and safe to
// place on the wire; internal causes never are.
package taxonomy
