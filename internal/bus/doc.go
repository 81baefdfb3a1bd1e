// Package bus is the in-process change-notification fan-out between the core
// and UI collaborators. Events for a single item are delivered in publish
// order; slow subscribers degrade to keeping only the newest event per item
// instead of blocking the publisher.
package bus
