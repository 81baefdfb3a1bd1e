// Package catalog persists items, spaces, and derivation jobs in SQLite.
//
// The store is the single writer for item state. Space item counts and
// per-space tag histograms are maintained in the same transaction as the item
// mutation that changes them, so readers never observe a count that disagrees
// with the items table. Every committed mutation is mirrored onto the event
// hub after the transaction lands.
package catalog
