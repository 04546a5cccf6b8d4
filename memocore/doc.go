// Package memocore defines what a memo backing tier needs from a backend:
// a Driver name and a Store that can read, write and drop one record at a
// time. It imports nothing outside the standard library, so drivers and test
// helpers can depend on it without depending on memo itself.
package memocore
