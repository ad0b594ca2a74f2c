// Package repository defines the values that flow through a search pass:
// repositories resolved for an account, code search candidates, and hits.
//
// Values are immutable once created and handed between pipeline stages by
// value.
package repository
