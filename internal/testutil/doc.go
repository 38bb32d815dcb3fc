// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core model objects. These helpers are
// intentionally minimal and not intended for production usage.
package testutil
