/*
Package observability provides tools for monitoring runs of the reference driver.

It includes Prometheus metrics fed by lifecycle hooks, a structured logging
hook set, and helpers to compose several hook sets into one.
*/
package observability
