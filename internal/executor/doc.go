// Package executor runs composed queries against an execution target and
// maps the resulting rows into typed records.
//
// A query submission is the combination of a queryir.Select (condition,
// joins, ordering), a queryir.Projection (result shape), and an optional
// queryir.PageRequest. The executor:
//
//  1. binds the projection to the query (adding fetch-join columns)
//  2. validates the bound query against the catalog
//  3. submits it to the Target
//  4. maps each positional row through the projection
//
// Steps 1 and 2 are pure; any error they raise is returned before the
// Target is contacted.
//
// # Paging and counts
//
// Fetch applies an optional page after ordering and makes one round trip.
// FetchPage additionally submits a count over the same condition, a second
// round trip, to fill PageResult.Total. Callers that only need a bounded
// slice should use Fetch.
//
// # Rows
//
// Rows travel as queryir.Tuple values between the Target and the
// projection. Tuples never leave this layer through a repository; callers
// receive entities or DTOs.
package executor
