// Package harness runs YAML conformance scenarios against a fresh store.
//
// A scenario seeds teams and members, runs a sequence of repository
// operations, checks each step's expectation, and finally evaluates
// assertions over the database, the invalidation journal, and the session
// cache. Every step is recorded in a trace that can be compared against a
// golden file.
//
// # Scenario Format
//
//	name: stale_read_after_bulk_update
//	description: "A cached member is evicted by a bulk update"
//	setup:
//	  teams: [teamA, teamB]
//	  members:
//	    - {user_name: member1, age: 10, team: teamA}
//	steps:
//	  - op: find
//	    member: member1
//	    expect: {age: 10}
//	  - op: update
//	    where: {age_loe: 20}
//	    increment: {age: 1}
//	    expect: {affected: 1}
//	assertions:
//	  - type: journal
//	    entity: Member
//	    count: 1
//
// # Operations
//
//	search         members matching condition, ordered, optionally paged
//	search_page    search plus total count
//	find           member by user name, served from the session cache
//	find_fresh     member by user name, bypassing the cache
//	update         bulk update of members matching where
//	delete         bulk delete of members matching where
//	direct_update  single-row write that skips invalidation
//	stats          count/sum/avg/max/min of member ages
//	team_averages  average member age per team
//
// Each run uses an in-memory SQLite database and a fixed signal ID
// sequence, so identical scenarios produce byte-identical traces.
package harness
