// Package capacity decides how many sessions a fixed number of identical
// charging stations can serve and searches for the station count that meets a
// service quota.
//
// Sessions occupy a station over the half-open window [Start, End). Schedule
// maximises the number of served sessions; Size scales the station count until
// the served fraction reaches the quota; Label applies a sized pool per
// (class, week) to mark sessions as served.
package capacity
