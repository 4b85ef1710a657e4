// Package stats scrapes a relay's /metrics endpoint and reduces the
// xrbridge_* families to a small summary for the agent's stats command.
package stats
