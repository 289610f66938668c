// Package logs tails the daemon log file for the CLI.
//
// Tail prints the last lines of a file and can keep following it, picking up
// from the start again when log retention truncates or replaces the file.
// Filters select lines for a single job in both console and JSON formats.
package logs
