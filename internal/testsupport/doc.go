// Package testsupport provides shared fixtures for package tests: a config
// seeded with temp directories and fast timings, a manually advanced clock
// and a scripted encoder gateway.
package testsupport
