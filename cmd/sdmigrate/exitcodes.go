package main

// Exit codes
const (
	ExitSuccess = 0 // Success
	ExitError   = 1 // Any failure: invalid settings, authentication, network, migration
)
