package cgroups

import "errors"

var (
	// ErrUnknownSubsystem is returned when an operation names a subsystem the
	// group was not created with.
	ErrUnknownSubsystem = errors.New("cgroups: group does not have subsystem")

	// ErrNoSubsystems is returned by Create when no subsystem is given.
	ErrNoSubsystems = errors.New("cgroups: no subsystems")

	// ErrBadName is returned for an empty or path-like group, subsystem or
	// control file name.
	ErrBadName = errors.New("cgroups: invalid name")
)
