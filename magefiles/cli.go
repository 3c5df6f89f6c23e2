//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a literature search for query.
func Search(query string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "search", query)
}

// Templates builds the CLI and lists the supported paper types.
func Templates() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "templates")
}

// Run builds the CLI and runs the given pending task.
func Run(taskID string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "task", "run", taskID)
}
