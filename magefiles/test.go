//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests of every package.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the resource layer tests only; they need no GPU.
func (Test) Vulkan() error {
	_, err := executeCmd("go", withArgs("test", "-v", "./engine/renderer/vulkan/"), withStream())
	return err
}
