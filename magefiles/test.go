//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withStream())
	return err
}

// Runs the tests that need neither a window nor a GPU.
func (Test) Headless() error {
	_, err := executeCmd("go", withArgs("test", "-count=1",
		"./engine",
		"./engine/core/...",
		"./engine/math/...",
		"./engine/containers/...",
		"./engine/renderer",
		"./engine/renderer/metadata/...",
		"./engine/renderer/frame/...",
		"./engine/renderer/uniforms/...",
		"./engine/renderer/components/...",
		"./engine/renderer/headless/...",
		"./engine/tracking/...",
		"./engine/config/...",
		"./engine/assets/...",
		"./testbed/...",
	), withDir("."), withStream())
	return err
}
