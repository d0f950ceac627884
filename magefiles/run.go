//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the engine with config.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the engine on the headless backend, no GPU or shaders needed.
func (Run) Headless() error {
	fmt.Println("Run headless engine...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "testdata/headless.toml"), withStream())
	return err
}
