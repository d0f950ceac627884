//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir = "assets/shaders"
	binary    = "bin/array"
)

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to its source.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if err := os.MkdirAll(filepath.Dir(binary), 0o755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", binary, "."), withStream())
	return err
}

func buildShaders() error {
	var stages []string
	for _, pattern := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		stages = append(stages, matches...)
	}
	if len(stages) == 0 {
		return fmt.Errorf("no shader stages found in %s", shaderDir)
	}
	for _, stage := range stages {
		out := stage + ".spv"
		if !mg.Verbose() && upToDate(stage, out) {
			continue
		}
		if _, err := executeCmd("glslc", withArgs("--target-env=vulkan1.1", stage, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

func upToDate(src, dst string) bool {
	s, err := os.Stat(src)
	if err != nil {
		return false
	}
	d, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return !d.ModTime().Before(s.ModTime())
}
