package main

import (
	"io"
	"os"
	"os/exec"

	"github.com/go-rod/rod/lib/launcher"
)

// Environment holds injectable dependencies for testability.
// Nil functions fall back to an empty environment.
type Environment struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Getenv  func(string) string
	Environ func() []string

	// LookPath resolves an executable on PATH.
	LookPath func(string) (string, error)
	// ChromePath finds an installed Chrome the way rod's launcher does.
	ChromePath func() (string, bool)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Getenv:     os.Getenv,
		Environ:    os.Environ,
		LookPath:   exec.LookPath,
		ChromePath: launcher.LookPath,
	}
}

func (e *Environment) getenv(name string) string {
	if e.Getenv == nil {
		return ""
	}
	return e.Getenv(name)
}

func (e *Environment) environ() []string {
	if e.Environ == nil {
		return nil
	}
	return e.Environ()
}

func (e *Environment) lookPath(name string) (string, error) {
	if e.LookPath == nil {
		return exec.LookPath(name)
	}
	return e.LookPath(name)
}

func (e *Environment) chromePath() (string, bool) {
	if e.ChromePath == nil {
		return launcher.LookPath()
	}
	return e.ChromePath()
}
