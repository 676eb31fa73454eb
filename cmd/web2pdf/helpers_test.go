package main

import (
	"bytes"
	"errors"
)

// testEnv returns an Environment backed by vars with captured output.
// No binary is ever found unless the test overrides the lookups.
func testEnv(vars map[string]string) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	env := &Environment{
		Stdout: &stdout,
		Stderr: &stderr,
		Getenv: func(k string) string { return vars[k] },
		Environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
		LookPath:   func(string) (string, error) { return "", errors.New("not found") },
		ChromePath: func() (string, bool) { return "", false },
	}
	return env, &stdout, &stderr
}
