package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"seed"},
		{"import"},
		{"chat"},
		{"affiliates", "reset-link"},
		{"commissions", "reconcile"},
	} {
		cmd, _, err := root.Find(path)
		if assert.NoError(t, err, path) {
			assert.Equal(t, path[len(path)-1], cmd.Name())
		}
	}
}
