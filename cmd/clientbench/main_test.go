package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMain_ExitCode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"clientbench", "info", "--no-color"}
	assert.Equal(t, 0, Main())

	os.Args = []string{"clientbench", "run"}
	assert.Equal(t, 1, Main())
}
