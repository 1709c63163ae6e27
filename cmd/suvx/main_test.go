package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semcp/semcp/pkg/runner"
)

func TestDetermineImage(t *testing.T) {
	assert.Equal(t, runner.PythonAlpine, determineImage(&options{}))
	assert.Equal(t, runner.PythonAlpine, determineImage(&options{alpine: true}))
	assert.Equal(t, runner.PythonSlim, determineImage(&options{slim: true}))
	assert.Equal(t, runner.PythonStandard, determineImage(&options{standard: true}))
}

func TestBuildUvxFlags(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, buildUvxFlags(&options{}))
	})

	t.Run("AllFlags", func(t *testing.T) {
		got := buildUvxFlags(&options{
			python:        "3.12",
			fromPackage:   "httpie",
			withPackages:  []string{"rich", "click"},
			withEditable:  []string{"./local"},
			index:         "https://pypi.org/simple",
			indexURL:      "https://pypi.org/simple",
			extraIndexURL: []string{"https://extra.example/simple"},
			findLinks:     []string{"./wheels"},
			noIndex:       true,
			prerelease:    true,
			upgrade:       true,
			reinstall:     true,
			noDeps:        true,
		})
		assert.Equal(t, []string{
			"--python", "3.12",
			"--from", "httpie",
			"--with", "rich",
			"--with", "click",
			"--with-editable", "./local",
			"--index", "https://pypi.org/simple",
			"--index-url", "https://pypi.org/simple",
			"--extra-index-url", "https://extra.example/simple",
			"--find-links", "./wheels",
			"--no-index",
			"--prerelease", "allow",
			"--upgrade",
			"--force-reinstall",
			"--no-deps",
		}, got)
	})
}
