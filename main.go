package main

import "github.com/qscript-dev/qscript-runner/pkg/cli"

func main() {
	cli.Execute()
}
