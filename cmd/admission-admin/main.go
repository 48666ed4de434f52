package main

import "github.com/rlgprojects/admission/cmd/cli"

func main() {
	cli.Execute()
}
