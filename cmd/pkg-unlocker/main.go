package main

import "github.com/oshokin/pkg-unlocker/cmd/pkg-unlocker/cmd"

func main() {
	cmd.Execute()
}
