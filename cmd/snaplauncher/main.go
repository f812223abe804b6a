package main

import "github.com/oshokin/snaplauncher/cmd/snaplauncher/cmd"

func main() {
	cmd.Execute()
}
