package main

import "github.com/oshokin/snaplauncher/cmd/snaplauncher-ctl/cmd"

func main() {
	cmd.Execute()
}
