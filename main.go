package main

import "github.com/kozaktomas/selfie-finder/cmd"

func main() {
	cmd.Execute()
}
