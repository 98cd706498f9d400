package main

import "github.com/theirongolddev/adpulse/cmd"

func main() {
	cmd.Execute()
}
