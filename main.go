package main

import "badge-engine/cmd"

func main() {
	cmd.Execute()
}
