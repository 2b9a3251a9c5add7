package main

import "clara/cmd"

func main() {
	cmd.Execute()
}
