package main

import "doghair/cmd"

func main() {
	cmd.Execute()
}
