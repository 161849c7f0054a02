package main

import "gridseq/cmd"

func main() {
	cmd.Execute()
}
