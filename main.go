package main

import "github.com/setrace/setrace/cmd"

func main() {
	cmd.Execute()
}
