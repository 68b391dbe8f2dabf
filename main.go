package main

import "github.com/crazyfrankie/cgbench/cmd"

func main() {
	cmd.Execute()
}
