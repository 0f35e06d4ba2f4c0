package main

import "github.com/aremia/jumpgates/cmd"

func main() {
	cmd.Execute()
}
