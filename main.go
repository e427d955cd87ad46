package main

import "github.com/RyanBlaney/apres-range/cmd"

func main() {
	cmd.Execute()
}
