package main

import "github.com/javi11/skillvault/cmd/skillvault/cmd"

func main() {
	cmd.Execute()
}
