package main

import "github.com/Corphon/PersonaMarket/cmd/personactl/cmd"

func main() {
	cmd.Execute()
}
