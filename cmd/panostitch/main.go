package main

import "github.com/MeKo-Tech/panostitch/cmd/panostitch/cmd"

func main() {
	cmd.Execute()
}
