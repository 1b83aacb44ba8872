package main

import "github.com/ppiankov/consentwatch/internal/cli"

func main() {
	cli.Execute()
}
