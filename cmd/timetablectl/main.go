package main

import "github.com/noah-isme/eduschedule-api/internal/cli"

func main() {
	cli.Execute()
}
