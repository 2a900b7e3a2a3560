package main

import "github.com/mentorspark/sessiond/cmd/sessionctl/cmd"

func main() {
	cmd.Execute()
}
