package main

import "github.com/Azure/toolguard/cmd"

func main() {
	cmd.Execute()
}
