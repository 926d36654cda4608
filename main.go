package main

import "create-uix-app/cmd"

func main() {
	cmd.Execute()
}
