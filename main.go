package main

import "hearth-backend/cmd"

func main() {
	cmd.Run()
}
