package main

import "github.com/allanyiin/slidemanager/cmd"

func main() {
	cmd.Execute()
}
