package main

import "github.com/localparts/tokenbridge/cmd"

func main() {
	cmd.Execute()
}
