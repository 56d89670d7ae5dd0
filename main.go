package main

import "github.com/labshed/gpibctl/cmd"

func main() {
	cmd.Execute()
}
