package main

import "github.com/DNYoussef/spek-v2-rebuild-sub002/cmd"

func main() {
	cmd.Execute()
}
