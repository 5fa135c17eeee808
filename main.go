package main

import "github.com/fakeyudi/moyu/cmd"

func main() {
	cmd.Execute()
}
