package main

import "github.com/Yates-Labs/tubeqa/cmd"

func main() {
	cmd.Execute()
}
