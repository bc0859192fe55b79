package main

import "github.com/KaramelBytes/saberlab/cmd"

func main() {
	cmd.Execute()
}
