package main

import "kzcasino/cmd"

func main() {
	cmd.Execute()
}
