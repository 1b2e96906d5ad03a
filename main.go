package main

import "kbsync/cmd"

func main() {
	cmd.Execute()
}
