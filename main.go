package main

import "channel-publisher/cmd"

func main() {
	cmd.Execute()
}
