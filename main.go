package main

import "eventhub/cmd"

func main() {
	cmd.Execute()
}
