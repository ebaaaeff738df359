package main

import "media-fetch/cmd"

func main() {
	cmd.Execute()
}
