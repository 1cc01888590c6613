package main

import "github.com/KaramelBytes/datana-cli/cmd"

func main() {
	cmd.Execute()
}
