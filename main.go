package main

import "github.com/terraconstructs/gatehouse/cmd"

func main() {
	cmd.Execute()
}
