package main

import "github.com/1aeo/allium-sub000/cmd/alliumd/cmd"

func main() {
	cmd.Execute()
}
