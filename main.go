package main

import "github.com/jmehdipour/outline-admin/cmd"

func main() {
	cmd.Execute()
}
