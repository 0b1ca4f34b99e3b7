package main

import "github.com/dmitrijs2005/authstore/internal/cli"

func main() {
	cli.Execute()
}
