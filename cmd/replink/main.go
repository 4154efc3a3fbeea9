package main

import "github.com/zhubert/replink/cli"

func main() {
	cli.Execute()
}
