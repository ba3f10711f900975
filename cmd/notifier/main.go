package main

import "github.com/vietddude/dashnotifier/internal/cli"

func main() {
	cli.Execute()
}
