package main

import "github.com/dyike/CryptoViewer/internal/cli"

func main() {
	cli.Run()
}
