package main

import "walletledger/internal/cli"

func main() {
	cli.Execute()
}
