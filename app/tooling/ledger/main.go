package main

import "github.com/decent-stuff/decent-cloud-sub003/app/tooling/ledger/cmd"

func main() {
	cmd.Execute()
}
