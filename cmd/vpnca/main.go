package main

import "github.com/jmcleod/vpnca/cmd/vpnca/cmd"

func main() {
	cmd.Execute()
}
