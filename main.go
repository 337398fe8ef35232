package main

import "github.com/frahmantamala/payroll-engine/cmd"

func main() {
	cmd.Execute()
}
