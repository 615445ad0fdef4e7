package main

import "github.com/jd-boyd/bts-rpi-base/cmd/rpi-build/cmd"

func main() {
	cmd.Execute()
}
