package main

import "github.com/jd-boyd/bts-rpi-base/cmd/rpi-update/cmd"

func main() {
	cmd.Execute()
}
