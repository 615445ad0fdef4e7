package main

import "github.com/jd-boyd/bts-rpi-base/cmd/rpi-generate/cmd"

func main() {
	cmd.Execute()
}
