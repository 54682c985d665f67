package main

import (
	"os"

	"onnxd/internal/ctl"
)

func main() {
	os.Exit(ctl.Execute(os.Args[1:]))
}
