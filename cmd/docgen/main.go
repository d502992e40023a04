package main

import (
	"os"
)

func main() {
	if err := newRoot(newEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
