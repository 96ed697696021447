package main

import (
	cmd "github.com/labelhive/labelhive/cmd/labelhive"
	"github.com/labelhive/labelhive/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting labelhive")
	cmd.Execute()
}
