package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("userpool failed")
		os.Exit(1)
	}
}
