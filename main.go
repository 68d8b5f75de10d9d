package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/lucknot3/transfer-tea-multi-address/distribute"
	"github.com/lucknot3/transfer-tea-multi-address/util"
)

var rootCmd = util.CreateUsageCommand("teadrop", "Daily token distribution engine")

func init() {
	setLogLevel()
	distribute.SetParent(rootCmd)
}

func setLogLevel() {
	levelStr := os.Getenv("LOGLEVEL")
	if levelStr == "" {
		return
	}
	level, err := strconv.ParseUint(levelStr, 10, 32)
	if err != nil {
		fmt.Println(err)
		return
	}
	logrus.SetLevel(logrus.Level(level))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
