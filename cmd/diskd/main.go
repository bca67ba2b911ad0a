package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo0713/netfs/pkg/config"
	"github.com/hugo0713/netfs/pkg/diskimage"
	"github.com/hugo0713/netfs/pkg/diskserver"
	"github.com/hugo0713/netfs/pkg/elog"
)

var (
	flagVerbose bool
	flagDebug   bool
	log         elog.View
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "diskd",
	Short: "diskd serves a simulated cylinder/sector disk over TCP",
	RunE:  runDiskd,
}

func init() {
	config.BindDiskFlags(v, rootCmd.Flags())
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := &elog.CLI{IsVerbose: flagVerbose, IsDebug: flagDebug}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)
		log = logger
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "diskd: warning: %v\n", err)
		}
	}
}

func runDiskd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDisk(v)
	if err != nil {
		return err
	}

	img, err := diskimage.Open(cfg.ImagePath, cfg.Cylinders, cfg.Sectors, time.Duration(cfg.SeekNanos))
	if err != nil {
		return err
	}
	defer img.Close()

	logrus.Infof("disk image %s: %d cylinders x %d sectors", cfg.ImagePath, cfg.Cylinders, cfg.Sectors)

	srv := diskserver.New(img, logrus.StandardLogger())
	return srv.ListenAndServe(cfg.Addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
