package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo0713/netfs/pkg/blockcache"
	"github.com/hugo0713/netfs/pkg/config"
	"github.com/hugo0713/netfs/pkg/diskclient"
	"github.com/hugo0713/netfs/pkg/elog"
	"github.com/hugo0713/netfs/pkg/fsserver"
	"github.com/hugo0713/netfs/pkg/vfs"
)

var (
	flagVerbose bool
	flagDebug   bool
	flagFormat  bool
	flagSize    uint32
	log         elog.View
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "fsd",
	Short: "fsd serves a UNIX-style filesystem over TCP, backed by a diskd instance",
	RunE:  runFsd,
}

func init() {
	config.BindFSFlags(v, rootCmd.Flags())
	rootCmd.Flags().BoolVar(&flagFormat, "format", false, "format the backing disk before serving")
	rootCmd.Flags().Uint32Var(&flagSize, "size", 0, "total blocks to format (defaults to the full disk)")
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
			fmt.Fprintf(os.Stderr, "fsd: warning: %v\n", err)
		}
	}
}

func runFsd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFS(v)
	if err != nil {
		return err
	}

	dc, err := diskclient.Dial(cfg.DiskAddr)
	if err != nil {
		return err
	}
	defer dc.Close()

	cache := blockcache.New(dc, logrus.StandardLogger())

	var fs *vfs.FileSystem
	if flagFormat {
		size := flagSize
		if size == 0 {
			size = dc.NumBlocks()
		}
		fs, err = vfs.Format(cache, size, logrus.StandardLogger())
	} else {
		fs, err = vfs.Mount(cache, logrus.StandardLogger())
	}
	if err != nil {
		return err
	}

	srv := fsserver.New(fs, logrus.StandardLogger())
	return srv.ListenAndServe(cfg.Addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
