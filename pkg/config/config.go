// Package config loads the typed configuration shared by the disk and
// filesystem server commands: listen addresses, the backing image path,
// and the simulated disk geometry. Values come from (in ascending
// priority) a YAML config file, environment variables, and command-line
// flags, wired through viper the way the reference CLI wires its own
// persistent flags.
package config

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Disk holds the disk server's configuration.
type Disk struct {
	Addr      string `mapstructure:"addr"`
	ImagePath string `mapstructure:"image"`
	Cylinders int    `mapstructure:"cylinders"`
	Sectors   int    `mapstructure:"sectors"`
	SeekNanos int64  `mapstructure:"seek-ns"`
}

// FS holds the filesystem server's configuration.
type FS struct {
	Addr     string `mapstructure:"addr"`
	DiskAddr string `mapstructure:"disk-addr"`
}

// DefaultConfigDir is the directory under the user's home that New searches
// for a config file, after the current directory.
func DefaultConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "config: resolve home directory")
	}
	return filepath.Join(home, ".netfs"), nil
}

// BindDiskFlags registers the disk server's flags on fs and binds them
// into v, with defaults applied.
func BindDiskFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("addr", ":7000", "address to listen on for disk protocol connections")
	fs.String("image", "disk.img", "path to the backing disk image file")
	fs.Int("cylinders", 64, "number of simulated cylinders")
	fs.Int("sectors", 128, "number of sectors per cylinder")
	fs.Int64("seek-ns", 2_000_000, "simulated per-cylinder seek delay, in nanoseconds")
	v.BindPFlags(fs)
}

// LoadDisk reads the bound disk server configuration.
func LoadDisk(v *viper.Viper) (Disk, error) {
	var d Disk
	d.Addr = v.GetString("addr")
	d.ImagePath = v.GetString("image")
	d.Cylinders = v.GetInt("cylinders")
	d.Sectors = v.GetInt("sectors")
	d.SeekNanos = v.GetInt64("seek-ns")
	if d.Cylinders <= 0 || d.Sectors <= 0 {
		return d, errors.New("config: cylinders and sectors must be positive")
	}
	return d, nil
}

// BindFSFlags registers the filesystem server's flags on fs and binds
// them into v, with defaults applied.
func BindFSFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.String("addr", ":7001", "address to listen on for filesystem protocol connections")
	fs.String("disk-addr", "localhost:7000", "address of the backing disk server")
	v.BindPFlags(fs)
}

// LoadFS reads the bound filesystem server configuration.
func LoadFS(v *viper.Viper) (FS, error) {
	var f FS
	f.Addr = v.GetString("addr")
	f.DiskAddr = v.GetString("disk-addr")
	if f.DiskAddr == "" {
		return f, errors.New("config: disk-addr must not be empty")
	}
	return f, nil
}

// New returns a viper instance configured to read "netfs" config files
// (YAML) from the current directory and DefaultConfigDir, and to
// auto-bind NETFS_-prefixed environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("netfs")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := DefaultConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("netfs")
	v.AutomaticEnv()
	return v
}
