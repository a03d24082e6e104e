// Copyright 2025 VexFS Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vexfs/vexfs/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "vexfs [flags] device mount_point",
	Short: "Mount a VexFS vector-native filesystem image",
	Long: `VexFS is a block-device-backed filesystem with a native
vector store and HNSW index, mounted locally via FUSE.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := validateConfig(); err != nil {
			return err
		}
		devicePath, mountPoint, err := populateArgs(args)
		if err != nil {
			return err
		}
		MountConfig.Storage.DevicePath = cfg.ResolvedPath(devicePath)

		mfs, err := mountWithConfig(mountPoint, &MountConfig)
		if err != nil {
			return err
		}
		return mfs.Join(cmd.Context())
	},
}

func populateArgs(args []string) (devicePath string, mountPoint string, err error) {
	devicePath, err = resolvePath(args[0])
	if err != nil {
		return "", "", fmt.Errorf("resolving device path: %w", err)
	}
	mountPoint, err = resolvePath(args[1])
	if err != nil {
		return "", "", fmt.Errorf("resolving mount point: %w", err)
	}
	return devicePath, mountPoint, nil
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func validateConfig() error {
	if MountConfig.Storage.BlockSize == 0 {
		return fmt.Errorf("storage.block-size must be nonzero")
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig)
		return
	}
	resolved, err := resolvePath(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig)
}
