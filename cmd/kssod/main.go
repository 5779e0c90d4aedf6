/*
 * Copyright 2020 Kopano and its licensors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"stash.kopano.io/kc/kssobridge/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kssod",
		Short: "Kopano SSO bridge daemon",
	}

	rootCmd.AddCommand(commandServe())
	rootCmd.AddCommand(commandHealthcheck())
	rootCmd.AddCommand(commandVersion())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commandVersion() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf(`Version: %s
Git Commit: %s
Built with: %s %s/%s
`,
				version.Version, version.GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	return versionCmd
}
