// Command rfsd is the remote file server: it accepts connections on
// serverport15440 (default 15440) and executes requests against its own
// local file system.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evan6998/remotefs/internal/rfslog"
	"github.com/evan6998/remotefs/internal/rfsserver"
)

func main() {
	root := &cobra.Command{
		Use:   "rfsd",
		Short: "Serve the local file system to remote clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := rfslog.New()
			srv := rfsserver.New(log)
			return srv.ListenAndServe()
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
