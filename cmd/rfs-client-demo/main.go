// Command rfs-client-demo exercises the client stubs directly, standing
// in for the interposition mechanism that would otherwise divert a
// process's real file-operation calls into them — that mechanism lives
// outside this module.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/evan6998/remotefs/internal/rfsclient"
	"github.com/evan6998/remotefs/internal/rfslog"
)

func main() {
	var path string

	root := &cobra.Command{
		Use:   "rfs-client-demo",
		Short: "Open/write/read/close a remote path through the client stubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := rfslog.New()
			c, err := rfsclient.Dial(log)
			if err != nil {
				return err
			}
			defer c.Close()

			fd, err := c.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer c.CloseFD(fd)

			if _, err := c.Write(fd, []byte("hello from rfs-client-demo\n")); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			if _, err := c.Lseek(fd, 0, 0); err != nil {
				return fmt.Errorf("lseek: %w", err)
			}
			buf := make([]byte, 4096)
			n, err := c.Read(fd, buf)
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			fmt.Print(string(buf[:n]))
			log.WithField("open_fds", c.Diagnostics()).Debug("remote descriptors still held")
			return nil
		},
	}
	root.Flags().StringVar(&path, "path", "/tmp/rfs-client-demo.txt", "remote path to exercise")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
