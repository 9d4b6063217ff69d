// Command atlaskv-client is a thin TCP client for exercising an
// atlaskv-server instance from the shell: get, set, del, and ping
// subcommands, each a standalone round-trip over the wire protocol.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlaskv/atlaskv/internal/wire"
)

var (
	serverAddr    string
	timeoutMillis int
)

var rootCmd = &cobra.Command{
	Use:   "atlaskv-client",
	Short: "A command-line client for the AtlasKV server",
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch the value for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(wire.Command{Type: wire.CmdGet, Key: []byte(args[0])})
		if err != nil {
			return err
		}
		return printGetResult(resp)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value for a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(wire.Command{Type: wire.CmdPut, Key: []byte(args[0]), Value: []byte(args[1])})
		if err != nil {
			return err
		}
		return printOKResult(resp)
	},
}

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(wire.Command{Type: wire.CmdDelete, Key: []byte(args[0])})
		if err != nil {
			return err
		}
		return printOKResult(resp)
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check whether the server is alive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := roundTrip(wire.Command{Type: wire.CmdPing})
		if err != nil {
			return err
		}
		return printPayloadResult(resp)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "127.0.0.1:6379", "AtlasKV server address")
	rootCmd.PersistentFlags().IntVar(&timeoutMillis, "timeout", 5000, "connection and round-trip timeout in milliseconds")

	rootCmd.AddCommand(getCmd, setCmd, delCmd, pingCmd)
}

func roundTrip(cmd wire.Command) (wire.Response, error) {
	timeout := time.Duration(timeoutMillis) * time.Millisecond

	conn, err := net.DialTimeout("tcp", serverAddr, timeout)
	if err != nil {
		return wire.Response{}, fmt.Errorf("connect to %s: %w", serverAddr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(wire.EncodeCommand(cmd)); err != nil {
		return wire.Response{}, fmt.Errorf("send request: %w", err)
	}

	resp, err := wire.ReadResponse(conn)
	if err != nil {
		return wire.Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// printGetResult prints a fetched value, "(nil)" for a missing key, or
// returns an error for a server-side failure.
func printGetResult(resp wire.Response) error {
	switch resp.Status {
	case wire.StatusOk:
		fmt.Println(string(resp.Payload))
		return nil
	case wire.StatusNotFound:
		fmt.Println("(nil)")
		return nil
	default:
		return fmt.Errorf("server error: %s", string(resp.Payload))
	}
}

// printOKResult prints "OK" for a successful mutation, or returns an error
// for a server-side failure.
func printOKResult(resp wire.Response) error {
	switch resp.Status {
	case wire.StatusOk, wire.StatusNotFound:
		fmt.Println("OK")
		return nil
	default:
		return fmt.Errorf("server error: %s", string(resp.Payload))
	}
}

// printPayloadResult prints the response payload verbatim, used for ping's
// "PONG" reply.
func printPayloadResult(resp wire.Response) error {
	switch resp.Status {
	case wire.StatusOk:
		fmt.Println(string(resp.Payload))
		return nil
	case wire.StatusNotFound:
		fmt.Println("(nil)")
		return nil
	default:
		return fmt.Errorf("server error: %s", string(resp.Payload))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
