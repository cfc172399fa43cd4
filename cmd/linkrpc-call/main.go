// linkrpc-call issues a single RPC against a running server and prints the
// reply as JSON. Handy for smoke-testing a deployment:
//
//	linkrpc-call --addr 127.0.0.1:8080 --method Greeter.Hello --args '{"Name":"Bob"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"linkrpc/client"
	"linkrpc/codec"
	"linkrpc/config"
	"linkrpc/loadbalance"
	"linkrpc/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr       string
		method     string
		argsJSON   string
		configPath string
		binary     bool
		jsonLines  bool
	)

	cmd := &cobra.Command{
		Use:          "linkrpc-call",
		Short:        "Issue a single RPC and print the reply",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(addr, method, argsJSON, configPath, binary, jsonLines)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address, host:port")
	cmd.MarkFlagRequired("addr")
	cmd.Flags().StringVar(&method, "method", "", `method to call, "Service.Method"`)
	cmd.MarkFlagRequired("method")
	cmd.Flags().StringVar(&argsJSON, "args", "{}", "arguments as a JSON object")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().BoolVar(&binary, "binary", false, "use the binary body codec")
	cmd.Flags().BoolVar(&jsonLines, "jsonl", false, "use JSON-lines framing")

	return cmd
}

func call(addr, method, argsJSON, configPath string, binary, jsonLines bool) error {
	var args json.RawMessage
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Errorf("--args is not valid JSON: %w", err)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	// A single fixed address: the static registry and round-robin collapse
	// to "always that one instance".
	serviceName, _, _ := strings.Cut(method, ".")
	reg := registry.NewStaticRegistry()
	reg.Register(serviceName, registry.ServiceInstance{Addr: addr}, 0)

	opts := []client.Option{
		client.WithPoolSize(1),
		client.WithCallTimeout(cfg.CallTimeout.Std()),
	}
	if binary || cfg.Codec == "binary" {
		opts = append(opts, client.WithCodec(codec.CodecTypeBinary))
	}
	if jsonLines {
		opts = append(opts, client.WithJSONLines())
	}
	cli := client.NewClient(reg, &loadbalance.RoundRobin{}, opts...)
	defer cli.Close()

	var reply json.RawMessage
	if err := cli.Call(context.Background(), method, args, &reply); err != nil {
		return err
	}

	fmt.Println(string(reply))
	return nil
}
