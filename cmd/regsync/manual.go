// cmd/regsync/manual.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tamzrod/modbus-regsync/internal/codec"
	"github.com/tamzrod/modbus-regsync/internal/config"
	"github.com/tamzrod/modbus-regsync/internal/link"
	"github.com/tamzrod/modbus-regsync/internal/logging"
)

// manualFlags are shared by the one-shot read and write commands.
type manualFlags struct {
	endpoint string
	unit     uint8
	addr     string
}

func (f *manualFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "server host:port (overrides config)")
	cmd.Flags().Uint8Var(&f.unit, "unit", 1, "unit id")
	cmd.Flags().StringVar(&f.addr, "addr", "0x0", "start address (hex)")
}

func newReadCmd(cfgPath *string) *cobra.Command {
	var (
		f     manualFlags
		count string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read holding registers once and print them",
		Example: `  regsync read --unit 1 --addr 0x0 --count 0x5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseHex("addr", f.addr)
			if err != nil {
				return err
			}
			n, err := parseHex("count", count)
			if err != nil {
				return err
			}
			rt, err := f.setup(cmd, *cfgPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			resp, raw, err := oneShot(cmd, rt, codec.ReadHoldingRegisters(f.unit, addr, n))
			if err != nil {
				fmt.Fprintf(out, "Read Error: %v\n", err)
				printRaw(out, raw)
				return err
			}
			fmt.Fprintf(out, "Response: %s\n", hexValues(resp.Values))
			printRaw(out, raw)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&count, "count", "0x1", "register count (hex)")
	return cmd
}

func newWriteCmd(cfgPath *string) *cobra.Command {
	var (
		f      manualFlags
		value  string
		values string
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write one or several holding registers once",
		Example: `  regsync write --unit 1 --addr 0x6 --value 0x2A
  regsync write --unit 1 --addr 0x5 --values 0x1,0x2,0x3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			single := cmd.Flags().Changed("value")
			multi := cmd.Flags().Changed("values")
			if single == multi {
				return errors.New("write: exactly one of --value or --values is required")
			}

			addr, err := parseHex("addr", f.addr)
			if err != nil {
				return err
			}

			var (
				req  codec.Request
				name = "Write Single"
				regs []uint16
			)
			if single {
				v, err := parseHex("value", value)
				if err != nil {
					return err
				}
				req = codec.WriteSingleRegister(f.unit, addr, v)
			} else {
				for _, s := range strings.Split(values, ",") {
					v, err := parseHex("values", s)
					if err != nil {
						return err
					}
					regs = append(regs, v)
				}
				req = codec.WriteMultipleRegisters(f.unit, addr, regs)
				name = "Write Multiple"
			}

			rt, err := f.setup(cmd, *cfgPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, raw, err := oneShot(cmd, rt, req); err != nil {
				fmt.Fprintf(out, "%s Error: %v\n", name, err)
				printRaw(out, raw)
				return err
			} else if single {
				fmt.Fprintf(out, "%s OK\n", name)
				printRaw(out, raw)
			} else {
				fmt.Fprintf(out, "%s OK %s\n", name, hexValues(regs))
				printRaw(out, raw)
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&value, "value", "", "register value (hex)")
	cmd.Flags().StringVar(&values, "values", "", "comma separated register values (hex)")
	return cmd
}

func (f *manualFlags) setup(cmd *cobra.Command, cfgPath string) (*app, error) {
	return setup(cmd, cfgPath, func(c *config.Config) {
		if cmd.Flags().Changed("endpoint") {
			c.Client.Endpoint = f.endpoint
		}
	})
}

// oneShot connects, performs req and disconnects.
func oneShot(cmd *cobra.Command, rt *app, req codec.Request) (codec.Response, link.Raw, error) {
	c := rt.cfg.Client

	mgr, err := link.NewTCP(
		link.Config{Endpoint: c.Endpoint, Timeout: config.Ms(c.TimeoutMs)},
		link.WithLogger(logging.Component(rt.log, "link")),
	)
	if err != nil {
		return codec.Response{}, link.Raw{}, fmt.Errorf("link: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := mgr.Connect(ctx); err != nil {
		return codec.Response{}, link.Raw{}, fmt.Errorf("connect %s: %w", c.Endpoint, err)
	}
	defer mgr.Disconnect()

	rt.log.Debug().Str("request", req.String()).Msg("sending")
	return mgr.SendRaw(ctx, req)
}

// parseHex accepts "2A" and "0x2A".
func parseHex(name, s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex %s %q", name, s)
	}
	return uint16(v), nil
}

func hexValues(vs []uint16) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("0x%02X", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func printRaw(w io.Writer, raw link.Raw) {
	if raw.Request != nil {
		fmt.Fprintf(w, "Raw request: %s\n", codec.Hex(raw.Request))
	}
	if raw.Reply != nil {
		fmt.Fprintf(w, "Raw response: %s\n", codec.Hex(raw.Reply))
	}
}
