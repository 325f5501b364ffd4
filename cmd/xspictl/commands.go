package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sigurn/crc8"
	"github.com/spf13/cobra"

	"github.com/ardnew/xspi/host/reg"
	"github.com/ardnew/xspi/pkg"
)

var crcTable = crc8.MakeTable(crc8.CRC8)

func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, pkg.ErrInvalidParameter)
	}
	return uint32(v), nil
}

// withSession runs fn on an open session and closes it afterwards.
func withSession(cmd *cobra.Command, opts *options, bind bool, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, opts, bind)
	if err != nil {
		return err
	}
	err = fn(ctx, s)
	if cerr := s.close(); err == nil {
		err = cerr
	}
	return err
}

// =============================================================================
// id
// =============================================================================

func newIDCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Read the JEDEC identifier of the peripheral",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				id, err := s.readID(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s.dev, hex.EncodeToString(id))
				return nil
			})
		},
	}
}

// =============================================================================
// read
// =============================================================================

func newReadCmd(opts *options) *cobra.Command {
	var (
		opcode uint32
		dummy  uint16
		out    string
	)
	cmd := &cobra.Command{
		Use:   "read ADDR LEN",
		Short: "Read memory and print a hex dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32("address", args[0])
			if err != nil {
				return err
			}
			n, err := parseUint32("length", args[1])
			if err != nil {
				return err
			}

			var w io.Writer
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			} else {
				d := hex.Dumper(cmd.OutOrStdout())
				defer d.Close()
				w = d
			}

			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				return s.read(ctx, opcode, dummy, addr, int(n), func(b []byte) error {
					_, err := w.Write(b)
					return err
				})
			})
		},
	}
	cmd.Flags().Uint32Var(&opcode, "cmd", cmdFastRead, "read opcode")
	cmd.Flags().Uint16Var(&dummy, "dummy", 8, "dummy cycles before data")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write raw data to a file instead of a hex dump")
	return cmd
}

// =============================================================================
// write
// =============================================================================

func newWriteCmd(opts *options) *cobra.Command {
	var (
		opcode uint32
		page   int
		in     string
	)
	cmd := &cobra.Command{
		Use:   "write ADDR [HEX]",
		Short: "Program memory from hex bytes or a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32("address", args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch {
			case len(args) == 2 && in == "":
				data, err = hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
				if err != nil {
					return fmt.Errorf("data: %w: %w", pkg.ErrInvalidParameter, err)
				}
			case len(args) == 1 && in != "":
				if data, err = os.ReadFile(in); err != nil {
					return err
				}
			default:
				return fmt.Errorf("give either HEX or --in: %w", pkg.ErrInvalidParameter)
			}
			if len(data) == 0 {
				return fmt.Errorf("no data: %w", pkg.ErrInvalidParameter)
			}
			if page <= 0 {
				return fmt.Errorf("page size %d: %w", page, pkg.ErrInvalidParameter)
			}

			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.program(ctx, opcode, page, addr, data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes at %#x\n", len(data), addr)
				return nil
			})
		},
	}
	cmd.Flags().Uint32Var(&opcode, "cmd", cmdPageProgram, "program opcode")
	cmd.Flags().IntVar(&page, "page", defaultPageSize, "program page size")
	cmd.Flags().StringVarP(&in, "in", "i", "", "file to program")
	return cmd
}

// =============================================================================
// verify
// =============================================================================

func newVerifyCmd(opts *options) *cobra.Command {
	var (
		seed  uint8
		dummy uint16
		page  int
		rdCmd uint32
		wrCmd uint32
	)
	cmd := &cobra.Command{
		Use:   "verify ADDR LEN",
		Short: "Write a pattern, read it back and compare CRC-8 digests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint32("address", args[0])
			if err != nil {
				return err
			}
			n, err := parseUint32("length", args[1])
			if err != nil {
				return err
			}
			if n == 0 || page <= 0 {
				return fmt.Errorf("length %d, page %d: %w", n, page, pkg.ErrInvalidParameter)
			}

			want := make([]byte, n)
			for i := range want {
				want[i] = seed + byte(i*7)
			}

			return withSession(cmd, opts, true, func(ctx context.Context, s *session) error {
				if err := s.program(ctx, wrCmd, page, addr, want); err != nil {
					return err
				}
				got := make([]byte, 0, n)
				err := s.read(ctx, rdCmd, dummy, addr, int(n), func(b []byte) error {
					got = append(got, b...)
					return nil
				})
				if err != nil {
					return err
				}

				wsum := crc8.Checksum(want, crcTable)
				rsum := crc8.Checksum(got, crcTable)
				fmt.Fprintf(cmd.OutOrStdout(), "%d bytes at %#x: crc8 written 0x%02x read 0x%02x\n",
					n, addr, wsum, rsum)
				if wsum != rsum || !bytes.Equal(want, got) {
					return fmt.Errorf("read back differs: %w", pkg.ErrIO)
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint8Var(&seed, "seed", 0x5A, "pattern seed")
	cmd.Flags().Uint16Var(&dummy, "dummy", 8, "dummy cycles before read data")
	cmd.Flags().IntVar(&page, "page", defaultPageSize, "program page size")
	cmd.Flags().Uint32Var(&rdCmd, "read-cmd", cmdFastRead, "read opcode")
	cmd.Flags().Uint32Var(&wrCmd, "program-cmd", cmdPageProgram, "program opcode")
	return cmd
}

// =============================================================================
// regs
// =============================================================================

func newRegsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "regs",
		Short: "Dump the controller registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, false, func(ctx context.Context, s *session) error {
				w := cmd.OutOrStdout()
				for _, off := range reg.Named() {
					// Reading the RX port pops the FIFO.
					if off == reg.RXData {
						continue
					}
					fmt.Fprintf(w, "0x%02x %-12s 0x%08x\n", uint32(off), off, s.ctrl.ReadRegister(off))
				}
				return nil
			})
		},
	}
}
