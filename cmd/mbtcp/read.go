package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	readAddr  uint16
	readCount uint16
)

var readCmd = &cobra.Command{
	Use:     "read",
	Aliases: []string{"r"},
	Short:   "Read data from a Modbus device",
	Long:    `Read coils, discrete inputs, holding registers, or input registers.`,
}

var readCoilsCmd = &cobra.Command{
	Use:     "coils",
	Aliases: []string{"c", "coil"},
	Short:   "Read coils (FC01)",
	Example: `  mbtcp read coils -a 0 -c 10 -H 192.168.1.100
  mbtcp r c -a 100 -c 8`,
	RunE: runReadCoils,
}

var readDiscreteInputsCmd = &cobra.Command{
	Use:     "discrete-inputs",
	Aliases: []string{"di", "discrete"},
	Short:   "Read discrete inputs (FC02)",
	Example: `  mbtcp read discrete-inputs -a 0 -c 10 -H 192.168.1.100
  mbtcp r di -a 100 -c 8`,
	RunE: runReadDiscreteInputs,
}

var readHoldingRegistersCmd = &cobra.Command{
	Use:     "holding-registers",
	Aliases: []string{"hr", "holding"},
	Short:   "Read holding registers (FC03)",
	Example: `  mbtcp read holding-registers -a 0 -c 10 -H 192.168.1.100
  mbtcp r hr -a 10 -c 5`,
	RunE: runReadHoldingRegisters,
}

var readInputRegistersCmd = &cobra.Command{
	Use:     "input-registers",
	Aliases: []string{"ir", "input"},
	Short:   "Read input registers (FC04)",
	Example: `  mbtcp read input-registers -a 0 -c 10 -H 192.168.1.100
  mbtcp r ir -a 100 -c 4`,
	RunE: runReadInputRegisters,
}

func init() {
	readCmd.AddCommand(readCoilsCmd)
	readCmd.AddCommand(readDiscreteInputsCmd)
	readCmd.AddCommand(readHoldingRegistersCmd)
	readCmd.AddCommand(readInputRegistersCmd)

	for _, cmd := range []*cobra.Command{readCoilsCmd, readDiscreteInputsCmd, readHoldingRegistersCmd, readInputRegistersCmd} {
		cmd.Flags().Uint16VarP(&readAddr, "address", "a", 0, "Starting address")
		cmd.Flags().Uint16VarP(&readCount, "count", "c", 1, "Number of items to read")
	}
}

func runReadCoils(cmd *cobra.Command, args []string) error {
	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	values, err := client.ReadCoils(ctx, readAddr, readCount)
	if err != nil {
		return fmt.Errorf("read coils failed: %w", err)
	}

	return outputBoolValues("Coils", readAddr, values)
}

func runReadDiscreteInputs(cmd *cobra.Command, args []string) error {
	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	values, err := client.ReadDiscreteInputs(ctx, readAddr, readCount)
	if err != nil {
		return fmt.Errorf("read discrete inputs failed: %w", err)
	}

	return outputBoolValues("Discrete Inputs", readAddr, values)
}

func runReadHoldingRegisters(cmd *cobra.Command, args []string) error {
	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	values, err := client.ReadHoldingRegisters(ctx, readAddr, readCount)
	if err != nil {
		return fmt.Errorf("read holding registers failed: %w", err)
	}

	return outputRegisterValues("Holding Registers", readAddr, values)
}

func runReadInputRegisters(cmd *cobra.Command, args []string) error {
	client, err := createClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	values, err := client.ReadInputRegisters(ctx, readAddr, readCount)
	if err != nil {
		return fmt.Errorf("read input registers failed: %w", err)
	}

	return outputRegisterValues("Input Registers", readAddr, values)
}
