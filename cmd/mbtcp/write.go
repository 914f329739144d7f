package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	writeAddr   uint16
	writeValue  string
	writeValues []string
)

var writeCmd = &cobra.Command{
	Use:     "write",
	Aliases: []string{"w"},
	Short:   "Write data to a Modbus device",
	Long:    `Write coils or holding registers, singly or in blocks.`,
}

var writeCoilCmd = &cobra.Command{
	Use:     "coil",
	Aliases: []string{"c"},
	Short:   "Write a single coil (FC05)",
	Example: `  mbtcp write coil -a 0 -V 1 -H 192.168.1.100
  mbtcp w c -a 10 -V off`,
	RunE: runWriteCoil,
}

var writeRegisterCmd = &cobra.Command{
	Use:     "register",
	Aliases: []string{"r", "reg"},
	Short:   "Write a single register (FC06)",
	Example: `  mbtcp write register -a 0 -V 1234 -H 192.168.1.100
  mbtcp w r -a 5 -V 0xABCD`,
	RunE: runWriteRegister,
}

var writeCoilsCmd = &cobra.Command{
	Use:     "coils",
	Aliases: []string{"cs"},
	Short:   "Write multiple coils (FC15)",
	Example: `  mbtcp write coils -a 0 -V 1,0,1,1 -H 192.168.1.100`,
	RunE:    runWriteCoils,
}

var writeRegistersCmd = &cobra.Command{
	Use:     "registers",
	Aliases: []string{"rs", "regs"},
	Short:   "Write multiple registers (FC16)",
	Example: `  mbtcp write registers -a 10 -V 100,200,300,400,500 -H 192.168.1.100`,
	RunE:    runWriteRegisters,
}

func init() {
	writeCmd.AddCommand(writeCoilCmd)
	writeCmd.AddCommand(writeRegisterCmd)
	writeCmd.AddCommand(writeCoilsCmd)
	writeCmd.AddCommand(writeRegistersCmd)

	for _, cmd := range []*cobra.Command{writeCoilCmd, writeRegisterCmd} {
		cmd.Flags().Uint16VarP(&writeAddr, "address", "a", 0, "Target address")
		cmd.Flags().StringVarP(&writeValue, "value", "V", "", "Value to write")
		cmd.MarkFlagRequired("value")
	}
	for _, cmd := range []*cobra.Command{writeCoilsCmd, writeRegistersCmd} {
		cmd.Flags().Uint16VarP(&writeAddr, "address", "a", 0, "Starting address")
		cmd.Flags().StringSliceVarP(&writeValues, "values", "V", nil, "Comma-separated values to write")
		cmd.MarkFlagRequired("values")
	}
}

func runWriteCoil(cmd *cobra.Command, args []string) error {
	value, err := parseBoolValue(writeValue)
	if err != nil {
		return err
	}

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

	if err := client.WriteSingleCoil(ctx, writeAddr, value); err != nil {
		return fmt.Errorf("write coil failed: %w", err)
	}

	outputSuccess("Wrote coil %d = %v", writeAddr, value)
	return nil
}

func runWriteRegister(cmd *cobra.Command, args []string) error {
	value, err := parseUint16Value(writeValue)
	if err != nil {
		return err
	}

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

	if err := client.WriteSingleRegister(ctx, writeAddr, value); err != nil {
		return fmt.Errorf("write register failed: %w", err)
	}

	outputSuccess("Wrote register %d = %d (0x%04X)", writeAddr, value, value)
	return nil
}

func runWriteCoils(cmd *cobra.Command, args []string) error {
	values, err := parseBoolValues(writeValues)
	if err != nil {
		return err
	}

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

	if err := client.WriteMultipleCoils(ctx, writeAddr, values); err != nil {
		return fmt.Errorf("write coils failed: %w", err)
	}

	outputSuccess("Wrote %d coils starting at address %d", len(values), writeAddr)
	return nil
}

func runWriteRegisters(cmd *cobra.Command, args []string) error {
	values, err := parseUint16Values(writeValues)
	if err != nil {
		return err
	}

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

	if err := client.WriteMultipleRegisters(ctx, writeAddr, values); err != nil {
		return fmt.Errorf("write registers failed: %w", err)
	}

	outputSuccess("Wrote %d registers starting at address %d", len(values), writeAddr)
	return nil
}

func parseBoolValue(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

func parseBoolValues(values []string) ([]bool, error) {
	var result []bool
	for _, v := range values {
		parts := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})
		for _, p := range parts {
			if p == "" {
				continue
			}
			b, err := parseBoolValue(p)
			if err != nil {
				return nil, err
			}
			result = append(result, b)
		}
	}
	return result, nil
}

func parseUint16Value(s string) (uint16, error) {
	s = strings.TrimSpace(s)

	var value uint64
	var err error

	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		value, err = strconv.ParseUint(s[2:], 16, 16)
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		value, err = strconv.ParseUint(s[2:], 2, 16)
	default:
		value, err = strconv.ParseUint(s, 10, 16)
	}

	if err != nil {
		return 0, fmt.Errorf("invalid uint16 value: %s", s)
	}
	return uint16(value), nil
}

func parseUint16Values(values []string) ([]uint16, error) {
	var result []uint16
	for _, v := range values {
		parts := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})
		for _, p := range parts {
			if p == "" {
				continue
			}
			u, err := parseUint16Value(p)
			if err != nil {
				return nil, err
			}
			result = append(result, u)
		}
	}
	return result, nil
}
