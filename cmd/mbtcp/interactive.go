package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/scadalink/mbtcp"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i", "repl", "shell"},
	Short:   "Start an interactive Modbus shell",
	Long: `Start an interactive shell for Modbus communication.

Available commands:
  connect [host:port]     - Connect to server
  disconnect              - Disconnect from server
  unit <id>               - Set unit ID
  status                  - Show connection status

  rc <addr> [count]       - Read coils
  rdi <addr> [count]      - Read discrete inputs
  rr <addr> [count]       - Read holding registers
  ri <addr> [count]       - Read input registers

  wc <addr> <0|1>         - Write single coil
  wr <addr> <value>       - Write single register
  wcs <addr> <v1,v2,...>  - Write multiple coils
  wrs <addr> <v1,v2,...>  - Write multiple registers

  demo                    - Run the demo sequence
  help                    - Show help
  quit                    - Exit`,
	Example: `  mbtcp interactive -H 192.168.1.100
  mbtcp i --host 10.0.0.50 --port 5020`,
	RunE: runInteractive,
}

type interactiveSession struct {
	client      *mbtcp.Client
	connected   bool
	currentHost string
	currentUnit uint8
}

func runInteractive(cmd *cobra.Command, args []string) error {
	session := &interactiveSession{
		currentHost: getAddress(),
		currentUnit: unitID,
	}

	fmt.Println(color(colorBold, "Modbus Interactive Shell"))
	fmt.Println("Type 'help' for available commands, 'quit' to exit")
	fmt.Println()

	if err := session.connect(session.currentHost); err != nil {
		outputWarning("Auto-connect failed: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(session.getPrompt())

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := session.execute(line); err != nil {
			if err.Error() == "quit" {
				break
			}
			outputError("%v", err)
		}
	}

	if session.client != nil {
		session.client.Close()
	}

	fmt.Println("\nGoodbye!")
	return nil
}

func (s *interactiveSession) getPrompt() string {
	status := color(colorRed, "disconnected")
	if s.connected {
		status = color(colorGreen, s.currentHost)
	}
	return fmt.Sprintf("mbtcp[%s]@%d> ", status, s.currentUnit)
}

func (s *interactiveSession) execute(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return fmt.Errorf("quit")
	case "help", "h", "?":
		s.showHelp()
		return nil
	case "connect", "conn", "c":
		addr := s.currentHost
		if len(args) > 0 {
			addr = args[0]
			if !strings.Contains(addr, ":") {
				addr = fmt.Sprintf("%s:%d", addr, mbtcp.DefaultPort)
			}
		}
		return s.connect(addr)
	case "disconnect", "disc", "d":
		return s.disconnect()
	case "status", "stat", "s":
		s.showStatus()
		return nil
	case "unit", "u":
		if len(args) < 1 {
			fmt.Printf("Current unit ID: %d\n", s.currentUnit)
			return nil
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 0 || id > 255 {
			return fmt.Errorf("invalid unit ID (0-255)")
		}
		s.currentUnit = uint8(id)
		if s.client != nil {
			s.client.SetUnitID(mbtcp.UnitID(s.currentUnit))
		}
		fmt.Printf("Unit ID set to %d\n", s.currentUnit)
		return nil
	case "rc", "readcoils":
		return s.readCoils(args)
	case "rdi", "readdiscrete":
		return s.readDiscreteInputs(args)
	case "rr", "rhr", "readholding":
		return s.readHoldingRegisters(args)
	case "ri", "rir", "readinput":
		return s.readInputRegisters(args)
	case "wc", "writecoil":
		return s.writeSingleCoil(args)
	case "wr", "writereg":
		return s.writeSingleRegister(args)
	case "wcs", "writecoils":
		return s.writeMultipleCoils(args)
	case "wrs", "writeregs":
		return s.writeMultipleRegisters(args)
	case "demo":
		return s.runDemo()
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func (s *interactiveSession) connect(addr string) error {
	if s.client != nil {
		s.client.Close()
	}

	client, err := mbtcp.NewClient(
		addr,
		mbtcp.WithUnitID(mbtcp.UnitID(s.currentUnit)),
		mbtcp.WithTimeout(timeout),
		mbtcp.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		client.Close()
		return fmt.Errorf("connection failed: %w", err)
	}

	s.client = client
	s.currentHost = addr
	s.connected = true
	outputSuccess("Connected to %s", addr)
	return nil
}

func (s *interactiveSession) disconnect() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.connected = false
	outputInfo("Disconnected")
	return nil
}

func (s *interactiveSession) showStatus() {
	fmt.Println()
	fmt.Println(color(colorBold, "Connection Status"))
	fmt.Println(strings.Repeat("-", 30))
	if s.connected {
		fmt.Printf("Status:    %s\n", color(colorGreen, "Connected"))
		fmt.Printf("Host:      %s\n", s.currentHost)
	} else {
		fmt.Printf("Status:    %s\n", color(colorRed, "Disconnected"))
	}
	fmt.Printf("Unit ID:   %d\n", s.currentUnit)
	fmt.Printf("Output:    %s\n", outputFmt)
	fmt.Printf("Timeout:   %s\n", timeout)
	fmt.Println()
}

func (s *interactiveSession) showHelp() {
	help := `
Commands:
  Connection:
    connect [host:port]    Connect to Modbus server
    disconnect             Disconnect from server
    unit <id>              Set/show unit ID
    status                 Show connection status

  Read Operations:
    rc <addr> [count]      Read coils (FC01)
    rdi <addr> [count]     Read discrete inputs (FC02)
    rr <addr> [count]      Read holding registers (FC03)
    ri <addr> [count]      Read input registers (FC04)

  Write Operations:
    wc <addr> <0|1>        Write single coil (FC05)
    wr <addr> <value>      Write single register (FC06)
    wcs <addr> <v1,v2,..>  Write multiple coils (FC15)
    wrs <addr> <v1,v2,..>  Write multiple registers (FC16)

  General:
    demo                   Run the demo sequence
    help                   Show this help
    quit                   Exit interactive mode
`
	fmt.Println(help)
}

func (s *interactiveSession) requireConnection() error {
	if !s.connected || s.client == nil {
		return fmt.Errorf("not connected (use 'connect' first)")
	}
	return nil
}

func parseAddrCount(args []string) (addr, count uint16) {
	addr, count = 0, 1
	if len(args) >= 1 {
		a, _ := strconv.Atoi(args[0])
		addr = uint16(a)
	}
	if len(args) >= 2 {
		c, _ := strconv.Atoi(args[1])
		count = uint16(c)
	}
	return addr, count
}

func (s *interactiveSession) readCoils(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	addr, count := parseAddrCount(args)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	values, err := s.client.ReadCoils(ctx, addr, count)
	if err != nil {
		return err
	}
	return outputBoolValues("Coils", addr, values)
}

func (s *interactiveSession) readDiscreteInputs(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	addr, count := parseAddrCount(args)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	values, err := s.client.ReadDiscreteInputs(ctx, addr, count)
	if err != nil {
		return err
	}
	return outputBoolValues("Discrete Inputs", addr, values)
}

func (s *interactiveSession) readHoldingRegisters(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	addr, count := parseAddrCount(args)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	values, err := s.client.ReadHoldingRegisters(ctx, addr, count)
	if err != nil {
		return err
	}
	return outputRegisterValues("Holding Registers", addr, values)
}

func (s *interactiveSession) readInputRegisters(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	addr, count := parseAddrCount(args)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	values, err := s.client.ReadInputRegisters(ctx, addr, count)
	if err != nil {
		return err
	}
	return outputRegisterValues("Input Registers", addr, values)
}

func (s *interactiveSession) writeSingleCoil(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: wc <address> <0|1>")
	}
	addr, _ := strconv.Atoi(args[0])
	value, err := parseBoolValue(args[1])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.client.WriteSingleCoil(ctx, uint16(addr), value); err != nil {
		return err
	}
	outputSuccess("Wrote coil %d = %v", addr, value)
	return nil
}

func (s *interactiveSession) writeSingleRegister(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: wr <address> <value>")
	}
	addr, _ := strconv.Atoi(args[0])
	value, err := parseUint16Value(args[1])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.client.WriteSingleRegister(ctx, uint16(addr), value); err != nil {
		return err
	}
	outputSuccess("Wrote register %d = %d (0x%04X)", addr, value, value)
	return nil
}

func (s *interactiveSession) writeMultipleCoils(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: wcs <address> <v1,v2,...>")
	}
	addr, _ := strconv.Atoi(args[0])
	values, err := parseBoolValues(args[1:])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.client.WriteMultipleCoils(ctx, uint16(addr), values); err != nil {
		return err
	}
	outputSuccess("Wrote %d coils starting at address %d", len(values), addr)
	return nil
}

func (s *interactiveSession) writeMultipleRegisters(args []string) error {
	if err := s.requireConnection(); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: wrs <address> <v1,v2,...>")
	}
	addr, _ := strconv.Atoi(args[0])
	values, err := parseUint16Values(args[1:])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.client.WriteMultipleRegisters(ctx, uint16(addr), values); err != nil {
		return err
	}
	outputSuccess("Wrote %d registers starting at address %d", len(values), addr)
	return nil
}

func (s *interactiveSession) runDemo() error {
	if err := s.requireConnection(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.client.WriteSingleCoil(ctx, 0, true); err != nil {
		return err
	}
	coils, err := s.client.ReadCoils(ctx, 0, 1)
	if err != nil {
		return err
	}
	outputInfo("coil 0 -> %v", coils[0])

	if err := s.client.WriteSingleRegister(ctx, 0, 1234); err != nil {
		return err
	}
	regs, err := s.client.ReadHoldingRegisters(ctx, 0, 1)
	if err != nil {
		return err
	}
	outputInfo("register 0 -> %d", regs[0])

	if err := s.client.WriteMultipleRegisters(ctx, 10, []uint16{100, 200, 300, 400, 500}); err != nil {
		return err
	}
	regs, err = s.client.ReadHoldingRegisters(ctx, 10, 5)
	if err != nil {
		return err
	}
	outputInfo("registers 10..14 -> %v", regs)

	outputSuccess("Demo complete")
	return nil
}
