package relay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Coil values for WriteSingleCoil
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// ModbusCoil drives a relay wired to a Modbus TCP coil.
type ModbusCoil struct {
	mu         sync.Mutex
	client     modbus.Client
	tcpHandler *modbus.TCPClientHandler
	address    uint16
}

// NewModbusCoil drives the coil at coilAddress of a Modbus TCP device. A
// device that is down at startup is logged and not fatal: the handler
// dials again on the next read or write.
func NewModbusCoil(address string, slaveID byte, coilAddress uint16, timeout time.Duration, logger *log.Logger) *ModbusCoil {
	if logger == nil {
		logger = log.Default()
	}

	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	if handler.Timeout <= 0 {
		handler.Timeout = 1 * time.Second
	}

	if err := handler.Connect(); err != nil {
		logger.Printf("Modbus relay %s not reachable, retrying on next use: %v", address, err)
	}

	return &ModbusCoil{
		client:     modbus.NewClient(handler),
		tcpHandler: handler,
		address:    coilAddress,
	}
}

// NewModbusCoilWithClient drives the coil through an existing Modbus client
func NewModbusCoilWithClient(client modbus.Client, coilAddress uint16) *ModbusCoil {
	return &ModbusCoil{client: client, address: coilAddress}
}

// Name describes the relay for logs
func (m *ModbusCoil) Name() string {
	if m.tcpHandler != nil {
		return fmt.Sprintf("modbus %s coil %d", m.tcpHandler.Address, m.address)
	}
	return fmt.Sprintf("modbus coil %d", m.address)
}

// State reads the coil
func (m *ModbusCoil) State(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.client.ReadCoils(m.address, 1)
	if err != nil {
		return false, fmt.Errorf("failed to read coil %d: %w", m.address, err)
	}
	if len(data) < 1 {
		return false, fmt.Errorf("failed to read coil %d: empty response", m.address)
	}
	return data[0]&0x01 == 1, nil
}

// Set writes the coil
func (m *ModbusCoil) Set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value := coilOff
	if on {
		value = coilOn
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.client.WriteSingleCoil(m.address, value); err != nil {
		return fmt.Errorf("failed to write coil %d: %w", m.address, err)
	}
	return nil
}

// Close closes the Modbus connection
func (m *ModbusCoil) Close() error {
	if m.tcpHandler != nil {
		return m.tcpHandler.Close()
	}
	return nil
}
