package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/hit-tracker/hdm/internal/adapter"
)

// connection is the part of a connected bluetooth device the peripheral
// uses.
type connection interface {
	DiscoverServices(uuids []bluetooth.UUID) ([]bluetooth.DeviceService, error)
	Disconnect() error
}

// Peripheral implements adapter.Peripheral for one discovered address.
type Peripheral struct {
	bt      *bluetooth.Adapter
	address bluetooth.Address
	name    string

	mu              sync.Mutex
	conn            connection
	characteristics map[string]bluetooth.DeviceCharacteristic
}

// Connect opens a link to the unit. The driver call has no deadline of its
// own, so ctx is honoured by abandoning the attempt and dropping any link
// that completes late.
func (p *Peripheral) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return nil
	}

	type outcome struct {
		conn connection
		err  error
	}
	result := make(chan outcome, 1)
	go func() {
		device, err := p.bt.Connect(p.address, bluetooth.ConnectionParams{})
		if err != nil {
			result <- outcome{err: err}
			return
		}
		result <- outcome{conn: device}
	}()

	select {
	case o := <-result:
		if o.err != nil {
			return o.err
		}
		p.conn = o.conn
		p.characteristics = make(map[string]bluetooth.DeviceCharacteristic)
		return nil
	case <-ctx.Done():
		go func() {
			if o := <-result; o.conn != nil {
				_ = o.conn.Disconnect()
			}
		}()
		return ctx.Err()
	}
}

// Disconnect closes the link. Disconnecting an idle peripheral is a no-op.
func (p *Peripheral) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Disconnect()
	p.conn = nil
	p.characteristics = nil
	return err
}

// DiscoverServiceAndCharacteristic resolves one characteristic of one
// service and keeps it for later writes.
func (p *Peripheral) DiscoverServiceAndCharacteristic(ctx context.Context, serviceUUID, characteristicUUID string) error {
	svc, err := uuid16(serviceUUID)
	if err != nil {
		return err
	}
	char, err := uuid16(characteristicUUID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return fmt.Errorf("%s: not connected", p.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	services, err := p.conn.DiscoverServices([]bluetooth.UUID{svc})
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return fmt.Errorf("service %s not found", serviceUUID)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{char})
	if err != nil {
		return err
	}
	if len(chars) == 0 {
		return fmt.Errorf("characteristic %s not found", characteristicUUID)
	}
	p.characteristics[characteristicUUID] = chars[0]
	return nil
}

// Write sends data to a discovered characteristic without waiting for a
// response.
func (p *Peripheral) Write(ctx context.Context, characteristicUUID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return fmt.Errorf("%s: not connected", p.name)
	}
	char, ok := p.characteristics[characteristicUUID]
	if !ok {
		return fmt.Errorf("characteristic %s not found", characteristicUUID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := char.WriteWithoutResponse(data)
	return err
}

var _ adapter.Peripheral = (*Peripheral)(nil)
