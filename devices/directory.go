// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package devices holds the smart-plug directory consumed by the resolver.
// Device records are owned by an external system; the gateway only reads
// them and never mutates a record.
package devices

import "sync"

// Device is a registered smart plug.
type Device struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	Title   string `json:"title"`
	IP      string `json:"ip"`
}

// Directory defines the lookups the resolver and HTTP layer perform against
// the device registry.
type Directory interface {
	// ByID returns the device with the given id, unscoped.
	ByID(id int64) (*Device, bool)

	// ByIDAndOwner returns the device with the given id only if it belongs
	// to the given owner.
	ByIDAndOwner(id, ownerID int64) (*Device, bool)

	// FirstOwnedBy returns the first device registered for an owner.
	FirstOwnedBy(ownerID int64) (*Device, bool)

	// First returns the first device registered in the system.
	First() (*Device, bool)

	// ListByOwner returns every device registered for an owner.
	ListByOwner(ownerID int64) []*Device
}

// MemoryDirectory is an ordered, in-memory Directory. Registration order is
// significant: First and FirstOwnedBy follow it.
type MemoryDirectory struct {
	mu      sync.RWMutex
	devices []*Device
}

// NewMemoryDirectory creates a directory seeded with the given devices.
func NewMemoryDirectory(devs ...*Device) *MemoryDirectory {
	d := &MemoryDirectory{}
	d.devices = append(d.devices, devs...)
	return d
}

// Add registers a device at the end of the directory order.
func (d *MemoryDirectory) Add(dev *Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices = append(d.devices, dev)
}

// ByID returns the device with the given id, unscoped.
func (d *MemoryDirectory) ByID(id int64) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dev := range d.devices {
		if dev.ID == id {
			return dev, true
		}
	}
	return nil, false
}

// ByIDAndOwner returns the device with the given id scoped to an owner.
func (d *MemoryDirectory) ByIDAndOwner(id, ownerID int64) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dev := range d.devices {
		if dev.ID == id && dev.OwnerID == ownerID {
			return dev, true
		}
	}
	return nil, false
}

// FirstOwnedBy returns the first device registered for an owner.
func (d *MemoryDirectory) FirstOwnedBy(ownerID int64) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dev := range d.devices {
		if dev.OwnerID == ownerID {
			return dev, true
		}
	}
	return nil, false
}

// First returns the first device registered in the system.
func (d *MemoryDirectory) First() (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.devices) == 0 {
		return nil, false
	}
	return d.devices[0], true
}

// ListByOwner returns every device registered for an owner.
func (d *MemoryDirectory) ListByOwner(ownerID int64) []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Device
	for _, dev := range d.devices {
		if dev.OwnerID == ownerID {
			out = append(out, dev)
		}
	}
	return out
}
