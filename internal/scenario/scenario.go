// Package scenario parses problem documents and exposes them to the solver
// as a read-only planning environment with a memoized distance oracle.
package scenario

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"fleetroute/internal/model"
)

// ErrInvalid wraps every validation failure so callers can map the whole
// class to one API problem type.
var ErrInvalid = errors.New("invalid scenario")

// Document is the wire schema for a scenario, accepted as YAML or JSON
// (JSON parses as a YAML subset).
type Document struct {
	Name       string      `yaml:"name" json:"name"`
	SKUs       []SKU       `yaml:"skus" json:"skus"`
	Orders     []Order     `yaml:"orders" json:"orders"`
	Warehouses []Warehouse `yaml:"warehouses" json:"warehouses"`
	Vehicles   []Vehicle   `yaml:"vehicles" json:"vehicles"`
	Edges      []Edge      `yaml:"edges" json:"edges"`
}

type SKU struct {
	ID     string  `yaml:"id" json:"id"`
	Weight float64 `yaml:"weight" json:"weight"`
	Volume float64 `yaml:"volume" json:"volume"`
}

type Order struct {
	ID           string         `yaml:"id" json:"id"`
	Node         int64          `yaml:"node" json:"node"`
	Requirements map[string]int `yaml:"requirements" json:"requirements"`
}

type Warehouse struct {
	ID        string         `yaml:"id" json:"id"`
	Node      int64          `yaml:"node" json:"node"`
	Inventory map[string]int `yaml:"inventory" json:"inventory"`
}

type Vehicle struct {
	ID             string  `yaml:"id" json:"id"`
	Type           string  `yaml:"type" json:"type"`
	CapacityWeight float64 `yaml:"capacityWeight" json:"capacityWeight"`
	CapacityVolume float64 `yaml:"capacityVolume" json:"capacityVolume"`
	MaxDistance    float64 `yaml:"maxDistance" json:"maxDistance"`
	HomeWarehouse  string  `yaml:"homeWarehouse" json:"homeWarehouse"`
}

// Edge declares one road segment. Distance is in kilometers; Oneway keeps
// the reverse direction out of the graph.
type Edge struct {
	From     int64   `yaml:"from" json:"from"`
	To       int64   `yaml:"to" json:"to"`
	Distance float64 `yaml:"distance" json:"distance"`
	Oneway   bool    `yaml:"oneway,omitempty" json:"oneway,omitempty"`
}

// Parse decodes and validates a scenario document.
func Parse(body []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks ID uniqueness and referential integrity. The graph itself
// is not required to be connected: unreachable orders simply stay
// unassigned at solve time.
func (d *Document) Validate() error {
	if len(d.Orders) == 0 {
		return fmt.Errorf("%w: no orders", ErrInvalid)
	}
	if len(d.Warehouses) == 0 {
		return fmt.Errorf("%w: no warehouses", ErrInvalid)
	}
	if len(d.Vehicles) == 0 {
		return fmt.Errorf("%w: no vehicles", ErrInvalid)
	}

	skus := map[string]struct{}{}
	for _, s := range d.SKUs {
		if s.ID == "" {
			return fmt.Errorf("%w: sku with empty id", ErrInvalid)
		}
		if _, dup := skus[s.ID]; dup {
			return fmt.Errorf("%w: duplicate sku %q", ErrInvalid, s.ID)
		}
		if s.Weight < 0 || s.Volume < 0 {
			return fmt.Errorf("%w: sku %q has negative size", ErrInvalid, s.ID)
		}
		skus[s.ID] = struct{}{}
	}

	orders := map[string]struct{}{}
	for _, o := range d.Orders {
		if o.ID == "" {
			return fmt.Errorf("%w: order with empty id", ErrInvalid)
		}
		if _, dup := orders[o.ID]; dup {
			return fmt.Errorf("%w: duplicate order %q", ErrInvalid, o.ID)
		}
		orders[o.ID] = struct{}{}
		if len(o.Requirements) == 0 {
			return fmt.Errorf("%w: order %q requires nothing", ErrInvalid, o.ID)
		}
		for skuID, qty := range o.Requirements {
			if _, ok := skus[skuID]; !ok {
				return fmt.Errorf("%w: order %q references unknown sku %q", ErrInvalid, o.ID, skuID)
			}
			if qty <= 0 {
				return fmt.Errorf("%w: order %q has non-positive quantity for sku %q", ErrInvalid, o.ID, skuID)
			}
		}
	}

	warehouses := map[string]struct{}{}
	for _, w := range d.Warehouses {
		if w.ID == "" {
			return fmt.Errorf("%w: warehouse with empty id", ErrInvalid)
		}
		if _, dup := warehouses[w.ID]; dup {
			return fmt.Errorf("%w: duplicate warehouse %q", ErrInvalid, w.ID)
		}
		warehouses[w.ID] = struct{}{}
		for skuID := range w.Inventory {
			if _, ok := skus[skuID]; !ok {
				return fmt.Errorf("%w: warehouse %q stocks unknown sku %q", ErrInvalid, w.ID, skuID)
			}
		}
	}

	vehicles := map[string]struct{}{}
	for _, v := range d.Vehicles {
		if v.ID == "" {
			return fmt.Errorf("%w: vehicle with empty id", ErrInvalid)
		}
		if _, dup := vehicles[v.ID]; dup {
			return fmt.Errorf("%w: duplicate vehicle %q", ErrInvalid, v.ID)
		}
		vehicles[v.ID] = struct{}{}
		if v.CapacityWeight <= 0 || v.CapacityVolume <= 0 {
			return fmt.Errorf("%w: vehicle %q has non-positive capacity", ErrInvalid, v.ID)
		}
		if v.MaxDistance <= 0 {
			return fmt.Errorf("%w: vehicle %q has non-positive range", ErrInvalid, v.ID)
		}
		if _, ok := warehouses[v.HomeWarehouse]; !ok {
			return fmt.Errorf("%w: vehicle %q references unknown warehouse %q", ErrInvalid, v.ID, v.HomeWarehouse)
		}
	}

	for i, e := range d.Edges {
		if e.From == e.To {
			return fmt.Errorf("%w: edge %d is a self-loop", ErrInvalid, i)
		}
		if e.Distance < 0 {
			return fmt.Errorf("%w: edge %d has negative distance", ErrInvalid, i)
		}
	}
	return nil
}

func (v Vehicle) vehicleType() model.VehicleType {
	switch model.VehicleType(v.Type) {
	case model.LightVan, model.MediumTruck, model.HeavyTruck:
		return model.VehicleType(v.Type)
	default:
		return model.OtherVehicle
	}
}
