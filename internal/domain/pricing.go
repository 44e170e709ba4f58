package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultCurrency is assumed when an observation carries no currency code.
const DefaultCurrency = "USD"

// PricingObservation is a single price quoted by a vendor for a SKU in a market.
// Corresponds to vendor_pricing rows.
type PricingObservation struct {
	SKUID        string    `json:"sku_id"`
	VendorID     string    `json:"vendor_id"`
	VendorName   string    `json:"vendor_name,omitempty"`
	MarketID     string    `json:"market_id"`
	RegionName   string    `json:"region_name,omitempty"`
	ProductName  string    `json:"product_name,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	UnitPrice    float64   `json:"unit_price"`
	CurrencyCode string    `json:"currency_code"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Priced reports whether the observation participates in statistical grouping.
func (p PricingObservation) Priced() bool {
	return p.UnitPrice > 0
}

// Currency returns the currency code, falling back to DefaultCurrency.
func (p PricingObservation) Currency() string {
	if p.CurrencyCode == "" {
		return DefaultCurrency
	}
	return p.CurrencyCode
}

// DisplayVendor returns the vendor name, or the vendor id when no name is known.
func (p PricingObservation) DisplayVendor() string {
	if p.VendorName == "" {
		return p.VendorID
	}
	return p.VendorName
}

// DisplayRegion returns the region name, or the market id when no name is known.
func (p PricingObservation) DisplayRegion() string {
	if p.RegionName == "" {
		return p.MarketID
	}
	return p.RegionName
}

// DisplayProduct returns the product name, or the sku id when no name is known.
func (p PricingObservation) DisplayProduct() string {
	if p.ProductName == "" {
		return p.SKUID
	}
	return p.ProductName
}

// Vendor is a supplier quoting prices.
type Vendor struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
}

// Market is a geographic market region.
type Market struct {
	MarketID           string  `json:"market_id"`
	RegionName         string  `json:"region_name"`
	CountryCode        string  `json:"country_code,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	PopulationEstimate int64   `json:"population_estimate,omitempty"`
}

// Coordinate returns the market location.
func (m Market) Coordinate() Coordinate {
	return Coordinate{Latitude: m.Latitude, Longitude: m.Longitude}
}

// DistributionCenter is a vendor-owned fulfilment location.
type DistributionCenter struct {
	CenterID   string  `json:"center_id"`
	CenterName string  `json:"center_name"`
	VendorID   string  `json:"vendor_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Coordinate returns the center location.
func (c DistributionCenter) Coordinate() Coordinate {
	return Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Coordinate is a point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate returns ErrInvalidCoordinate when either component is out of range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}
