package pipeline

import (
	"context"
	"time"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// Fixture reference data: three US markets, three vendors, two distribution centers.
var (
	fixtureMarkets = []domain.Market{
		{MarketID: "CHI", RegionName: "Chicago", CountryCode: "US", Latitude: 41.8781, Longitude: -87.6298, PopulationEstimate: 2693976},
		{MarketID: "LA", RegionName: "Los Angeles", CountryCode: "US", Latitude: 34.0522, Longitude: -118.2437, PopulationEstimate: 3979576},
		{MarketID: "NYC", RegionName: "New York", CountryCode: "US", Latitude: 40.7128, Longitude: -74.0060, PopulationEstimate: 8336817},
	}

	fixtureVendors = []domain.Vendor{
		{VendorID: "V-ACME", VendorName: "Acme Supply"},
		{VendorID: "V-BOLT", VendorName: "Bolt Distribution"},
		{VendorID: "V-CREST", VendorName: "Crest Wholesale"},
	}

	fixtureCenters = []domain.DistributionCenter{
		{CenterID: "DC-ACME-NJ", CenterName: "Acme Newark", VendorID: "V-ACME", Latitude: 40.7357, Longitude: -74.1724},
		{CenterID: "DC-BOLT-IL", CenterName: "Bolt Joliet", VendorID: "V-BOLT", Latitude: 41.5250, Longitude: -88.0817},
	}
)

type fixtureSKU struct {
	id, name, categoryID, categoryName string
	basePrice                          float64
}

var fixtureSKUs = []fixtureSKU{
	{"SKU-100", "Copy Paper A4 (case)", "office", "Office Supplies", 42.00},
	{"SKU-200", "Nitrile Gloves (box)", "safety", "Safety Equipment", 11.50},
}

var (
	marketFactor = map[string]float64{"CHI": 1.00, "LA": 1.08, "NYC": 1.15}
	vendorOffset = map[string]float64{"V-ACME": -0.03, "V-BOLT": 0.00, "V-CREST": 0.04}
)

// LoadFixtures populates stores with a small demonstration dataset.
// Current-period observations fall within 30 days before asOf and the previous period
// 31 to 59 days before, with prices about 5% lower. Crest quotes copy paper in
// Los Angeles at three times the market rate.
func LoadFixtures(ctx context.Context, observations storage.ObservationStore, reference storage.ReferenceStore, asOf time.Time) error {
	if err := reference.InsertVendors(ctx, fixtureVendors); err != nil {
		return err
	}
	if err := reference.InsertMarkets(ctx, fixtureMarkets); err != nil {
		return err
	}
	if err := reference.InsertCenters(ctx, fixtureCenters); err != nil {
		return err
	}
	return observations.InsertBulk(ctx, fixtureObservations(asOf))
}

func fixtureObservations(asOf time.Time) []domain.PricingObservation {
	day := asOf.UTC().Truncate(24 * time.Hour)
	var out []domain.PricingObservation

	for _, m := range fixtureMarkets {
		for _, sku := range fixtureSKUs {
			for vi, v := range fixtureVendors {
				price := sku.basePrice * marketFactor[m.MarketID] * (1 + vendorOffset[v.VendorID])
				for k, daysAgo := range []int{3 + vi, 10 + vi, 40 + vi} {
					p := price
					if daysAgo >= 31 {
						p *= 0.95
					}
					if m.MarketID == "LA" && sku.id == "SKU-100" && v.VendorID == "V-CREST" && k == 0 {
						p *= 3
					}
					out = append(out, domain.PricingObservation{
						SKUID:        sku.id,
						VendorID:     v.VendorID,
						VendorName:   v.VendorName,
						MarketID:     m.MarketID,
						RegionName:   m.RegionName,
						ProductName:  sku.name,
						CategoryID:   sku.categoryID,
						CategoryName: sku.categoryName,
						UnitPrice:    domain.Round(p, 2),
						CurrencyCode: domain.DefaultCurrency,
						ObservedAt:   day.AddDate(0, 0, -daysAgo).Add(9 * time.Hour),
					})
				}
			}
		}
	}
	return out
}
