package qbimport

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/harborline/harborline/internal/ar"
)

// Item list filters.
const (
	ImportAsParts    = "parts"
	ImportAsServices = "services"
	ImportAsBoth     = "both"
)

// ImportItems loads a QuickBooks item list export into parts and services.
// Inventory-flavored types become parts, the rest become services, and
// report constructs like subtotals and tax groups are skipped entirely.
func ImportItems(ctx context.Context, store TxStore, rc *runContext, r *Reader, importAs string, now time.Time) (ItemsSummary, error) {
	stats := ItemsSummary{Message: "Items import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		sku := row.Field("item")
		description := row.Field("description")
		if sku == "" && description == "" {
			stats.Skipped++
			continue
		}

		category := CategorizeItemType(row.Field("type"))
		if category == ItemSkip {
			stats.Skipped++
			continue
		}

		cost := Amount(row.Field("cost"))
		price := Amount(row.Field("price"))
		quantity := int(math.Round(Amount(row.Field("quantity_on_hand"))))
		reorderPoint := int(math.Round(Amount(row.Field("reorder_pt_min"))))
		preferredVendor := row.Field("preferred_vendor")

		if sku == "" {
			sku = PlaceholderSKU(firstNonEmpty(description, "item"))
		}

		switch category {
		case ItemPart:
			if importAs != ImportAsParts && importAs != ImportAsBoth {
				stats.Skipped++
				continue
			}
			if err := upsertPart(ctx, store, sku, description, cost, price, quantity, reorderPoint, preferredVendor); err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				stats.Skipped++
				continue
			}
			stats.PartsImported++

		case ItemService:
			if importAs != ImportAsServices && importAs != ImportAsBoth {
				stats.Skipped++
				continue
			}
			if err := upsertServiceItem(ctx, store, firstNonEmpty(description, sku), description, cost, price); err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				stats.Skipped++
				continue
			}
			stats.ServicesImported++
		}
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}

func upsertPart(ctx context.Context, store TxStore, sku, description string, cost, price float64, quantity, reorderPoint int, preferredVendor string) error {
	part, found, err := store.FindPartBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if !found {
		part = ar.Part{SKU: sku}
	}
	part.Name = firstNonEmpty(description, sku)
	if description != "" {
		part.Description = &description
	}
	if cost != 0 || !found {
		part.Cost = cost
	}
	if price != 0 {
		part.Price = price
	} else if cost != 0 || !found {
		part.Price = cost
	}
	part.StockQuantity = quantity
	part.MinStockLevel = reorderPoint
	if preferredVendor != "" {
		part.VendorPartNumbers = &preferredVendor
	}
	part.Active = true

	if found {
		return store.UpdatePart(ctx, part)
	}
	return store.InsertPart(ctx, &part)
}

func upsertServiceItem(ctx context.Context, store TxStore, name, description string, cost, price float64) error {
	svc, found, err := store.FindServiceByName(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		svc = ar.ServiceItem{Name: name}
	}
	if description != "" {
		svc.Description = &description
	}
	switch {
	case price != 0:
		svc.HourlyRate = price
	case cost != 0:
		svc.HourlyRate = cost
	case svc.HourlyRate == 0:
		svc.HourlyRate = 0
	}
	svc.Active = true

	if found {
		return store.UpdateService(ctx, svc)
	}
	return store.InsertService(ctx, &svc)
}
