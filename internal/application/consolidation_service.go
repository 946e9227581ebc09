package application

import (
	"context"
	"sort"

	"github.com/medflow/stock-service/internal/domain"
	"github.com/medflow/stock-service/pkg/logging"
)

// ConsolidationApplicationService builds the cross-location views: the
// per-product availability picture and the shortage alert list with ranked
// donor suggestions. Read-only; all writes happen through the transfer flow.
type ConsolidationApplicationService struct {
	stockRepo    domain.StockRecordRepository
	locationRepo domain.LocationRepository
	logger       *logging.Logger
}

// NewConsolidationApplicationService creates a consolidation service.
func NewConsolidationApplicationService(
	stockRepo domain.StockRecordRepository,
	locationRepo domain.LocationRepository,
	logger *logging.Logger,
) *ConsolidationApplicationService {
	return &ConsolidationApplicationService{
		stockRepo:    stockRepo,
		locationRepo: locationRepo,
		logger:       logger,
	}
}

// Alert levels for the consolidated views, ordered by severity.
const (
	AlertCritical = "critical"
	AlertWarning  = "warning"
	AlertOK       = "ok"
)

// ConsolidatedView returns one product's stock across every active location.
// Locations holding no record appear as synthetic not_stocked rows so the
// caller sees the full network, not just where the product exists.
func (s *ConsolidationApplicationService) ConsolidatedView(ctx context.Context, query ConsolidatedViewQuery) (*ConsolidatedStockDTO, error) {
	records, err := s.stockRepo.FindByProduct(ctx, query.Family, query.ProductID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrStockRecordNotFound
	}

	locations, err := s.locationRepo.FindAll(ctx, true)
	if err != nil {
		return nil, err
	}

	return buildProductView(query.Family, query.ProductID, records, locations), nil
}

// ConsolidateFamily returns the cross-location picture for every product in a
// family, most severe alerts first, windowed by limit/offset.
func (s *ConsolidationApplicationService) ConsolidateFamily(ctx context.Context, query ConsolidateFamilyQuery) ([]ConsolidatedStockDTO, error) {
	records, err := s.stockRepo.FindByFamily(ctx, query.Family)
	if err != nil {
		return nil, err
	}

	locations, err := s.locationRepo.FindAll(ctx, true)
	if err != nil {
		return nil, err
	}
	activeLocations := make(map[string]bool, len(locations))
	for _, location := range locations {
		activeLocations[location.LocationID] = true
	}

	byProduct := make(map[string][]*domain.StockRecord)
	productOrder := make([]string, 0)
	for _, record := range records {
		if !activeLocations[record.LocationID] {
			continue
		}
		if _, seen := byProduct[record.ProductID]; !seen {
			productOrder = append(productOrder, record.ProductID)
		}
		byProduct[record.ProductID] = append(byProduct[record.ProductID], record)
	}

	views := make([]ConsolidatedStockDTO, 0, len(productOrder))
	for _, productID := range productOrder {
		views = append(views, *buildProductView(query.Family, productID, byProduct[productID], locations))
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].AlertLevel != views[j].AlertLevel {
			return alertRank(views[i].AlertLevel) < alertRank(views[j].AlertLevel)
		}
		return views[i].ProductName < views[j].ProductName
	})

	return pageViews(views, query.Limit, query.Offset), nil
}

// buildProductView joins one product's records with the active location list,
// synthesizing not_stocked rows and deriving the product-level alert.
func buildProductView(family domain.ProductFamily, productID string, records []*domain.StockRecord, locations []*domain.Location) *ConsolidatedStockDTO {
	byLocation := make(map[string]*domain.StockRecord, len(records))
	productName := ""
	for _, record := range records {
		byLocation[record.LocationID] = record
		productName = record.ProductName
	}

	view := &ConsolidatedStockDTO{
		Family:      string(family),
		ProductID:   productID,
		ProductName: productName,
		AlertLevel:  AlertOK,
		Locations:   make([]LocationStockDTO, 0, len(locations)),
	}

	for _, location := range locations {
		record, ok := byLocation[location.LocationID]
		if !ok {
			view.Locations = append(view.Locations, LocationStockDTO{
				LocationID:   location.LocationID,
				LocationName: location.Name,
				IsDepot:      location.IsDepot,
				Status:       string(domain.StatusNotStocked),
			})
			continue
		}

		status := record.Status()
		switch status {
		case domain.StatusOutOfStock:
			view.AlertLevel = AlertCritical
		case domain.StatusLowStock:
			if view.AlertLevel != AlertCritical {
				view.AlertLevel = AlertWarning
			}
		}

		view.TotalStock += record.CurrentStock
		view.TotalReserved += record.Reserved
		view.TotalAvailable += record.Available()
		view.Locations = append(view.Locations, LocationStockDTO{
			LocationID:          location.LocationID,
			LocationName:        location.Name,
			IsDepot:             location.IsDepot,
			RecordID:            record.RecordID,
			CurrentStock:        record.CurrentStock,
			Reserved:            record.Reserved,
			Available:           record.Available(),
			Status:              string(status),
			TransferableSurplus: record.TransferableSurplus(),
		})
	}

	return view
}

func alertRank(level string) int {
	switch level {
	case AlertCritical:
		return 0
	case AlertWarning:
		return 1
	default:
		return 2
	}
}

func pageViews(views []ConsolidatedStockDTO, limit, offset int) []ConsolidatedStockDTO {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(views) {
		return []ConsolidatedStockDTO{}
	}
	views = views[offset:]
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	return views
}

// StockAlerts lists every shortage (low or out of stock), each with donor
// locations ranked depot first, then by transferable surplus.
func (s *ConsolidationApplicationService) StockAlerts(ctx context.Context, query StockAlertsQuery) ([]StockAlertDTO, error) {
	shortages, err := s.stockRepo.FindLowStock(ctx, query.LocationID)
	if err != nil {
		return nil, err
	}
	if len(shortages) == 0 {
		return []StockAlertDTO{}, nil
	}

	locations, err := s.locationRepo.FindAll(ctx, true)
	if err != nil {
		return nil, err
	}
	locationByID := make(map[string]*domain.Location, len(locations))
	for _, location := range locations {
		locationByID[location.LocationID] = location
	}

	// One batched read per family for the network-wide records of all
	// products under alert.
	networkRecords, err := s.networkRecords(ctx, shortages)
	if err != nil {
		return nil, err
	}

	alerts := make([]StockAlertDTO, 0, len(shortages))
	for _, shortage := range shortages {
		donors := rankDonors(shortage, networkRecords[productKey{shortage.Family, shortage.ProductID}], locationByID)
		alerts = append(alerts, StockAlertDTO{
			RecordID:     shortage.RecordID,
			LocationID:   shortage.LocationID,
			Family:       string(shortage.Family),
			ProductID:    shortage.ProductID,
			ProductName:  shortage.ProductName,
			CurrentStock: shortage.CurrentStock,
			Available:    shortage.Available(),
			ReorderPoint: shortage.ReorderPoint,
			Status:       string(shortage.Status()),
			SuggestedQty: suggestedQuantity(shortage),
			CanTransfer:  len(donors) > 0,
			Donors:       donors,
		})
	}
	return alerts, nil
}

type productKey struct {
	family    domain.ProductFamily
	productID string
}

func (s *ConsolidationApplicationService) networkRecords(ctx context.Context, shortages []*domain.StockRecord) (map[productKey][]*domain.StockRecord, error) {
	idsByFamily := make(map[domain.ProductFamily][]string)
	seen := make(map[productKey]bool)
	for _, shortage := range shortages {
		key := productKey{shortage.Family, shortage.ProductID}
		if !seen[key] {
			seen[key] = true
			idsByFamily[shortage.Family] = append(idsByFamily[shortage.Family], shortage.ProductID)
		}
	}

	result := make(map[productKey][]*domain.StockRecord)
	for family, productIDs := range idsByFamily {
		records, err := s.stockRepo.FindByProducts(ctx, family, productIDs)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			key := productKey{record.Family, record.ProductID}
			result[key] = append(result[key], record)
		}
	}
	return result, nil
}

// rankDonors lists locations that can give stock away: active, not the
// shorted location itself, with positive transferable surplus. Depot first,
// then by surplus descending.
func rankDonors(shortage *domain.StockRecord, network []*domain.StockRecord, locationByID map[string]*domain.Location) []DonorDTO {
	donors := make([]DonorDTO, 0)
	for _, record := range network {
		if record.LocationID == shortage.LocationID || !record.Active {
			continue
		}
		surplus := record.TransferableSurplus()
		if surplus <= 0 {
			continue
		}
		location, ok := locationByID[record.LocationID]
		if !ok {
			continue
		}
		donors = append(donors, DonorDTO{
			LocationID:          record.LocationID,
			LocationName:        location.Name,
			IsDepot:             location.IsDepot,
			TransferableSurplus: surplus,
		})
	}

	sort.SliceStable(donors, func(i, j int) bool {
		if donors[i].IsDepot != donors[j].IsDepot {
			return donors[i].IsDepot
		}
		return donors[i].TransferableSurplus > donors[j].TransferableSurplus
	})
	return donors
}

// suggestedQuantity proposes a top-up that brings the record back over its
// reorder point.
func suggestedQuantity(record *domain.StockRecord) int {
	suggested := record.ReorderPoint - record.CurrentStock
	if suggested < 1 {
		suggested = 1
	}
	return suggested
}
