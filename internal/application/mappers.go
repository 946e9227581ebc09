package application

import "github.com/medflow/stock-service/internal/domain"

// ToStockRecordDTO converts a stock record aggregate to its response form.
func ToStockRecordDTO(record *domain.StockRecord) *StockRecordDTO {
	return &StockRecordDTO{
		RecordID:     record.RecordID,
		LocationID:   record.LocationID,
		Family:       string(record.Family),
		ProductID:    record.ProductID,
		ProductName:  record.ProductName,
		CurrentStock: record.CurrentStock,
		Reserved:     record.Reserved,
		Available:    record.Available(),
		MinimumStock: record.MinimumStock,
		ReorderPoint: record.ReorderPoint,
		Status:       string(record.Status()),
		IsDepot:      record.IsDepot,
		Active:       record.Active,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

// ToStockRecordDTOs converts a slice of records.
func ToStockRecordDTOs(records []*domain.StockRecord) []StockRecordDTO {
	dtos := make([]StockRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, *ToStockRecordDTO(record))
	}
	return dtos
}

// ToReservationDTO converts a reservation to its response form.
func ToReservationDTO(reservation *domain.Reservation) *ReservationDTO {
	return &ReservationDTO{
		ReservationID: reservation.ReservationID,
		StockRecordID: reservation.StockRecordID,
		LocationID:    reservation.LocationID,
		Family:        string(reservation.Family),
		ProductID:     reservation.ProductID,
		Quantity:      reservation.Quantity,
		ConsumerRef:   reservation.ConsumerRef,
		Status:        string(reservation.Status),
		CreatedAt:     reservation.CreatedAt,
		ExpiresAt:     reservation.ExpiresAt,
	}
}

// ToReservationDTOs converts a slice of reservations.
func ToReservationDTOs(reservations []*domain.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		dtos = append(dtos, *ToReservationDTO(reservation))
	}
	return dtos
}

// ToTransferDTO converts a transfer aggregate to its response form.
func ToTransferDTO(transfer *domain.Transfer) *TransferDTO {
	items := make([]TransferItemDTO, 0, len(transfer.Items))
	for _, item := range transfer.Items {
		items = append(items, TransferItemDTO{
			ProductID:         item.ProductID,
			Family:            string(item.Family),
			ProductName:       item.ProductName,
			RequestedQuantity: item.RequestedQuantity,
			ReceivedQuantity:  item.ReceivedQuantity,
			ReservationID:     item.ReservationID,
			Status:            string(item.Status),
		})
	}

	history := make([]ApprovalEntryDTO, 0, len(transfer.ApprovalHistory))
	for _, entry := range transfer.ApprovalHistory {
		history = append(history, ApprovalEntryDTO{
			Action:         entry.Action,
			PerformedBy:    entry.PerformedBy,
			PreviousStatus: string(entry.PreviousStatus),
			NewStatus:      string(entry.NewStatus),
			Note:           entry.Note,
			Timestamp:      entry.Timestamp,
		})
	}

	return &TransferDTO{
		TransferID:      transfer.TransferID,
		SourceID:        transfer.SourceID,
		DestinationID:   transfer.DestinationID,
		Status:          string(transfer.Status),
		Priority:        string(transfer.Priority),
		Reason:          transfer.Reason,
		Items:           items,
		ApprovalHistory: history,
		IsAutoGenerated: transfer.IsAutoGenerated,
		RequestedAt:     transfer.Dates.Requested,
		ApprovedAt:      transfer.Dates.Approved,
		ShippedAt:       transfer.Dates.Shipped,
		ReceivedAt:      transfer.Dates.Received,
		CreatedAt:       transfer.CreatedAt,
		UpdatedAt:       transfer.UpdatedAt,
	}
}

// ToTransferDTOs converts a slice of transfers.
func ToTransferDTOs(transfers []*domain.Transfer) []TransferDTO {
	dtos := make([]TransferDTO, 0, len(transfers))
	for _, transfer := range transfers {
		dtos = append(dtos, *ToTransferDTO(transfer))
	}
	return dtos
}

// ToMovementDTOs converts movement log entries.
func ToMovementDTOs(movements []*domain.StockMovement) []MovementDTO {
	dtos := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, MovementDTO{
			MovementID:    m.MovementID,
			StockRecordID: m.StockRecordID,
			LocationID:    m.LocationID,
			Family:        string(m.Family),
			ProductID:     m.ProductID,
			Type:          string(m.Type),
			Quantity:      m.Quantity,
			ReferenceID:   m.ReferenceID,
			Reason:        m.Reason,
			ActorID:       m.ActorID,
			OccurredAt:    m.OccurredAt,
		})
	}
	return dtos
}

// ToLocationDTOs converts locations.
func ToLocationDTOs(locations []*domain.Location) []LocationDTO {
	dtos := make([]LocationDTO, 0, len(locations))
	for _, l := range locations {
		dtos = append(dtos, LocationDTO{
			LocationID: l.LocationID,
			Name:       l.Name,
			IsDepot:    l.IsDepot,
			Active:     l.Active,
		})
	}
	return dtos
}
