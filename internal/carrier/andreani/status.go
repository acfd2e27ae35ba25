package andreani

import (
	"strings"

	"github.com/Additional-Code/emporia/internal/entity"
)

// statusMap translates the carrier's free-text statuses. Keys are lowercase.
var statusMap = map[string]entity.ShippingStatus{
	"pendiente":          entity.ShippingPending,
	"pendiente de envio": entity.ShippingPending,
	"en preparacion":     entity.ShippingProcessing,
	"procesando":         entity.ShippingProcessing,
	"despachado":         entity.ShippingShipped,
	"retirado":           entity.ShippingShipped,
	"en camino":          entity.ShippingInTransit,
	"en transito":        entity.ShippingInTransit,
	"en distribucion":    entity.ShippingOutForDelivery,
	"en reparto":         entity.ShippingOutForDelivery,
	"entregado":          entity.ShippingDelivered,
	"no entregado":       entity.ShippingFailed,
	"rechazado":          entity.ShippingFailed,
	"devuelto":           entity.ShippingReturned,
}

// MapStatus translates a carrier status string into ours. Unrecognized
// statuses stay pending rather than guessing at progress.
func MapStatus(raw string) entity.ShippingStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(normalized)
	if status, ok := statusMap[normalized]; ok {
		return status
	}
	return entity.ShippingPending
}
