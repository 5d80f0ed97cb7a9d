package realtime

import (
	"encoding/json"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
)

// EventKind names the change carried by a ChangeEvent
type EventKind string

const (
	EventGetProducts   EventKind = "get_products"
	EventGetProduct    EventKind = "get_product"
	EventCreateProduct EventKind = "create_product"
	EventUpdateProduct EventKind = "update_product"
	EventDeleteProduct EventKind = "delete_product"
)

// ChangeEvent is the frame pushed to every subscriber
type ChangeEvent struct {
	Event   EventKind `json:"event"`
	Payload any       `json:"payload"`
}

type ProductsPayload struct {
	Products []models.Product `json:"products"`
}

type ProductPayload struct {
	Product models.Product `json:"product"`
}

type ProductIDPayload struct {
	ProductID int64 `json:"product_id"`
}

func ProductsEvent(products []models.Product) ChangeEvent {
	if products == nil {
		products = []models.Product{}
	}
	return ChangeEvent{Event: EventGetProducts, Payload: ProductsPayload{Products: products}}
}

func ProductEvent(kind EventKind, product models.Product) ChangeEvent {
	return ChangeEvent{Event: kind, Payload: ProductPayload{Product: product}}
}

func ProductDeletedEvent(id int64) ChangeEvent {
	return ChangeEvent{Event: EventDeleteProduct, Payload: ProductIDPayload{ProductID: id}}
}

// Encode renders the event as a JSON text frame
func (e ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
