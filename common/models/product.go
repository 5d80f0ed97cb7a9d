package models

// ProductRecord is one listing extracted from the rendered catalog page.
// It has no identity until the Reconciler persists it.
type ProductRecord struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Product is a persisted catalog row
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ProductInput is the body accepted by create and update
type ProductInput struct {
	Name  string   `json:"name" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

// Record converts a validated input into a record
func (p ProductInput) Record() ProductRecord {
	var price float64
	if p.Price != nil {
		price = *p.Price
	}
	return ProductRecord{Name: p.Name, Price: price}
}
