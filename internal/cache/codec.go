package cache

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// EncodeProducts serializes a product page as a JSON array.
func EncodeProducts(products []product.Product) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Int64(p.Price)
		e.FieldStart("stock")
		e.Int64(p.Stock)
		e.FieldStart("category_id")
		e.Int64(p.CategoryID)
		e.FieldStart("discount_rate")
		e.Float64(p.DiscountRate)
		e.ObjEnd()
	}
	e.ArrEnd()

	// The encoder buffer is reused after PutEncoder.
	out := make([]byte, len(e.Bytes()))
	copy(out, e.Bytes())
	return out
}

// DecodeProducts parses a payload written by EncodeProducts. Every element
// goes through product.New, so a tampered payload fails validation instead
// of producing an invalid Product.
func DecodeProducts(data []byte) ([]product.Product, error) {
	d := jx.DecodeBytes(data)
	products := []product.Product{}

	if err := d.Arr(func(d *jx.Decoder) error {
		var raw product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				raw.ID, err = d.Int64()
			case "name":
				raw.Name, err = d.Str()
			case "price":
				raw.Price, err = d.Int64()
			case "stock":
				raw.Stock, err = d.Int64()
			case "category_id":
				raw.CategoryID, err = d.Int64()
			case "discount_rate":
				raw.DiscountRate, err = d.Float64()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		p, err := product.New(raw.ID, raw.Name, raw.Price, raw.Stock, raw.CategoryID, raw.DiscountRate)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	return products, nil
}
